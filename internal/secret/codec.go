// Package secret implements passphrase hashing and symmetric encryption of
// delegated-session blobs. Pure transforms, no side effects.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/nkotelnikov/telesweep/internal/errs"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	saltLen = 16
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassphrase returns salt||Argon2id(passphrase, salt) with a fresh random salt.
func HashPassphrase(passphrase string) ([]byte, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return nil, err
	}
	digest := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	out := make([]byte, 0, saltLen+len(digest))
	out = append(out, salt...)
	out = append(out, digest...)
	return out, nil
}

// VerifyPassphrase verifies passphrase against a digest produced by HashPassphrase.
func VerifyPassphrase(passphrase string, stored []byte) bool {
	if len(stored) != saltLen+int(argonKeyLen) {
		return false
	}
	salt, want := stored[:saltLen], stored[saltLen:]
	got := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// deriveKey derives the AEAD key from passphrase and salt using Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// Encrypt seals plaintext with XChaCha20-Poly1305 under a passphrase-derived key.
// Output layout: salt||nonce||ciphertext.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce, err := RandBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return out, nil
}

// Decrypt opens a blob produced by Encrypt. A wrong passphrase fails the AEAD
// tag check and returns errs.ErrDecryptFailed, never garbage plaintext.
func Decrypt(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < saltLen+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: blob too short", errs.ErrDecryptFailed)
	}
	salt := blob[:saltLen]
	nonce := blob[saltLen : saltLen+chacha20poly1305.NonceSizeX]
	ct := blob[saltLen+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, errs.ErrDecryptFailed
	}
	return pt, nil
}
