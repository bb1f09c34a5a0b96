// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Sentinels shared by repository, gateway, and service layers.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPassphrase indicates a passphrase that failed hash verification.
	ErrInvalidPassphrase = errors.New("invalid passphrase")

	// ErrDecryptFailed indicates ciphertext that could not be authenticated and
	// decrypted even though the passphrase passed hash verification.
	ErrDecryptFailed = errors.New("decryption failed")

	// ErrAuthExpired indicates the remote service rejected the stored delegated session.
	ErrAuthExpired = errors.New("delegated session no longer authorized")

	// ErrEntityNotFound indicates a requested conversation could not be resolved
	// against the user's catalog.
	ErrEntityNotFound = errors.New("conversation not found")

	// ErrConflictingParams indicates mutually exclusive request parameters.
	ErrConflictingParams = errors.New("conflicting parameters")

	// ErrPromptAbandoned indicates an interactive prompt ended without a valid reply.
	ErrPromptAbandoned = errors.New("prompt abandoned")

	// ErrStoreUnavailable indicates the credential store could not serve the call.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)
