// Package service contains application services for credential lifecycle and erasure.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/model"
	"github.com/nkotelnikov/telesweep/internal/repository"
	"github.com/nkotelnikov/telesweep/internal/secret"
)

// CredentialService defines the credential lifecycle operations.
type CredentialService interface {
	// Get loads the user's record, errs.ErrNotFound when absent.
	Get(ctx context.Context, userID int64) (*model.CredentialRecord, error)
	// Save hashes the passphrase, encrypts the session blob, and upserts the
	// record atomically. Used both for first authorization and passphrase change.
	Save(ctx context.Context, userID int64, label string, session []byte, passphrase string) (*model.CredentialRecord, error)
	// Unlock verifies the passphrase against the record and decrypts the session blob.
	Unlock(rec *model.CredentialRecord, passphrase string) ([]byte, error)
	// Delete removes the record, returning how many rows went away.
	Delete(ctx context.Context, userID int64) (int64, error)
}

type CredentialServiceImpl struct {
	repo   repository.CredentialRepository
	logger *zap.Logger
}

// NewCredentialService constructs CredentialService with required dependencies.
func NewCredentialService(repo repository.CredentialRepository, logger *zap.Logger) *CredentialServiceImpl {
	return &CredentialServiceImpl{repo: repo, logger: logger}
}

// Get loads the record for userID.
func (s *CredentialServiceImpl) Get(ctx context.Context, userID int64) (*model.CredentialRecord, error) {
	if userID == 0 {
		return nil, errors.New("validation: empty userID")
	}
	return s.repo.Get(ctx, userID)
}

// Save builds and persists the record. EncryptedSession and PassphraseHash are
// produced together from the same passphrase so the record invariant holds.
func (s *CredentialServiceImpl) Save(ctx context.Context, userID int64, label string, session []byte, passphrase string) (*model.CredentialRecord, error) {
	if userID == 0 {
		return nil, errors.New("validation: empty userID")
	}
	if len(session) == 0 {
		return nil, errors.New("validation: empty session")
	}
	if passphrase == "" {
		return nil, errors.New("validation: empty passphrase")
	}

	hash, err := secret.HashPassphrase(passphrase)
	if err != nil {
		return nil, err
	}
	enc, err := secret.Encrypt(session, passphrase)
	if err != nil {
		return nil, err
	}

	rec := &model.CredentialRecord{
		UserID:           userID,
		Label:            label,
		EncryptedSession: enc,
		PassphraseHash:   hash,
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("credential record saved", zap.Int64("user_id", userID))
	return rec, nil
}

// Unlock verifies the passphrase and decrypts the stored session blob.
// A hash mismatch returns errs.ErrInvalidPassphrase without touching the
// ciphertext; a post-verification decryption failure surfaces as
// errs.ErrDecryptFailed and indicates a corrupt record.
func (s *CredentialServiceImpl) Unlock(rec *model.CredentialRecord, passphrase string) ([]byte, error) {
	if rec == nil || len(rec.EncryptedSession) == 0 || len(rec.PassphraseHash) == 0 {
		return nil, errs.ErrNotFound
	}
	if !secret.VerifyPassphrase(passphrase, rec.PassphraseHash) {
		return nil, errs.ErrInvalidPassphrase
	}
	return secret.Decrypt(rec.EncryptedSession, passphrase)
}

// Delete removes the record for userID.
func (s *CredentialServiceImpl) Delete(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, errors.New("validation: empty userID")
	}
	n, err := s.repo.Delete(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("credential record deleted", zap.Int64("user_id", userID))
	}
	return n, nil
}
