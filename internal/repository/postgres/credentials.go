package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/model"
)

// CredentialRepo implements repository.CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// Get selects the record for userID.
func (r *CredentialRepo) Get(ctx context.Context, userID int64) (*model.CredentialRecord, error) {
	const q = `
SELECT user_id, label, encrypted_session, passphrase_hash, created_at, updated_at
FROM user_credentials WHERE user_id=$1`
	row := r.db.Pool.QueryRow(ctx, q, userID)
	var rec model.CredentialRecord
	if err := row.Scan(&rec.UserID, &rec.Label, &rec.EncryptedSession, &rec.PassphraseHash, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return &rec, nil
}

// Upsert writes the record with insert-or-replace semantics in one statement,
// so concurrent readers never observe a half-written record. The schema rejects
// rows with an empty session or hash.
func (r *CredentialRepo) Upsert(ctx context.Context, rec *model.CredentialRecord) error {
	const q = `
INSERT INTO user_credentials (user_id, label, encrypted_session, passphrase_hash)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET label = EXCLUDED.label,
    encrypted_session = EXCLUDED.encrypted_session,
    passphrase_hash = EXCLUDED.passphrase_hash,
    updated_at = now()`
	if _, err := r.db.Pool.Exec(ctx, q, rec.UserID, rec.Label, rec.EncryptedSession, rec.PassphraseHash); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the record for userID.
func (r *CredentialRepo) Delete(ctx context.Context, userID int64) (int64, error) {
	const q = `DELETE FROM user_credentials WHERE user_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
