// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/nkotelnikov/telesweep/internal/model"
)

// CredentialRepository provides atomic access to per-user credential records.
type CredentialRepository interface {
	// Get loads the record for userID, errs.ErrNotFound when absent.
	Get(ctx context.Context, userID int64) (*model.CredentialRecord, error)
	// Upsert writes the record in a single insert-or-replace statement.
	Upsert(ctx context.Context, rec *model.CredentialRecord) error
	// Delete removes the record and reports how many rows went away (0 or 1).
	Delete(ctx context.Context, userID int64) (int64, error)
}
