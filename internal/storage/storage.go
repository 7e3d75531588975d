package storage

import (
	"context"

	"github.com/mselser95/vault-factory/pkg/types"
)

// Storage is the ledger of terminal vault creation submissions.
type Storage interface {
	// StoreSubmission records a succeeded or failed submission.
	StoreSubmission(ctx context.Context, record *types.SubmissionRecord) error

	// Close closes the storage connection.
	Close() error
}
