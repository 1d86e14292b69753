// internal/storage/store.go

// Package storage provides durable keyed storage of transaction records.
// The only schema-level invariant is uniqueness on the transaction ID.
package storage

import (
	"context"
	"time"

	"github.com/paystream/paystream/internal/transaction"
)

// TransactionStore is the contract all transaction storage backends
// implement. All mutation goes through its atomic operations; callers
// never need external locking.
type TransactionStore interface {
	// Create inserts a new transaction record. If a record with the same
	// transaction ID already exists it returns an error matching
	// errors.ErrAlreadyExists, which ingestion treats as benign.
	Create(ctx context.Context, tx *transaction.Transaction) error

	// Get returns the current record, or an error matching
	// errors.ErrNotFound when the ID is unknown.
	Get(ctx context.Context, transactionID string) (*transaction.Transaction, error)

	// MarkProcessed atomically transitions a record to PROCESSED with the
	// given timestamp, only if its status is still PROCESSING. It returns
	// false with no error when the record was already PROCESSED, so a
	// second concurrent attempt is a safe no-op. Returns an error matching
	// errors.ErrNotFound when the record does not exist.
	MarkProcessed(ctx context.Context, transactionID string, processedAt time.Time) (bool, error)
}
