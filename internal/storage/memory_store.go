// internal/storage/memory_store.go
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paystream/paystream/internal/transaction"
	pkgerrors "github.com/paystream/paystream/pkg/errors"
)

// MemoryStore is an in-memory TransactionStore guarded by a mutex. It
// honors the same contract as the Redis store and backs tests that do
// not want a live Redis.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*transaction.Transaction
}

// NewMemoryStore creates an empty in-memory transaction store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*transaction.Transaction),
	}
}

// clone copies a record so callers and the store never share pointers
func clone(tx *transaction.Transaction) *transaction.Transaction {
	c := *tx
	if tx.ProcessedAt != nil {
		ts := *tx.ProcessedAt
		c.ProcessedAt = &ts
	}
	return &c
}

// Create inserts a new transaction record
func (s *MemoryStore) Create(ctx context.Context, tx *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[tx.TransactionID]; exists {
		return pkgerrors.NewStorageError(pkgerrors.StorageErrDuplicateKey,
			fmt.Sprintf("transaction %s already exists", tx.TransactionID),
			pkgerrors.ErrAlreadyExists)
	}

	s.records[tx.TransactionID] = clone(tx)
	return nil
}

// Get retrieves a transaction record by ID
func (s *MemoryStore) Get(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.records[transactionID]
	if !exists {
		return nil, pkgerrors.NewStorageError(pkgerrors.StorageErrNotFound,
			fmt.Sprintf("transaction %s not found", transactionID),
			pkgerrors.ErrNotFound)
	}

	return clone(tx), nil
}

// MarkProcessed conditionally transitions a record to PROCESSED
func (s *MemoryStore) MarkProcessed(ctx context.Context, transactionID string, processedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.records[transactionID]
	if !exists {
		return false, pkgerrors.NewStorageError(pkgerrors.StorageErrNotFound,
			fmt.Sprintf("transaction %s not found", transactionID),
			pkgerrors.ErrNotFound)
	}

	if tx.Status == transaction.Processed {
		return false, nil
	}

	ts := processedAt.UTC()
	tx.Status = transaction.Processed
	tx.ProcessedAt = &ts
	return true, nil
}
