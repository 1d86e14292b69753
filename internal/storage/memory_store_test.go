package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paystream/paystream/internal/transaction"
	pkgerrors "github.com/paystream/paystream/pkg/errors"
)

func newTestTransaction(t *testing.T, id string) *transaction.Transaction {
	t.Helper()

	tx, err := transaction.New(&transaction.Notification{
		TransactionID:      id,
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             decimal.RequireFromString("10.50"),
		Currency:           "USD",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to build transaction: %v", err)
	}
	return tx
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tx := newTestTransaction(t, "T1")
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	got, err := store.Get(ctx, "T1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if got.TransactionID != "T1" {
		t.Fatalf("expected transaction T1, got %s", got.TransactionID)
	}
	if got.Status != transaction.Processing {
		t.Fatalf("expected status %s, got %s", transaction.Processing, got.Status)
	}
}

func TestMemoryStoreCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, newTestTransaction(t, "T1")); err != nil {
		t.Fatalf("expected first create to succeed, got %v", err)
	}

	err := store.Create(ctx, newTestTransaction(t, "T1"))
	if err == nil {
		t.Fatal("expected duplicate create to fail, got nil")
	}
	if !pkgerrors.Is(err, pkgerrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for unknown transaction, got nil")
	}
	if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreMarkProcessed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, newTestTransaction(t, "T1")); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	applied, err := store.MarkProcessed(ctx, "T1", first)
	if err != nil {
		t.Fatalf("expected mark to succeed, got %v", err)
	}
	if !applied {
		t.Fatal("expected first mark to be applied")
	}

	// Redelivery must leave the original settlement timestamp intact.
	applied, err = store.MarkProcessed(ctx, "T1", first.Add(time.Hour))
	if err != nil {
		t.Fatalf("expected repeat mark to succeed, got %v", err)
	}
	if applied {
		t.Fatal("expected repeat mark to be a no-op")
	}

	got, err := store.Get(ctx, "T1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if got.Status != transaction.Processed {
		t.Fatalf("expected status %s, got %s", transaction.Processed, got.Status)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(first) {
		t.Fatalf("expected processed_at %v, got %v", first, got.ProcessedAt)
	}
}

func TestMemoryStoreMarkProcessedNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.MarkProcessed(context.Background(), "missing", time.Now())
	if err == nil {
		t.Fatal("expected error for unknown transaction, got nil")
	}
	if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreMarkProcessedConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, newTestTransaction(t, "T1")); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkProcessed(ctx, "T1", time.Now().UTC())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("expected exactly one winning update, got %d", applied)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, newTestTransaction(t, "T1")); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	got, err := store.Get(ctx, "T1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	got.Status = transaction.Processed

	again, err := store.Get(ctx, "T1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if again.Status != transaction.Processing {
		t.Fatalf("expected stored record to be unaffected by caller mutation, got %s", again.Status)
	}

	// The processed_at pointer must not alias stored state either.
	settled := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := store.MarkProcessed(ctx, "T1", settled); err != nil {
		t.Fatalf("expected mark to succeed, got %v", err)
	}

	got, err = store.Get(ctx, "T1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	*got.ProcessedAt = got.ProcessedAt.Add(time.Hour)

	again, err = store.Get(ctx, "T1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if !again.ProcessedAt.Equal(settled) {
		t.Fatalf("expected stored processed_at %v unaffected by caller mutation, got %v", settled, again.ProcessedAt)
	}
}
