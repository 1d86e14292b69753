// internal/processor/worker.go

// Package processor implements the settlement worker that consumes
// processing jobs and transitions transactions to their terminal state.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/paystream/paystream/internal/queue"
	"github.com/paystream/paystream/internal/storage"
	"github.com/paystream/paystream/internal/transaction"
	pkgerrors "github.com/paystream/paystream/pkg/errors"
	"github.com/paystream/paystream/pkg/logging"
	"github.com/paystream/paystream/pkg/metrics"
)

// SettlementWorker consumes jobs from the queue, performs the settlement
// wait, and marks transactions PROCESSED. Multiple workers may run
// against the same queue; the store's conditional update keeps duplicate
// deliveries harmless.
type SettlementWorker struct {
	store    storage.TransactionStore
	consumer queue.Consumer
	// delay is the simulated settlement step. The record is read before
	// the wait and written after it; no lock is held across the wait.
	delay       time.Duration
	maxInFlight int
	logger      *logging.Logger
	metrics     *metrics.Metrics

	wg sync.WaitGroup
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(
	store storage.TransactionStore,
	consumer queue.Consumer,
	delay time.Duration,
	maxInFlight int,
	logger *logging.Logger,
	m *metrics.Metrics,
) *SettlementWorker {
	if maxInFlight < 1 {
		maxInFlight = 1
	}

	return &SettlementWorker{
		store:       store,
		consumer:    consumer,
		delay:       delay,
		maxInFlight: maxInFlight,
		logger:      logger,
		metrics:     m,
	}
}

// Run consumes jobs until the context is cancelled. In-flight jobs are
// bounded by maxInFlight; Run returns once outstanding jobs finish.
func (w *SettlementWorker) Run(ctx context.Context) {
	w.logger.Info("Settlement worker started",
		"settlement_delay", w.delay.String(),
		"max_in_flight", w.maxInFlight,
	)

	sem := make(chan struct{}, w.maxInFlight)

	for {
		job, err := w.consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Error("Error reading job", "error", err)
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			w.wg.Wait()
			w.logger.Info("Settlement worker shutting down")
			return
		}

		w.wg.Add(1)
		go func(job *queue.Job) {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.process(ctx, job)
		}(job)
	}

	w.wg.Wait()
	w.logger.Info("Settlement worker shutting down")
}

// process handles a single job. It only acks deliveries that reached a
// final outcome; anything transient is left for redelivery.
func (w *SettlementWorker) process(ctx context.Context, job *queue.Job) {
	w.metrics.JobsConsumed.Inc()

	log := w.logger.WithField("transaction_id", job.TransactionID).WithField("job_id", job.ID)

	tx, err := w.store.Get(ctx, job.TransactionID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			// Jobs are enqueued only after a successful create, so a
			// missing record is an ordering bug, not a transient fault.
			// Redelivering would loop forever.
			log.Error("Job references a transaction that does not exist", "error", err)
			w.ack(job, log)
			return
		}
		log.Error("Failed to load transaction", "error", err)
		return
	}

	if tx.Status == transaction.Processed {
		// Duplicate delivery of an already settled transaction.
		w.metrics.DuplicateJobsSkipped.Inc()
		w.ack(job, log)
		return
	}

	// Settlement wait. Interrupted waits are not acked, so the job is
	// redelivered after a restart.
	select {
	case <-time.After(w.delay):
	case <-ctx.Done():
		return
	}

	applied, err := w.store.MarkProcessed(ctx, tx.TransactionID, time.Now())
	if err != nil {
		log.Error("Failed to mark transaction processed", "error", err)
		return
	}

	if applied {
		w.metrics.RecordSettlement(time.Since(tx.CreatedAt))
		log.Info("Transaction processed")
	} else {
		// Another worker settled this transaction during our wait.
		w.metrics.DuplicateJobsSkipped.Inc()
	}

	w.ack(job, log)
}

func (w *SettlementWorker) ack(job *queue.Job, log *logging.Logger) {
	if err := job.Ack(); err != nil {
		log.Error("Failed to commit job", "error", err)
	}
}
