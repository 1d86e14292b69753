// internal/queue/queue.go

// Package queue provides the asynchronous job queue between ingestion
// and the settlement worker. Delivery is at-least-once: a job may be
// redelivered but is never silently dropped.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is the unit of work carried by the queue. The payload is the bare
// transaction ID; the job ID and enqueue timestamp exist for logging and
// tracing redeliveries.
type Job struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	EnqueuedAt    time.Time `json:"enqueued_at"`

	// ack is set by the consuming backend and commits the delivery.
	ack func() error
}

// NewJob creates a job for the given transaction ID
func NewJob(transactionID string) *Job {
	return &Job{
		ID:            uuid.New().String(),
		TransactionID: transactionID,
		EnqueuedAt:    time.Now().UTC(),
	}
}

// WithAck attaches the delivery commit hook. Consuming backends call
// this before handing the job to a worker.
func (j *Job) WithAck(ack func() error) *Job {
	j.ack = ack
	return j
}

// Ack commits the job delivery so it is not redelivered
func (j *Job) Ack() error {
	if j.ack == nil {
		return nil
	}
	return j.ack()
}

// ToJSON serializes the job to JSON
func (j *Job) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// JobFromJSON deserializes a job from JSON
func JobFromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to deserialize job: %w", err)
	}
	return &j, nil
}

// Producer enqueues processing jobs
type Producer interface {
	// Enqueue publishes a processing job for the given transaction ID.
	Enqueue(ctx context.Context, transactionID string) error
}

// Consumer delivers processing jobs to a worker
type Consumer interface {
	// Next blocks until a job is available or the context is cancelled.
	Next(ctx context.Context) (*Job, error)

	// Close releases the consumer's resources.
	Close() error
}
