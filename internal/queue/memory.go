// internal/queue/memory.go
package queue

import (
	"context"
)

// MemoryQueue is a buffered-channel queue implementing both Producer and
// Consumer. It backs tests and single-process deployments; jobs are not
// durable across restarts.
type MemoryQueue struct {
	jobs chan *Job
}

// NewMemoryQueue creates an in-memory queue with the given buffer size
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		jobs: make(chan *Job, size),
	}
}

// Enqueue publishes a processing job for the given transaction ID
func (q *MemoryQueue) Enqueue(ctx context.Context, transactionID string) error {
	job := NewJob(transactionID)
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Redeliver re-queues an existing job, simulating at-least-once
// redelivery by the transport.
func (q *MemoryQueue) Redeliver(ctx context.Context, job *Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next blocks until a job is available or the context is cancelled
func (q *MemoryQueue) Next(ctx context.Context) (*Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of jobs currently buffered
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Close is a no-op for the in-memory queue
func (q *MemoryQueue) Close() error {
	return nil
}
