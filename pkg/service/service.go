// Package service provides interfaces and utilities for managing service lifecycle.
// It defines a common Service interface that all long-running components implement,
// along with a registry for coordinating startup and shutdown.
package service

import (
	"context"
)

// Status represents the current state of a service.
type Status string

const (
	// StatusStopped indicates the service is not running.
	StatusStopped Status = "STOPPED"
	// StatusStarting indicates the service is in the process of starting.
	StatusStarting Status = "STARTING"
	// StatusRunning indicates the service is running normally.
	StatusRunning Status = "RUNNING"
	// StatusStopping indicates the service is in the process of stopping.
	StatusStopping Status = "STOPPING"
	// StatusError indicates the service encountered an error.
	StatusError Status = "ERROR"
)

// Service defines the interface that all services must implement.
type Service interface {
	// Name returns the service name.
	Name() string

	// Start initializes and starts the service. It should be non-blocking
	// and return quickly, with any long-running work started in separate
	// goroutines.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service.
	Stop(ctx context.Context) error

	// Status returns the current service status.
	Status() Status

	// Health performs a health check and returns an error if unhealthy.
	Health() error

	// Dependencies returns the names of services this service depends on.
	// The registry uses this to determine start and stop order.
	Dependencies() []string
}
