// internal/processor/service.go
package processor

import (
	"context"
	"fmt"

	"github.com/paystream/paystream/pkg/service"
)

// SettlementWorkerService wraps the SettlementWorker as a Service
type SettlementWorkerService struct {
	worker *SettlementWorker
	cancel context.CancelFunc
	status service.Status
}

// NewSettlementWorkerService creates a new settlement worker service
func NewSettlementWorkerService(worker *SettlementWorker) *SettlementWorkerService {
	return &SettlementWorkerService{
		worker: worker,
		status: service.StatusStopped,
	}
}

// Name returns the service name
func (s *SettlementWorkerService) Name() string {
	return "settlement-worker"
}

// Start launches the worker's consume loop
func (s *SettlementWorkerService) Start(ctx context.Context) error {
	s.status = service.StatusStarting

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.worker.Run(runCtx)

	s.status = service.StatusRunning
	return nil
}

// Stop cancels the worker's consume loop
func (s *SettlementWorkerService) Stop(ctx context.Context) error {
	s.status = service.StatusStopping

	if s.cancel != nil {
		s.cancel()
	}

	s.status = service.StatusStopped
	return nil
}

// Status returns the current service status
func (s *SettlementWorkerService) Status() service.Status {
	return s.status
}

// Health performs a health check
func (s *SettlementWorkerService) Health() error {
	if s.status != service.StatusRunning {
		return fmt.Errorf("service not running")
	}
	return nil
}

// Dependencies returns a list of services this service depends on
func (s *SettlementWorkerService) Dependencies() []string {
	return []string{}
}
