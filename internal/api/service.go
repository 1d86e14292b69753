// internal/api/service.go
package api

import (
	"context"
	"fmt"

	"github.com/paystream/paystream/internal/queue"
	"github.com/paystream/paystream/internal/storage"
	"github.com/paystream/paystream/pkg/config"
	"github.com/paystream/paystream/pkg/health"
	"github.com/paystream/paystream/pkg/service"
)

// APIService wraps the API server as a Service
type APIService struct {
	server *Server
	cfg    *config.Config
	store  storage.TransactionStore
	jobs   queue.Producer
	checks map[string]health.Checker
	deps   []string
	status service.Status
}

// NewAPIService creates a new API service
func NewAPIService(cfg *config.Config, store storage.TransactionStore, jobs queue.Producer) *APIService {
	return &APIService{
		cfg:    cfg,
		store:  store,
		jobs:   jobs,
		checks: make(map[string]health.Checker),
		status: service.StatusStopped,
	}
}

// WithHealthCheck adds a dependency check registered when the service
// starts. Used to surface sibling service liveness, such as the
// settlement worker, on the API's health roll-up.
func (s *APIService) WithHealthCheck(name string, checker health.Checker) *APIService {
	s.checks[name] = checker
	return s
}

// Name returns the service name
func (s *APIService) Name() string {
	return "api"
}

// Start initializes and starts the service
func (s *APIService) Start(ctx context.Context) error {
	s.status = service.StatusStarting

	s.server = NewServer(Options{
		Port:               s.cfg.API.Port,
		Version:            s.cfg.API.Version,
		CORSAllowedOrigins: s.cfg.API.CORSAllowedOrigins,
		RateLimitPerMinute: s.cfg.API.RateLimitPerMinute,
		LogLevel:           s.cfg.Log.Level,
		LogEnvironment:     s.cfg.Log.Environment,
		MetricsNamespace:   s.cfg.Metrics.Namespace,
	}, s.store, s.jobs)

	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := s.store.(pinger); ok {
		s.server.RegisterHealthCheck("redis", health.RedisChecker(s.cfg.Redis.Address, p.Ping))
	}
	if p, ok := s.jobs.(pinger); ok {
		s.server.RegisterHealthCheck("queue", health.KafkaChecker(s.cfg.Kafka.Brokers, p.Ping))
	}
	for name, checker := range s.checks {
		s.server.RegisterHealthCheck(name, checker)
	}

	go s.server.Start()

	s.status = service.StatusRunning
	return nil
}

// Stop gracefully shuts down the service
func (s *APIService) Stop(ctx context.Context) error {
	s.status = service.StatusStopping

	if s.server != nil {
		s.server.Shutdown(ctx)
	}

	s.status = service.StatusStopped
	return nil
}

// Status returns the current service status
func (s *APIService) Status() service.Status {
	return s.status
}

// Health performs a health check
func (s *APIService) Health() error {
	if s.status != service.StatusRunning {
		return fmt.Errorf("service not running")
	}

	if s.server == nil {
		return fmt.Errorf("server not initialized")
	}

	if !s.server.Healthy(context.Background()) {
		return fmt.Errorf("dependency health checks failing")
	}

	return nil
}

// DependsOn records services that must be started before this one
func (s *APIService) DependsOn(names ...string) *APIService {
	s.deps = append(s.deps, names...)
	return s
}

// Dependencies returns a list of services this service depends on
func (s *APIService) Dependencies() []string {
	return s.deps
}
