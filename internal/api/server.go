// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/paystream/paystream/internal/queue"
	"github.com/paystream/paystream/internal/storage"
	"github.com/paystream/paystream/internal/transaction"
	pkgerrors "github.com/paystream/paystream/pkg/errors"
	"github.com/paystream/paystream/pkg/health"
	"github.com/paystream/paystream/pkg/logging"
	"github.com/paystream/paystream/pkg/metrics"
)

// Server represents the API server
type Server struct {
	config           *serverConfig
	router           *chi.Mux
	store            storage.TransactionStore
	jobs             queue.Producer
	server           *http.Server
	logger           *logging.Logger
	metricsCollector *metrics.Metrics
	healthRegistry   *health.Registry
	clock            func() time.Time
}

// serverConfig is the subset of application configuration the server needs
type serverConfig struct {
	Port               string
	Version            string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	LogLevel           string
	LogEnvironment     string
	MetricsNamespace   string
}

// Options configures a Server
type Options struct {
	Port               string
	Version            string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	LogLevel           string
	LogEnvironment     string
	MetricsNamespace   string

	// Clock overrides the time source; tests inject a fixed clock.
	Clock func() time.Time
}

// NewServer creates a new API server
func NewServer(opts Options, store storage.TransactionStore, jobs queue.Producer) *Server {
	r := chi.NewRouter()

	logCfg := logging.Config{
		Level:       logging.LogLevel(opts.LogLevel),
		Output:      log.Writer(),
		ServiceName: "api",
		Environment: opts.LogEnvironment,
	}
	logger := logging.New(logCfg)

	metricsCfg := metrics.Config{
		Namespace:   opts.MetricsNamespace,
		Subsystem:   "api",
		ServiceName: "api",
	}
	metricsCollector := metrics.New(metricsCfg)

	healthRegistry := health.NewRegistry(logger)

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Server{
		config: &serverConfig{
			Port:               opts.Port,
			Version:            opts.Version,
			CORSAllowedOrigins: opts.CORSAllowedOrigins,
			RateLimitPerMinute: opts.RateLimitPerMinute,
			LogLevel:           opts.LogLevel,
			LogEnvironment:     opts.LogEnvironment,
			MetricsNamespace:   opts.MetricsNamespace,
		},
		router:           r,
		store:            store,
		jobs:             jobs,
		logger:           logger,
		metricsCollector: metricsCollector,
		healthRegistry:   healthRegistry,
		clock:            clock,
		server: &http.Server{
			Addr:    ":" + opts.Port,
			Handler: r,
		},
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupHealthChecks()

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)

	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(MetricsMiddleware(s.metricsCollector, "api"))
	s.router.Use(RecovererWithMetrics(s.logger, s.metricsCollector, "api"))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/metrics", s.metricsCollector.Handler().ServeHTTP)

	s.router.Group(func(r chi.Router) {
		// The webhook is the only write path; rate limit it per source IP.
		if s.config.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.config.RateLimitPerMinute, 1*time.Minute))
		}
		r.Post("/webhook/transactions", s.handleWebhook)
	})

	s.router.Get("/transactions/{transactionID}", s.handleGetTransaction)
}

// setupHealthChecks configures health checks for the server
func (s *Server) setupHealthChecks() {
	s.healthRegistry.Register("api", health.ServiceChecker("api", func(ctx context.Context) error {
		return nil // API server is healthy if this code is running
	}))
}

// RegisterHealthCheck adds a dependency check to the health roll-up
func (s *Server) RegisterHealthCheck(name string, checker health.Checker) {
	s.healthRegistry.Register(name, checker)
}

// Healthy reports whether every registered check passes
func (s *Server) Healthy(ctx context.Context) bool {
	return s.healthRegistry.IsHealthy(ctx)
}

// Start starts the API server
func (s *Server) Start() {
	s.logger.Info("Starting API server", "port", s.config.Port)

	s.metricsCollector.ServiceLastStarted.Set(float64(time.Now().Unix()))

	uptimeDone := make(chan struct{})
	s.metricsCollector.RecordUptime(uptimeDone)
	defer close(uptimeDone)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Error starting server", "error", err)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("Shutting down API server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Error during server shutdown", "error", err)
	}
	s.logger.Info("API server shutdown complete")
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// handleWebhook handles inbound transaction notifications. Ingestion is
// fire-and-forget: the caller gets 202 as soon as the record exists,
// whether it was just created or was already known.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var notif transaction.Notification
	if err := json.NewDecoder(r.Body).Decode(&notif); err != nil {
		s.metricsCollector.RecordIngestOutcome("rejected")
		s.renderError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := transaction.New(&notif, s.clock())
	if err != nil {
		s.metricsCollector.RecordIngestOutcome("rejected")
		s.renderError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.Create(r.Context(), tx); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrAlreadyExists) {
			// Duplicate delivery: the record exists and a job was already
			// enqueued for it. Do not enqueue again; still acknowledge.
			s.metricsCollector.RecordIngestOutcome("duplicate")
			s.renderAccepted(w)
			return
		}
		s.logger.Error("Failed to store transaction", "transaction_id", tx.TransactionID, "error", err)
		s.renderError(w, "Failed to record transaction", http.StatusInternalServerError)
		return
	}

	if err := s.jobs.Enqueue(r.Context(), tx.TransactionID); err != nil {
		// The record exists but no job was published. Queue redelivery
		// cannot recover this; surface it so the sender retries.
		s.logger.Error("Failed to enqueue processing job", "transaction_id", tx.TransactionID, "error", err)
		s.renderError(w, "Failed to schedule processing", http.StatusInternalServerError)
		return
	}

	s.metricsCollector.RecordIngestOutcome("created")
	s.metricsCollector.JobsEnqueued.Inc()
	s.renderAccepted(w)
}

// handleGetTransaction handles transaction lookup requests. It returns
// whatever state is currently persisted and never waits for in-flight
// processing.
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	tx, err := s.store.Get(r.Context(), transactionID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			s.renderError(w, "Transaction not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to retrieve transaction", "transaction_id", transactionID, "error", err)
		s.renderError(w, "Failed to retrieve transaction", http.StatusInternalServerError)
		return
	}

	resp := Response{
		Success: true,
		Data:    tx,
	}

	s.renderJSON(w, resp, http.StatusOK)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.healthRegistry.RunChecks(r.Context())

	status := health.StatusUp
	for _, check := range checks {
		if check.Status == health.StatusDown {
			status = health.StatusDown
			break
		} else if check.Status == health.StatusUnknown && status != health.StatusDown {
			status = health.StatusUnknown
		}
	}

	httpStatus := http.StatusOK
	if status == health.StatusDown {
		httpStatus = http.StatusServiceUnavailable
	}

	resp := Response{
		Success: status == health.StatusUp,
		Message: "Service health status: " + string(status),
		Data: map[string]interface{}{
			"status":       status,
			"current_time": s.clock().UTC(),
			"version":      s.config.Version,
			"checks":       checks,
			"system": map[string]interface{}{
				"go_version":    runtime.Version(),
				"go_goroutines": runtime.NumGoroutine(),
				"go_cpus":       runtime.NumCPU(),
			},
		},
	}

	s.renderJSON(w, resp, httpStatus)
}

// renderAccepted renders the fire-and-forget acknowledgment
func (s *Server) renderAccepted(w http.ResponseWriter) {
	resp := Response{
		Success: true,
		Message: "Accepted",
	}

	s.renderJSON(w, resp, http.StatusAccepted)
}

// renderJSON renders a JSON response
func (s *Server) renderJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Error encoding JSON response", "error", err)
	}
}

// renderError renders an error response
func (s *Server) renderError(w http.ResponseWriter, message string, status int) {
	s.metricsCollector.RecordError("api", "http", strconv.Itoa(status))

	resp := Response{
		Success: false,
		Error:   message,
	}

	s.renderJSON(w, resp, status)
}
