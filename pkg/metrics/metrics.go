// Package metrics provides metrics collection capabilities for the application.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metrics collectors for the application.
type Metrics struct {
	// Registry is the Prometheus registry for all metrics.
	Registry *prometheus.Registry

	// Common metrics
	RequestCount       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RequestInFlight    *prometheus.GaugeVec
	ErrorCount         *prometheus.CounterVec
	ServiceUptime      prometheus.Gauge
	ServiceLastStarted prometheus.Gauge

	// Ingestion metrics
	NotificationsIngested *prometheus.CounterVec

	// Queue metrics
	JobsEnqueued prometheus.Counter
	JobsConsumed prometheus.Counter

	// Settlement metrics
	TransactionsProcessed prometheus.Counter
	DuplicateJobsSkipped  prometheus.Counter
	SettlementDuration    prometheus.Histogram
}

// Config holds the configuration for metrics.
type Config struct {
	// Namespace is the Prometheus namespace for all metrics.
	Namespace string
	// Subsystem is the Prometheus subsystem for all metrics.
	Subsystem string
	// ServiceName is the name of the service that is collecting metrics.
	ServiceName string
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Namespace:   "paystream",
		Subsystem:   "",
		ServiceName: "paystream",
	}
}

// New creates a new metrics collector with the given configuration.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		Registry: registry,

		RequestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_total",
				Help:      "Total number of requests received",
			},
			[]string{"service", "method", "path", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "path"},
		),

		RequestInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_in_flight",
				Help:      "Current number of requests being processed",
			},
			[]string{"service"},
		),

		ErrorCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type", "code"},
		),

		ServiceUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "service_uptime_seconds",
				Help:      "Service uptime in seconds",
				ConstLabels: prometheus.Labels{
					"service": cfg.ServiceName,
				},
			},
		),

		ServiceLastStarted: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "service_last_started_timestamp",
				Help:      "Timestamp when the service was last started",
				ConstLabels: prometheus.Labels{
					"service": cfg.ServiceName,
				},
			},
		),

		NotificationsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "notifications_total",
				Help:      "Total number of webhook notifications by outcome",
			},
			[]string{"outcome"},
		),

		JobsEnqueued: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "queue",
				Name:      "jobs_enqueued_total",
				Help:      "Total number of processing jobs enqueued",
			},
		),

		JobsConsumed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "queue",
				Name:      "jobs_consumed_total",
				Help:      "Total number of processing jobs consumed",
			},
		),

		TransactionsProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "settlement",
				Name:      "transactions_processed_total",
				Help:      "Total number of transactions transitioned to PROCESSED",
			},
		),

		DuplicateJobsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "settlement",
				Name:      "duplicate_jobs_skipped_total",
				Help:      "Total number of redelivered jobs skipped as already processed",
			},
		),

		SettlementDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "settlement",
				Name:      "duration_seconds",
				Help:      "End-to-end settlement duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
	}

	m.ServiceLastStarted.Set(float64(time.Now().Unix()))

	return m
}

// Handler returns an HTTP handler for exposing metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordUptime starts a goroutine that updates the service uptime metric.
func (m *Metrics) RecordUptime(done <-chan struct{}) {
	startTime := time.Now()
	ticker := time.NewTicker(1 * time.Second)

	go func() {
		for {
			select {
			case <-ticker.C:
				m.ServiceUptime.Set(time.Since(startTime).Seconds())
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
}

// RecordRequest records metrics for an HTTP request.
func (m *Metrics) RecordRequest(service, method, path string, status int, duration time.Duration) {
	m.RequestCount.WithLabelValues(service, method, path, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error metric.
func (m *Metrics) RecordError(service, errorType, errorCode string) {
	m.ErrorCount.WithLabelValues(service, errorType, errorCode).Inc()
}

// RecordIngestOutcome records the outcome of a webhook notification
// ("created", "duplicate" or "rejected").
func (m *Metrics) RecordIngestOutcome(outcome string) {
	m.NotificationsIngested.WithLabelValues(outcome).Inc()
}

// RecordSettlement records a completed settlement and its duration since
// the transaction was created.
func (m *Metrics) RecordSettlement(sinceCreated time.Duration) {
	m.TransactionsProcessed.Inc()
	m.SettlementDuration.Observe(sinceCreated.Seconds())
}
