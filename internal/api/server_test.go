package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paystream/paystream/internal/processor"
	"github.com/paystream/paystream/internal/queue"
	"github.com/paystream/paystream/internal/storage"
	"github.com/paystream/paystream/internal/transaction"
	"github.com/paystream/paystream/pkg/config"
	"github.com/paystream/paystream/pkg/health"
	"github.com/paystream/paystream/pkg/logging"
	"github.com/paystream/paystream/pkg/metrics"
)

func newTestServer(t *testing.T, store storage.TransactionStore, jobs queue.Producer, clock func() time.Time) *Server {
	t.Helper()

	return NewServer(Options{
		Port:               "0",
		Version:            "test",
		CORSAllowedOrigins: []string{"*"},
		RateLimitPerMinute: 0,
		LogLevel:           "error",
		LogEnvironment:     "test",
		MetricsNamespace:   "paystream_test",
		Clock:              clock,
	}, store, jobs)
}

func postWebhook(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook/transactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const validPayload = `{
	"transaction_id": "T1",
	"source_account": "ACC-1",
	"destination_account": "ACC-2",
	"amount": "100.50",
	"currency": "USD"
}`

func TestWebhookAcceptsNotification(t *testing.T) {
	store := storage.NewMemoryStore()
	jobs := queue.NewMemoryQueue(8)
	srv := newTestServer(t, store, jobs, nil)

	rec := postWebhook(t, srv.Handler(), validPayload)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rec.Code, rec.Body)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.Message != "Accepted" {
		t.Fatalf("unexpected acknowledgment: %+v", resp)
	}

	tx, err := store.Get(context.Background(), "T1")
	if err != nil {
		t.Fatalf("expected transaction to be stored, got %v", err)
	}
	if tx.Status != transaction.Processing {
		t.Fatalf("expected status %s, got %s", transaction.Processing, tx.Status)
	}
	if tx.ProcessedAt != nil {
		t.Fatalf("expected processed_at to be unset, got %v", tx.ProcessedAt)
	}
	if jobs.Len() != 1 {
		t.Fatalf("expected one enqueued job, got %d", jobs.Len())
	}
}

func TestWebhookSwallowsDuplicates(t *testing.T) {
	store := storage.NewMemoryStore()
	jobs := queue.NewMemoryQueue(8)
	srv := newTestServer(t, store, jobs, nil)

	for i := 0; i < 3; i++ {
		rec := postWebhook(t, srv.Handler(), validPayload)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("delivery %d: expected status 202, got %d", i, rec.Code)
		}
	}

	if jobs.Len() != 1 {
		t.Fatalf("expected duplicates to enqueue nothing, got %d jobs", jobs.Len())
	}
}

func TestWebhookRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"transaction_id": `},
		{"missing transaction_id", `{"source_account":"A","destination_account":"B","amount":"1.00","currency":"USD"}`},
		{"missing amount", `{"transaction_id":"T9","source_account":"A","destination_account":"B","currency":"USD"}`},
		{"negative amount", `{"transaction_id":"T9","source_account":"A","destination_account":"B","amount":"-5.00","currency":"USD"}`},
		{"non-numeric amount", `{"transaction_id":"T9","source_account":"A","destination_account":"B","amount":"lots","currency":"USD"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			jobs := queue.NewMemoryQueue(8)
			srv := newTestServer(t, store, jobs, nil)

			rec := postWebhook(t, srv.Handler(), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body)
			}
			if jobs.Len() != 0 {
				t.Fatalf("expected nothing enqueued, got %d jobs", jobs.Len())
			}
		})
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStore(), queue.NewMemoryQueue(1), nil)

	rec := getPath(t, srv.Handler(), "/transactions/unknown")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rec.Code, rec.Body)
	}
}

func TestGetTransactionRendersStoredState(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := newTestServer(t, store, queue.NewMemoryQueue(8), nil)

	rec := postWebhook(t, srv.Handler(), validPayload)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}

	rec = getPath(t, srv.Handler(), "/transactions/T1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Success bool                    `json:"success"`
		Data    transaction.Transaction `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.TransactionID != "T1" {
		t.Fatalf("expected transaction T1, got %s", resp.Data.TransactionID)
	}
	if resp.Data.Status != transaction.Processing {
		t.Fatalf("expected status %s, got %s", transaction.Processing, resp.Data.Status)
	}
	if !strings.Contains(rec.Body.String(), `"amount":"100.50"`) {
		t.Fatalf("expected amount rendered as a fixed-point string, got %s", rec.Body)
	}
}

func TestWebhookToLookupLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemoryStore()
	jobs := queue.NewMemoryQueue(8)
	srv := newTestServer(t, store, jobs, nil)

	logger := logging.New(logging.Config{
		Level:       logging.ErrorLevel,
		Output:      io.Discard,
		ServiceName: "worker-test",
		Environment: "test",
	})
	worker := processor.NewSettlementWorker(store, jobs, 0, 4, logger, metrics.New(metrics.DefaultConfig()))
	go worker.Run(ctx)

	rec := postWebhook(t, srv.Handler(), validPayload)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rec.Code, rec.Body)
	}

	// The worker consumes the job the handler enqueued; poll the lookup
	// endpoint until the transaction settles.
	var got transaction.Transaction
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = getPath(t, srv.Handler(), "/transactions/T1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body)
		}

		var resp struct {
			Data transaction.Transaction `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		got = resp.Data

		if got.Status == transaction.Processed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transaction never settled, last status %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}
	if got.ProcessedAt.Before(got.CreatedAt) {
		t.Fatalf("processed_at %v precedes created_at %v", got.ProcessedAt, got.CreatedAt)
	}

	// A late duplicate delivery is still acknowledged and changes nothing.
	rec = postWebhook(t, srv.Handler(), validPayload)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 for duplicate, got %d", rec.Code)
	}

	tx, err := store.Get(ctx, "T1")
	if err != nil {
		t.Fatalf("expected transaction to remain stored, got %v", err)
	}
	if tx.Status != transaction.Processed || !tx.ProcessedAt.Equal(*got.ProcessedAt) {
		t.Fatalf("expected settled record untouched by duplicate, got status %s processed_at %v", tx.Status, tx.ProcessedAt)
	}
}

func TestHealthReportsCurrentTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(t, storage.NewMemoryStore(), queue.NewMemoryQueue(1), func() time.Time { return now })

	rec := getPath(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Status      string    `json:"status"`
			CurrentTime time.Time `json:"current_time"`
			Version     string    `json:"version"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected healthy response, got %s", rec.Body)
	}
	if !resp.Data.CurrentTime.Equal(now) {
		t.Fatalf("expected current_time %v, got %v", now, resp.Data.CurrentTime)
	}
	if resp.Data.Version != "test" {
		t.Fatalf("expected version test, got %s", resp.Data.Version)
	}
}

func TestHealthIncludesDependencyChecks(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStore(), queue.NewMemoryQueue(1), nil)

	srv.RegisterHealthCheck("redis", health.RedisChecker("localhost:6379", func(ctx context.Context) error {
		return nil
	}))
	srv.RegisterHealthCheck("queue", health.KafkaChecker("localhost:9092", func(ctx context.Context) error {
		return nil
	}))
	srv.RegisterHealthCheck("worker", health.DependencyChecker("worker", func(ctx context.Context) error {
		return nil
	}))

	rec := getPath(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Data struct {
			Checks map[string]struct {
				Status health.Status `json:"status"`
			} `json:"checks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, name := range []string{"api", "redis", "queue", "worker"} {
		check, ok := resp.Data.Checks[name]
		if !ok {
			t.Errorf("expected %s check in health roll-up, got %v", name, resp.Data.Checks)
			continue
		}
		if check.Status != health.StatusUp {
			t.Errorf("expected %s check to be %s, got %s", name, health.StatusUp, check.Status)
		}
	}

	if !srv.Healthy(context.Background()) {
		t.Fatal("expected server to report healthy with all checks passing")
	}
}

func TestHealthReportsFailingDependency(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStore(), queue.NewMemoryQueue(1), nil)

	srv.RegisterHealthCheck("redis", health.RedisChecker("localhost:6379", func(ctx context.Context) error {
		return context.DeadlineExceeded
	}))

	rec := getPath(t, srv.Handler(), "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", rec.Code, rec.Body)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected unhealthy response")
	}

	if srv.Healthy(context.Background()) {
		t.Fatal("expected server to report unhealthy with a failing check")
	}
}

func TestServerStartReturnsAfterShutdown(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStore(), queue.NewMemoryQueue(1), nil)

	done := make(chan struct{})
	go func() {
		srv.Start()
		close(done)
	}()

	// Give the listener a moment to come up before shutting down.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after graceful shutdown")
	}
}

func TestAPIServiceRegistersConfiguredChecks(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	cfg.API.Port = "0"
	cfg.Log.Level = "error"

	workerHealthy := false
	svc := NewAPIService(cfg, storage.NewMemoryStore(), queue.NewMemoryQueue(1)).
		WithHealthCheck("worker", health.DependencyChecker("worker", func(ctx context.Context) error {
			if !workerHealthy {
				return context.DeadlineExceeded
			}
			return nil
		})).
		DependsOn("settlement-worker")

	if got := svc.Dependencies(); len(got) != 1 || got[0] != "settlement-worker" {
		t.Fatalf("expected settlement-worker dependency, got %v", got)
	}

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("expected service to start, got %v", err)
	}
	defer svc.Stop(ctx)

	if err := svc.Health(); err == nil {
		t.Fatal("expected health to fail while the worker check fails")
	}

	workerHealthy = true
	if err := svc.Health(); err != nil {
		t.Fatalf("expected health to pass once dependencies recover, got %v", err)
	}
}
