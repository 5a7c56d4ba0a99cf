package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitley/certscan-api/internal/kv"
	"github.com/ewhitley/certscan-api/internal/metrics"
	"github.com/ewhitley/certscan-api/internal/service"
	"github.com/ewhitley/certscan-api/internal/testutils"
)

type fakeHealthReporter struct {
	report service.HealthReport
}

func (f *fakeHealthReporter) Health(ctx context.Context) service.HealthReport {
	return f.report
}

func TestHealthzHandler(t *testing.T) {
	t.Parallel()

	logger, _ := testutils.NewTestLogger()
	registry := metrics.NewRegistry(kv.NewMemoryStore(), logger)

	h := NewOpsHandler(&fakeHealthReporter{report: service.HealthReport{
		Status:        "degraded",
		CacheStore:    "disconnected",
		QueueDepth:    3,
		QueueCapacity: 100,
		BusyWorkers:   2,
		WorkerCount:   8,
	}}, registry)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Healthz(w, req)

	// Degraded still answers 200: the service keeps admitting work.
	require.Equal(t, http.StatusOK, w.Code)

	var report service.HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, 3, report.QueueDepth)
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger, _ := testutils.NewTestLogger()
	registry := metrics.NewRegistry(kv.NewMemoryStore(), logger)
	registry.Inc(ctx, metrics.CounterSubmissions)
	registry.Inc(ctx, metrics.CounterCacheHits)
	registry.Inc(ctx, metrics.CounterSubmissions)
	registry.ObserveStage("extract_structured", 120*time.Millisecond)

	h := NewOpsHandler(&fakeHealthReporter{report: service.HealthReport{
		QueueDepth:    1,
		QueueCapacity: 100,
		WorkerCount:   8,
	}}, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.Metrics(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Counters[metrics.CounterSubmissions])
	assert.Equal(t, int64(1), resp.Counters[metrics.CounterCacheHits])
	assert.Equal(t, int64(1), resp.Stages["extract_structured"].Count)
	assert.Equal(t, 100, resp.Queue.Capacity)
}
