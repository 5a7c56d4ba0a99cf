package api

import (
	"context"
	"net/http"

	"github.com/ewhitley/certscan-api/internal/api/shared"
	"github.com/ewhitley/certscan-api/internal/metrics"
	"github.com/ewhitley/certscan-api/internal/service"
)

// HealthReporter reports service liveness.
type HealthReporter interface {
	Health(ctx context.Context) service.HealthReport
}

// OpsHandler serves the health and metrics endpoints.
type OpsHandler struct {
	health   HealthReporter
	registry *metrics.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(health HealthReporter, registry *metrics.Registry) *OpsHandler {
	return &OpsHandler{health: health, registry: registry}
}

// Healthz handles GET /healthz requests. A degraded cache store still
// answers 200: the service keeps admitting work without it.
func (h *OpsHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	report := h.health.Health(r.Context())
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// Metrics handles GET /metrics requests.
func (h *OpsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	report := h.health.Health(r.Context())

	stages := make(map[string]StageSummaryResponse)
	for stage, s := range h.registry.SnapshotStages() {
		stages[stage] = StageSummaryResponse{
			Count:       s.Count,
			MeanMillis:  s.MeanMillis,
			MaxMillis:   s.MaxMillis,
			TotalMillis: s.TotalMillis,
		}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MetricsResponse{
		Counters: h.registry.SnapshotCounters(r.Context()),
		Stages:   stages,
		Queue: QueueSnapshot{
			Depth:       report.QueueDepth,
			Capacity:    report.QueueCapacity,
			BusyWorkers: report.BusyWorkers,
			WorkerCount: report.WorkerCount,
		},
	})
}
