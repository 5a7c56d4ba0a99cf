package api

import (
	"encoding/json"
	"time"

	"github.com/ewhitley/certscan-api/internal/domain"
	"github.com/ewhitley/certscan-api/internal/service"
)

// Common request/response structures

// SubmitCertificateRequest defines the payload for the certificate
// submission endpoint.
type SubmitCertificateRequest struct {
	// FileReference names the uploaded document in object storage.
	FileReference string `json:"file_reference" validate:"required,min=1"`

	// Priority orders dispatch; 1 is highest, 5 lowest. Zero means default.
	Priority int `json:"priority" validate:"omitempty,min=1,max=5"`
}

// SubmitCertificateResponse defines the accepted-submission response.
type SubmitCertificateResponse struct {
	RequestID            string `json:"request_id"`
	Status               string `json:"status"`
	EstimatedWaitSeconds int    `json:"estimated_wait_seconds,omitempty"`
}

// StatusResponse defines the response for the status polling endpoint.
type StatusResponse struct {
	RequestID   string          `json:"request_id"`
	Status      string          `json:"status"`
	Progress    string          `json:"progress,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CancelResponse acknowledges a cancellation request.
type CancelResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// MetricsResponse defines the operational metrics snapshot.
type MetricsResponse struct {
	Counters map[string]int64                `json:"counters"`
	Stages   map[string]StageSummaryResponse `json:"stages"`
	Queue    QueueSnapshot                   `json:"queue"`
}

// StageSummaryResponse reports aggregate timing for one pipeline stage.
type StageSummaryResponse struct {
	Count       int64   `json:"count"`
	MeanMillis  float64 `json:"mean_millis"`
	MaxMillis   int64   `json:"max_millis"`
	TotalMillis int64   `json:"total_millis"`
}

// QueueSnapshot reports in-process dispatch gauges.
type QueueSnapshot struct {
	Depth       int `json:"depth"`
	Capacity    int `json:"capacity"`
	BusyWorkers int `json:"busy_workers"`
	WorkerCount int `json:"worker_count"`
}

// statusToResponse converts a resolved status result to its DTO.
func statusToResponse(res *service.StatusResult) StatusResponse {
	rec := res.Record
	out := StatusResponse{
		RequestID: rec.RequestID.String(),
		Status:    string(rec.State),
		Progress:  rec.ProgressMarker,
		Result:    res.Result,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.State == domain.StateFailed {
		out.ErrorKind = string(rec.ErrorKind)
		out.ErrorDetail = rec.ErrorDetail
	}
	return out
}
