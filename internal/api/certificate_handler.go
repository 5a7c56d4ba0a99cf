package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ewhitley/certscan-api/internal/api/shared"
	"github.com/ewhitley/certscan-api/internal/domain"
	"github.com/ewhitley/certscan-api/internal/service"
)

// CertificateService is the admission surface the handler depends on.
type CertificateService interface {
	Submit(ctx context.Context, fileRef string, priority int) (*service.SubmitResult, error)
	Status(ctx context.Context, requestID uuid.UUID) (*service.StatusResult, error)
	Cancel(ctx context.Context, requestID uuid.UUID) error
}

// CertificateHandler handles certificate processing HTTP requests.
type CertificateHandler struct {
	svc CertificateService
}

// NewCertificateHandler creates a new CertificateHandler.
func NewCertificateHandler(svc CertificateService) *CertificateHandler {
	return &CertificateHandler{svc: svc}
}

// Submit handles POST /api/certificates requests.
func (h *CertificateHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitCertificateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	result, err := h.svc.Submit(r.Context(), req.FileReference, req.Priority)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err),
			GetSafeErrorMessage(err),
			string(domain.KindOf(err)),
			err)
		return
	}

	// Cache hits complete synchronously; everything else is accepted for
	// asynchronous processing.
	code := http.StatusAccepted
	if result.State == domain.StateCompleted {
		code = http.StatusOK
	}
	shared.RespondWithJSON(w, r, code, SubmitCertificateResponse{
		RequestID:            result.RequestID.String(),
		Status:               string(result.State),
		EstimatedWaitSeconds: result.EstimatedWaitSeconds,
	})
}

// Status handles GET /api/certificates/{request_id} requests.
func (h *CertificateHandler) Status(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.requestID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Status(r.Context(), requestID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err),
			GetSafeErrorMessage(err),
			string(domain.KindOf(err)),
			err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, statusToResponse(res))
}

// Cancel handles POST /api/certificates/{request_id}/cancel requests.
func (h *CertificateHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.requestID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Cancel(r.Context(), requestID); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err),
			GetSafeErrorMessage(err),
			string(domain.KindOf(err)),
			err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, CancelResponse{
		RequestID: requestID.String(),
		Status:    "cancellation_requested",
	})
}

// requestID parses the request_id route parameter, responding with 400 on
// malformed IDs.
func (h *CertificateHandler) requestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "request_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request ID format")
		return uuid.Nil, false
	}
	return id, true
}
