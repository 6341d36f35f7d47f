package controller

import (
	"net/http"
	"strconv"

	retryapp "github.com/cassiomorais/payment-relay/internal/application/retry"
	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RetryController exposes the retry ledger to operators.
type RetryController struct {
	service *retryapp.Service
}

func NewRetryController(service *retryapp.Service) *RetryController {
	return &RetryController{service: service}
}

// ListRetries handles GET /api/v1/retries?status=pending&limit=50
func (h *RetryController) ListRetries(w http.ResponseWriter, r *http.Request) {
	status := retry.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = retry.StatusPending
	}
	switch status {
	case retry.StatusPending, retry.StatusInProgress, retry.StatusSucceeded,
		retry.StatusExhausted, retry.StatusAbandoned:
	default:
		writeError(w, domainErrors.NewValidationError("status", "unknown retry status"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, domainErrors.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.service.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*RetryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, FromRetryEntry(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"retries": resp, "count": len(resp)})
}

// GetRetry handles GET /api/v1/retries/{id}
func (h *RetryController) GetRetry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("id", "must be a valid UUID"))
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromRetryEntry(entry))
}

// AbandonRetry handles POST /api/v1/retries/{id}/abandon
func (h *RetryController) AbandonRetry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("id", "must be a valid UUID"))
		return
	}

	var req AbandonRetryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.service.Abandon(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromRetryEntry(entry))
}
