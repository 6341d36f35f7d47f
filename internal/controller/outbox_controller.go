package controller

import (
	"net/http"
	"strconv"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OutboxController exposes read-only views of the outbox for
// operators debugging delivery problems.
type OutboxController struct {
	repo outbox.Repository
}

func NewOutboxController(repo outbox.Repository) *OutboxController {
	return &OutboxController{repo: repo}
}

// ListEntries handles GET /api/v1/outbox?status=failed&limit=50
func (h *OutboxController) ListEntries(w http.ResponseWriter, r *http.Request) {
	status := outbox.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = outbox.StatusFailed
	}
	switch status {
	case outbox.StatusPending, outbox.StatusClaimed, outbox.StatusPublished, outbox.StatusFailed:
	default:
		writeError(w, domainErrors.NewValidationError("status", "unknown outbox status"))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, domainErrors.NewValidationError("limit", "must be a positive integer"))
			return
		}
		if parsed > 200 {
			parsed = 200
		}
		limit = parsed
	}

	entries, err := h.repo.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*OutboxEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, FromOutboxEntry(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": resp, "count": len(resp)})
}

// GetEntry handles GET /api/v1/outbox/{id}
func (h *OutboxController) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("id", "must be a valid UUID"))
		return
	}

	entry, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromOutboxEntry(entry))
}
