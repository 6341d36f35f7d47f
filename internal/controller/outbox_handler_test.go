package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cassiomorais/payment-relay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxController_ListEntries(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	failed := testutil.NewTestOutboxEntry("payment.created")
	for i := 0; i < 10; i++ {
		failed.RecordPublishFailure(time.Now())
	}
	require.NoError(t, repo.Insert(context.Background(), failed))
	require.NoError(t, repo.Insert(context.Background(), testutil.NewTestOutboxEntry("payment.failed")))
	handler := NewOutboxController(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/outbox?status=failed", nil)
	rec := httptest.NewRecorder()

	handler.ListEntries(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Entries []OutboxEntryResponse `json:"entries"`
		Count   int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, failed.ID.String(), resp.Entries[0].ID)
	assert.Equal(t, "failed", resp.Entries[0].Status)
}

func TestOutboxController_ListEntries_UnknownStatus(t *testing.T) {
	handler := NewOutboxController(testutil.NewMockOutboxRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/outbox?status=bogus", nil)
	rec := httptest.NewRecorder()

	handler.ListEntries(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutboxController_GetEntry(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	entry := testutil.NewTestOutboxEntry("payment.created")
	require.NoError(t, repo.Insert(context.Background(), entry))
	handler := NewOutboxController(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/outbox/"+entry.ID.String(), nil)
	req = withURLParam(req, "id", entry.ID.String())
	rec := httptest.NewRecorder()

	handler.GetEntry(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp OutboxEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, entry.ID.String(), resp.ID)
	assert.Equal(t, "payment.created", resp.EventType)
}

func TestOutboxController_GetEntry_NotFound(t *testing.T) {
	handler := NewOutboxController(testutil.NewMockOutboxRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/outbox/00000000-0000-0000-0000-000000000001", nil)
	req = withURLParam(req, "id", "00000000-0000-0000-0000-000000000001")
	rec := httptest.NewRecorder()

	handler.GetEntry(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
