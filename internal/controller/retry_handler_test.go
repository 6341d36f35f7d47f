package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	retryapp "github.com/cassiomorais/payment-relay/internal/application/retry"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/cassiomorais/payment-relay/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetryHandler(repo *testutil.MockRetryRepository) *RetryController {
	service := retryapp.NewService(repo, testutil.NoopTxManager{}, zerolog.Nop(), nil, retry.DefaultBackoffPolicy())
	return NewRetryController(service)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestRetryController_GetRetry(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	entry := testutil.NewTestRetryEntry("TIMEOUT_504", time.Now())
	require.NoError(t, repo.Create(context.Background(), entry))
	handler := newRetryHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/retries/"+entry.ID.String(), nil)
	req = withURLParam(req, "id", entry.ID.String())
	rec := httptest.NewRecorder()

	handler.GetRetry(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RetryEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, entry.ID.String(), resp.ID)
	assert.Equal(t, string(retry.StatusPending), resp.Status)
	assert.Equal(t, 5, resp.MaxRetryCount)
}

func TestRetryController_GetRetry_NotFound(t *testing.T) {
	handler := newRetryHandler(testutil.NewMockRetryRepository())

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/retries/"+id, nil)
	req = withURLParam(req, "id", id)
	rec := httptest.NewRecorder()

	handler.GetRetry(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryController_GetRetry_InvalidID(t *testing.T) {
	handler := newRetryHandler(testutil.NewMockRetryRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/retries/not-a-uuid", nil)
	req = withURLParam(req, "id", "not-a-uuid")
	rec := httptest.NewRecorder()

	handler.GetRetry(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryController_AbandonRetry(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	entry := testutil.NewTestRetryEntry("TIMEOUT_504", time.Now())
	require.NoError(t, repo.Create(context.Background(), entry))
	handler := newRetryHandler(repo)

	body, _ := json.Marshal(AbandonRetryRequest{Reason: "customer cancelled the order"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/retries/"+entry.ID.String()+"/abandon", bytes.NewReader(body))
	req = withURLParam(req, "id", entry.ID.String())
	rec := httptest.NewRecorder()

	handler.AbandonRetry(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RetryEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(retry.StatusAbandoned), resp.Status)
	assert.Equal(t, "customer cancelled the order", resp.AbandonReason)
}

func TestRetryController_AbandonRetry_TerminalConflict(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	entry := testutil.NewTestRetryEntry("CARD_DECLINED", time.Now())
	require.NoError(t, repo.Create(context.Background(), entry))
	handler := newRetryHandler(repo)

	body, _ := json.Marshal(AbandonRetryRequest{Reason: "too late"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/retries/"+entry.ID.String()+"/abandon", bytes.NewReader(body))
	req = withURLParam(req, "id", entry.ID.String())
	rec := httptest.NewRecorder()

	handler.AbandonRetry(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetryController_AbandonRetry_MissingReason(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	entry := testutil.NewTestRetryEntry("TIMEOUT_504", time.Now())
	require.NoError(t, repo.Create(context.Background(), entry))
	handler := newRetryHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/retries/"+entry.ID.String()+"/abandon", bytes.NewReader([]byte(`{}`)))
	req = withURLParam(req, "id", entry.ID.String())
	rec := httptest.NewRecorder()

	handler.AbandonRetry(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryController_ListRetries(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(context.Background(), testutil.NewTestRetryEntry("TIMEOUT_504", time.Now())))
	}
	handler := newRetryHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/retries?status=pending", nil)
	rec := httptest.NewRecorder()

	handler.ListRetries(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Retries []RetryEntryResponse `json:"retries"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
}

func TestRetryController_ListRetries_UnknownStatus(t *testing.T) {
	handler := newRetryHandler(testutil.NewMockRetryRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/retries?status=bogus", nil)
	rec := httptest.NewRecorder()

	handler.ListRetries(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
