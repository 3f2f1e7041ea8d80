package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
)

// MockSyncer is a mock implementation of Syncer
type MockSyncer struct {
	mock.Mock
}

var _ Syncer = (*MockSyncer)(nil)

func (m *MockSyncer) Sync(ctx context.Context, triggeredBy models.TriggerType) (*services.SyncResult, error) {
	args := m.Called(ctx, triggeredBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SyncResult), args.Error(1)
}

func (m *MockSyncer) GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func (m *MockSyncer) ListRuns(ctx context.Context, opts repository.RunListOptions) ([]models.SyncRun, int64, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]models.SyncRun), args.Get(1).(int64), args.Error(2)
}

func (m *MockSyncer) GetRunLogs(ctx context.Context, runID uuid.UUID, opts repository.LogListOptions) ([]models.SyncLog, error) {
	args := m.Called(ctx, runID, opts)
	return args.Get(0).([]models.SyncLog), args.Error(1)
}

func (m *MockSyncer) GetStats(ctx context.Context) (*repository.SyncStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.SyncStats), args.Error(1)
}

func setupSyncRouter(service Syncer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewSyncHandler(service)
	r := gin.New()
	r.POST("/sync", handler.TriggerSync)
	r.GET("/sync/runs", handler.ListRuns)
	r.GET("/sync/runs/:id", handler.GetRun)
	r.GET("/sync/runs/:id/logs", handler.GetRunLogs)
	r.GET("/sync/stats", handler.GetStats)
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTriggerSync(t *testing.T) {
	service := new(MockSyncer)
	runID := uuid.New()
	service.On("Sync", mock.Anything, models.TriggerManual).Return(&services.SyncResult{
		RunID:       runID,
		TotalItems:  12,
		SyncedCount: 11,
		FailedCount: 1,
		EmbedCount:  9,
		Failures: []models.ItemFailure{
			{ProductID: "sku-7", Stage: models.StagePersist, Error: "db write failed"},
		},
	}, nil)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "sync completed", body["message"])
	assert.Equal(t, float64(11), body["count"])
	assert.Equal(t, float64(1), body["failures"])
	assert.Equal(t, float64(9), body["embedded"])

	details, ok := body["failureDetails"].([]interface{})
	require.True(t, ok)
	require.Len(t, details, 1)
	detail := details[0].(map[string]interface{})
	assert.Equal(t, "sku-7", detail["productId"])
}

func TestTriggerSyncReportsEnrichFailures(t *testing.T) {
	// Embedding failures don't stop an item from syncing, so they are
	// recorded in the failure list without raising the failed count. The
	// response must still surface them.
	service := new(MockSyncer)
	service.On("Sync", mock.Anything, models.TriggerManual).Return(&services.SyncResult{
		RunID:       uuid.New(),
		TotalItems:  3,
		SyncedCount: 3,
		FailedCount: 0,
		EmbedCount:  2,
		Failures: []models.ItemFailure{
			{ProductID: "sku-2", Stage: models.StageEnrich, Error: "embedding API unavailable"},
		},
	}, nil)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["count"])
	assert.Equal(t, float64(1), body["failures"])

	details, ok := body["failureDetails"].([]interface{})
	require.True(t, ok)
	require.Len(t, details, 1)
	detail := details[0].(map[string]interface{})
	assert.Equal(t, "sku-2", detail["productId"])
	assert.Equal(t, string(models.StageEnrich), detail["stage"])
}

func TestTriggerSyncFeedUnavailable(t *testing.T) {
	service := new(MockSyncer)
	service.On("Sync", mock.Anything, models.TriggerManual).Return(&services.SyncResult{
		RunID:       uuid.New(),
		FetchFailed: true,
		CachedCount: 42,
	}, nil)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["fetchFailed"])
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, float64(42), body["cachedCount"])
}

func TestTriggerSyncAlreadyRunning(t *testing.T) {
	service := new(MockSyncer)
	service.On("Sync", mock.Anything, models.TriggerManual).Return(nil, services.ErrSyncInProgress)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListRunsDefaults(t *testing.T) {
	service := new(MockSyncer)
	service.On("ListRuns", mock.Anything, repository.RunListOptions{Limit: 50}).
		Return([]models.SyncRun{{ID: uuid.New()}}, int64(1), nil)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/sync/runs", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["total"])
}

func TestListRunsWithFilters(t *testing.T) {
	service := new(MockSyncer)
	service.On("ListRuns", mock.Anything, repository.RunListOptions{
		Status: "COMPLETED",
		Limit:  10,
		Offset: 20,
	}).Return([]models.SyncRun{}, int64(0), nil)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/sync/runs?status=COMPLETED&limit=10&offset=20", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestGetRunInvalidID(t *testing.T) {
	router := setupSyncRouter(new(MockSyncer))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/sync/runs/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRunNotFound(t *testing.T) {
	service := new(MockSyncer)
	runID := uuid.New()
	service.On("GetRun", mock.Anything, runID).Return(nil, assert.AnError)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/sync/runs/"+runID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRunLogs(t *testing.T) {
	service := new(MockSyncer)
	runID := uuid.New()
	service.On("GetRunLogs", mock.Anything, runID, repository.LogListOptions{Level: "error", Limit: 100}).
		Return([]models.SyncLog{{SyncRunID: runID, Level: models.LogLevelError}}, nil)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/sync/runs/"+runID.String()+"/logs?level=error", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestGetStats(t *testing.T) {
	service := new(MockSyncer)
	service.On("GetStats", mock.Anything).Return(&repository.SyncStats{
		TotalRuns:     5,
		CompletedRuns: 4,
		FailedRuns:    1,
	}, nil)

	router := setupSyncRouter(service)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/sync/stats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
