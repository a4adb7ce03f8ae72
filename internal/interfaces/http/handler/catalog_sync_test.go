package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/application/catalogsync"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/interfaces/http/dto"
	"github.com/catalogsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type MockCatalogSyncService struct {
	mock.Mock
}

func (m *MockCatalogSyncService) Trigger(ctx context.Context, input catalogsync.TriggerInput) (*catalogsync.RunResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.RunResult), args.Error(1)
}

func (m *MockCatalogSyncService) ListRuns(ctx context.Context, input catalogsync.ListRunsInput) (*catalogsync.RunListResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.RunListResult), args.Error(1)
}

func (m *MockCatalogSyncService) GetRun(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncRun), args.Error(1)
}

func setupCatalogSyncRouter(svc CatalogSyncService, userID string) *gin.Engine {
	h := NewCatalogSyncHandler(svc, time.Minute)
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.JWTUserIDKey, userID)
		}
		c.Next()
	})
	r.POST("/api/v1/catalog-sync/runs", h.TriggerRun)
	r.GET("/api/v1/catalog-sync/runs", h.ListRuns)
	r.GET("/api/v1/catalog-sync/runs/:id", h.GetRun)
	return r
}

func postTrigger(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog-sync/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCatalogSyncHandler_TriggerRun(t *testing.T) {
	userID := uuid.New()
	runID := uuid.New()
	svc := new(MockCatalogSyncService)
	svc.On("Trigger", mock.Anything, mock.MatchedBy(func(in catalogsync.TriggerInput) bool {
		return in.TriggerType == integration.TriggerManual && in.TriggeredBy != nil && *in.TriggeredBy == userID
	})).Return(&catalogsync.RunResult{
		Success:   true,
		SyncLogID: runID,
		Stats:     integration.RunStats{Synced: 120, Created: 120, VariantsCreated: 3},
	}, nil)

	rec := postTrigger(setupCatalogSyncRouter(svc, userID.String()), `{"sync_type":"manual"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.TriggerSyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, runID, body.SyncLogID)
	assert.Equal(t, 120, body.Stats.Created)
	assert.Equal(t, 120, body.Stats.Synced)
	assert.Empty(t, body.Error)
	svc.AssertExpectations(t)
}

func TestCatalogSyncHandler_TriggerRunDetachesFromClient(t *testing.T) {
	svc := new(MockCatalogSyncService)
	svc.On("Trigger", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return hasDeadline && ctx.Err() == nil
	}), mock.Anything).Return(&catalogsync.RunResult{Success: true, SyncLogID: uuid.New()}, nil)

	h := NewCatalogSyncHandler(svc, time.Minute)
	r := gin.New()
	r.POST("/runs", h.TriggerRun)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"sync_type":"scheduled"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestCatalogSyncHandler_TriggerRunFailedRun(t *testing.T) {
	tests := []struct {
		kind   integration.ErrorKind
		status int
	}{
		{integration.ErrorKindAntiBot, http.StatusBadGateway},
		{integration.ErrorKindFirstPage, http.StatusBadGateway},
		{integration.ErrorKindAuth, http.StatusBadGateway},
		{integration.ErrorKindCredentials, http.StatusInternalServerError},
		{integration.ErrorKindCancelled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			svc := new(MockCatalogSyncService)
			svc.On("Trigger", mock.Anything, mock.Anything).Return(&catalogsync.RunResult{
				SyncLogID: uuid.New(),
				Error:     "remote catalog failed",
				ErrorKind: tt.kind,
			}, nil)

			rec := postTrigger(setupCatalogSyncRouter(svc, ""), `{"sync_type":"manual"}`)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "remote catalog failed", body["error"])
			assert.Contains(t, body, "syncLogId")
			assert.Contains(t, body, "stats")
		})
	}
}

func TestCatalogSyncHandler_TriggerRunRejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		status   int
		wantCode string
	}{
		{name: "missing sync_type", body: `{}`, status: http.StatusBadRequest, wantCode: dto.ErrCodeValidation},
		{name: "unknown sync_type", body: `{"sync_type":"hourly"}`, status: http.StatusBadRequest, wantCode: dto.ErrCodeValidation},
		{name: "malformed json", body: `{"sync_type":`, status: http.StatusBadRequest, wantCode: dto.ErrCodeInvalidJSON},
		{
			name:     "run in progress",
			body:     `{"sync_type":"manual"}`,
			err:      fmt.Errorf("%w: started by another instance", integration.ErrRunAlreadyInProgress),
			status:   http.StatusConflict,
			wantCode: dto.ErrCodeRunInProgress,
		},
		{
			name:     "invalid trigger",
			body:     `{"sync_type":"manual"}`,
			err:      integration.ErrInvalidTriggerType,
			status:   http.StatusBadRequest,
			wantCode: dto.ErrCodeInvalidInput,
		},
		{
			name:     "ledger unavailable",
			body:     `{"sync_type":"manual"}`,
			err:      errors.New("create sync run: connection refused"),
			status:   http.StatusInternalServerError,
			wantCode: dto.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCatalogSyncService)
			if tt.err != nil {
				svc.On("Trigger", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			rec := postTrigger(setupCatalogSyncRouter(svc, ""), tt.body)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeEnvelope(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			if tt.err == nil {
				svc.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCatalogSyncHandler_ListRuns(t *testing.T) {
	run, err := integration.NewSyncRun(integration.TriggerScheduled, nil)
	require.NoError(t, err)
	require.NoError(t, run.Succeed(integration.RunStats{Synced: 5, Skipped: 5, PagesFetched: 1}))

	svc := new(MockCatalogSyncService)
	svc.On("ListRuns", mock.Anything, catalogsync.ListRunsInput{Status: "success", Page: 2, PageSize: 10}).
		Return(&catalogsync.RunListResult{Runs: []integration.SyncRun{*run}, Total: 11, Page: 2, PageSize: 10}, nil)

	rec := get(setupCatalogSyncRouter(svc, ""), "/api/v1/catalog-sync/runs?status=success&page=2&page_size=10")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool                  `json:"success"`
		Data    []dto.SyncRunResponse `json:"data"`
		Meta    dto.Meta              `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, run.ID, body.Data[0].ID)
	assert.Equal(t, "success", body.Data[0].Status)
	assert.Equal(t, 5, body.Data[0].Stats.Skipped)
	assert.Equal(t, int64(11), body.Meta.Total)
	assert.Equal(t, 2, body.Meta.TotalPages)
	svc.AssertExpectations(t)
}

func TestCatalogSyncHandler_ListRunsValidation(t *testing.T) {
	svc := new(MockCatalogSyncService)
	router := setupCatalogSyncRouter(svc, "")

	for _, query := range []string{"?page_size=500", "?status=pending", "?page=-1"} {
		rec := get(router, "/api/v1/catalog-sync/runs"+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
	svc.AssertNotCalled(t, "ListRuns", mock.Anything, mock.Anything)
}

func TestCatalogSyncHandler_GetRun(t *testing.T) {
	run, err := integration.NewSyncRun(integration.TriggerManual, nil)
	require.NoError(t, err)
	missing := uuid.New()

	svc := new(MockCatalogSyncService)
	svc.On("GetRun", mock.Anything, run.ID).Return(run, nil)
	svc.On("GetRun", mock.Anything, missing).Return(nil, integration.ErrRunNotFound)
	router := setupCatalogSyncRouter(svc, "")

	rec := get(router, "/api/v1/catalog-sync/runs/"+run.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"running"`)

	rec = get(router, "/api/v1/catalog-sync/runs/"+missing.String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeEnvelope(t, rec).Error.Code)

	rec = get(router, "/api/v1/catalog-sync/runs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}
