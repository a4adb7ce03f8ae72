package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/application/catalogsync"
	"github.com/catalogsync/backend/internal/domain/integration"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeRunInProgress, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeConflict, NormalizeErrorCode("CONFLICT"))
	assert.Equal(t, ErrCodeInternal, NormalizeErrorCode(ErrCodeInternal))
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "sync_type", Message: "This field is required"},
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, errBody["code"])
	assert.Equal(t, "req-1", errBody["request_id"])
	assert.Len(t, errBody["details"], 1)
	assert.NotContains(t, body, "data")
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 41, 2, 20)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	resp = NewSuccessResponseWithMeta(nil, 0, 1, 0)
	assert.Zero(t, resp.Meta.TotalPages)
}

func TestToTriggerSyncResponse(t *testing.T) {
	id := uuid.New()
	resp := ToTriggerSyncResponse(&catalogsync.RunResult{
		Success:   true,
		SyncLogID: id,
		Stats:     integration.RunStats{Synced: 120, Created: 120, VariantsCreated: 3},
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, id.String(), body["syncLogId"])
	assert.NotContains(t, body, "error")

	stats := body["stats"].(map[string]any)
	assert.ElementsMatch(t,
		[]string{"synced", "created", "updated", "skipped", "deactivated", "failed"},
		keys(stats))
	assert.EqualValues(t, 120, stats["created"])
}

func TestToSyncRunResponse(t *testing.T) {
	started := time.Now().Add(-90 * time.Second)
	finished := started.Add(90 * time.Second)
	resp := ToSyncRunResponse(catalogsync.RunView{
		ID:          uuid.New(),
		TriggerType: integration.TriggerScheduled,
		Status:      integration.RunStatusFailed,
		Stats:       integration.RunStats{PagesFetched: 2, PagesSkipped: 1},
		ErrorKind:   integration.ErrorKindAntiBot,
		StartedAt:   started,
		FinishedAt:  &finished,
		Duration:    90 * time.Second,
	})

	assert.Equal(t, "scheduled", resp.TriggerType)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "anti_bot_challenge", resp.ErrorKind)
	assert.Equal(t, int64(90000), resp.DurationMs)
	assert.Equal(t, 1, resp.PagesSkipped)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
