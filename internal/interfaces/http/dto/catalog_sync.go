package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/application/catalogsync"
)

// TriggerSyncRequest starts a catalog reconciliation run
type TriggerSyncRequest struct {
	SyncType string `json:"sync_type" binding:"required,oneof=manual scheduled" example:"manual"`
}

// SyncStatsResponse carries the product counters of a run
type SyncStatsResponse struct {
	Synced      int `json:"synced"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
}

// TriggerSyncResponse is the body returned by the trigger endpoint.
// It is not wrapped in the standard envelope.
type TriggerSyncResponse struct {
	Success   bool              `json:"success"`
	SyncLogID uuid.UUID         `json:"syncLogId"`
	Stats     SyncStatsResponse `json:"stats"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
}

// SyncRunResponse is a ledger entry
type SyncRunResponse struct {
	ID                   uuid.UUID         `json:"id"`
	TriggerType          string            `json:"trigger_type"`
	TriggeredBy          *uuid.UUID        `json:"triggered_by,omitempty"`
	Status               string            `json:"status"`
	Stats                SyncStatsResponse `json:"stats"`
	VariantsCreated      int               `json:"variants_created"`
	VariantsUpdated      int               `json:"variants_updated"`
	VariantsSkipped      int               `json:"variants_skipped"`
	VariantFetchFailures int               `json:"variant_fetch_failures"`
	PagesFetched         int               `json:"pages_fetched"`
	PagesSkipped         int               `json:"pages_skipped"`
	ErrorMessage         string            `json:"error_message,omitempty"`
	ErrorKind            string            `json:"error_kind,omitempty"`
	StartedAt            time.Time         `json:"started_at"`
	FinishedAt           *time.Time        `json:"finished_at,omitempty"`
	DurationMs           int64             `json:"duration_ms"`
}

// ListSyncRunsRequest filters the ledger listing
type ListSyncRunsRequest struct {
	ListRequest
	Status string `form:"status" binding:"omitempty,oneof=running success failed"`
}

// ToTriggerSyncResponse converts a run result to its API shape
func ToTriggerSyncResponse(result *catalogsync.RunResult) TriggerSyncResponse {
	return TriggerSyncResponse{
		Success:   result.Success,
		SyncLogID: result.SyncLogID,
		Stats: SyncStatsResponse{
			Synced:      result.Stats.Synced,
			Created:     result.Stats.Created,
			Updated:     result.Stats.Updated,
			Skipped:     result.Stats.Skipped,
			Deactivated: result.Stats.Deactivated,
			Failed:      result.Stats.Failed,
		},
		Error:     result.Error,
		ErrorKind: string(result.ErrorKind),
	}
}

// ToSyncRunResponse converts a ledger read model to its API shape
func ToSyncRunResponse(v catalogsync.RunView) SyncRunResponse {
	return SyncRunResponse{
		ID:          v.ID,
		TriggerType: string(v.TriggerType),
		TriggeredBy: v.TriggeredBy,
		Status:      string(v.Status),
		Stats: SyncStatsResponse{
			Synced:      v.Stats.Synced,
			Created:     v.Stats.Created,
			Updated:     v.Stats.Updated,
			Skipped:     v.Stats.Skipped,
			Deactivated: v.Stats.Deactivated,
			Failed:      v.Stats.Failed,
		},
		VariantsCreated:      v.Stats.VariantsCreated,
		VariantsUpdated:      v.Stats.VariantsUpdated,
		VariantsSkipped:      v.Stats.VariantsSkipped,
		VariantFetchFailures: v.Stats.VariantFetchFailures,
		PagesFetched:         v.Stats.PagesFetched,
		PagesSkipped:         v.Stats.PagesSkipped,
		ErrorMessage:         v.ErrorMessage,
		ErrorKind:            string(v.ErrorKind),
		StartedAt:            v.StartedAt,
		FinishedAt:           v.FinishedAt,
		DurationMs:           v.Duration.Milliseconds(),
	}
}
