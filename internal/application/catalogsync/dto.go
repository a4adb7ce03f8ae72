package catalogsync

import (
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// TriggerInput starts a reconciliation run
type TriggerInput struct {
	TriggerType integration.TriggerType
	TriggeredBy *uuid.UUID
}

// RunResult is the structured outcome returned to the caller of a trigger
type RunResult struct {
	Success   bool
	SyncLogID uuid.UUID
	Stats     integration.RunStats
	Error     string
	ErrorKind integration.ErrorKind
}

// NewRunResult builds the result of a finalized run
func NewRunResult(run *integration.SyncRun) *RunResult {
	return &RunResult{
		Success:   run.Status == integration.RunStatusSuccess,
		SyncLogID: run.ID,
		Stats:     run.Stats,
		Error:     run.ErrorMessage,
		ErrorKind: run.ErrorKind,
	}
}

// ListRunsInput filters the ledger listing
type ListRunsInput struct {
	Status   string
	Page     int
	PageSize int
}

// RunListResult is one page of ledger entries
type RunListResult struct {
	Runs     []integration.SyncRun
	Total    int64
	Page     int
	PageSize int
}

// RunView is the read model of a ledger entry
type RunView struct {
	ID           uuid.UUID               `json:"id"`
	TriggerType  integration.TriggerType `json:"trigger_type"`
	TriggeredBy  *uuid.UUID              `json:"triggered_by,omitempty"`
	Status       integration.RunStatus   `json:"status"`
	Stats        integration.RunStats    `json:"stats"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	ErrorKind    integration.ErrorKind   `json:"error_kind,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   *time.Time              `json:"finished_at,omitempty"`
	Duration     time.Duration           `json:"duration"`
}

// ToRunView converts a ledger entry to its read model
func ToRunView(run *integration.SyncRun) RunView {
	return RunView{
		ID:           run.ID,
		TriggerType:  run.TriggerType,
		TriggeredBy:  run.TriggeredBy,
		Status:       run.Status,
		Stats:        run.Stats,
		ErrorMessage: run.ErrorMessage,
		ErrorKind:    run.ErrorKind,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Duration:     run.Duration(),
	}
}
