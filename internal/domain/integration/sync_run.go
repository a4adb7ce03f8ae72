package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// TriggerType
// ---------------------------------------------------------------------------

// TriggerType records who started a reconciliation run
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
)

// IsValid checks if the trigger type is valid
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerManual, TriggerScheduled:
		return true
	}
	return false
}

// ParseTriggerType parses a trigger type string
func ParseTriggerType(s string) (TriggerType, error) {
	t := TriggerType(s)
	if !t.IsValid() {
		return "", ErrInvalidTriggerType
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// RunStatus
// ---------------------------------------------------------------------------

// RunStatus is the lifecycle status of a SyncRun
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// IsTerminal returns true once the run has been finalized
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// ---------------------------------------------------------------------------
// ErrorKind
// ---------------------------------------------------------------------------

// ErrorKind classifies the fatal error of a failed run
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindCredentials ErrorKind = "credentials_missing"
	ErrorKindAuth        ErrorKind = "auth_failed"
	ErrorKindAntiBot     ErrorKind = "anti_bot_challenge"
	ErrorKindFirstPage   ErrorKind = "first_page_failed"
	ErrorKindCancelled   ErrorKind = "cancelled"
	ErrorKindAbandoned   ErrorKind = "abandoned"
	ErrorKindInternal    ErrorKind = "internal"
)

// ClassifyError maps a run error to its persisted kind
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrRunCancelled), errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	case errors.Is(err, ErrAntiBotChallenge):
		return ErrorKindAntiBot
	case errors.Is(err, ErrCredentialsMissing):
		return ErrorKindCredentials
	case errors.Is(err, ErrRemoteAuthFailed):
		return ErrorKindAuth
	case errors.Is(err, ErrFirstPageFailed):
		return ErrorKindFirstPage
	default:
		return ErrorKindInternal
	}
}

// ---------------------------------------------------------------------------
// RunStats
// ---------------------------------------------------------------------------

// RunStats holds the counters of a run.
// Synced is the number of top-level items that resolved to a local product
// (created, updated or skipped). VariantFetchFailures counts configurable
// products whose variants were left untouched because their variations could
// not be fetched.
type RunStats struct {
	Synced               int `json:"synced"`
	Created              int `json:"created"`
	Updated              int `json:"updated"`
	Skipped              int `json:"skipped"`
	Deactivated          int `json:"deactivated"`
	Failed               int `json:"failed"`
	VariantsCreated      int `json:"variants_created"`
	VariantsUpdated      int `json:"variants_updated"`
	VariantsSkipped      int `json:"variants_skipped"`
	VariantFetchFailures int `json:"variant_fetch_failures"`
	PagesFetched         int `json:"pages_fetched"`
	PagesSkipped         int `json:"pages_skipped"`
}

// ---------------------------------------------------------------------------
// SyncRun Entity
// ---------------------------------------------------------------------------

// SyncRun is the ledger entry of one reconciliation run.
// It is created in the running state and finalized exactly once.
type SyncRun struct {
	ID           uuid.UUID
	TriggerType  TriggerType
	TriggeredBy  *uuid.UUID
	Status       RunStatus
	Stats        RunStats
	ErrorMessage string
	ErrorKind    ErrorKind
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// NewSyncRun creates a running ledger entry
func NewSyncRun(trigger TriggerType, triggeredBy *uuid.UUID) (*SyncRun, error) {
	if !trigger.IsValid() {
		return nil, ErrInvalidTriggerType
	}

	return &SyncRun{
		ID:          uuid.New(),
		TriggerType: trigger,
		TriggeredBy: triggeredBy,
		Status:      RunStatusRunning,
		StartedAt:   time.Now(),
	}, nil
}

// Succeed finalizes the run as successful
func (r *SyncRun) Succeed(stats RunStats) error {
	return r.finalize(RunStatusSuccess, stats, nil, ErrorKindNone)
}

// Fail finalizes the run as failed with the causing error
func (r *SyncRun) Fail(stats RunStats, cause error) error {
	return r.finalize(RunStatusFailed, stats, cause, ClassifyError(cause))
}

// Abandon finalizes a run that was left running by a crashed process
func (r *SyncRun) Abandon() error {
	return r.finalize(RunStatusFailed, r.Stats, errors.New("run abandoned: no finalization recorded"), ErrorKindAbandoned)
}

func (r *SyncRun) finalize(status RunStatus, stats RunStats, cause error, kind ErrorKind) error {
	if r.Status.IsTerminal() {
		return ErrRunAlreadyFinalized
	}

	now := time.Now()
	r.Status = status
	r.Stats = stats
	r.ErrorKind = kind
	if cause != nil {
		r.ErrorMessage = cause.Error()
	}
	r.FinishedAt = &now
	return nil
}

// IsStale returns true when a running entry is older than the given age
func (r *SyncRun) IsStale(maxAge time.Duration, now time.Time) bool {
	return r.Status == RunStatusRunning && now.Sub(r.StartedAt) > maxAge
}

// Duration returns the wall time of a finalized run
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ---------------------------------------------------------------------------
// SyncRunRepository Interface
// ---------------------------------------------------------------------------

// SyncRunFilter defines filter criteria for listing runs
type SyncRunFilter struct {
	Status   *RunStatus
	OrderBy  string
	OrderDir string
	Page     int
	PageSize int
}

// SyncRunRepository persists ledger entries
type SyncRunRepository interface {
	// Create inserts a running entry
	Create(ctx context.Context, run *SyncRun) error

	// Finalize writes the terminal state of a run.
	// It returns ErrRunAlreadyFinalized if the stored row is no longer running.
	Finalize(ctx context.Context, run *SyncRun) error

	// FindByID returns ErrRunNotFound for unknown IDs
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)

	// List returns runs ordered by start time, newest first
	List(ctx context.Context, filter SyncRunFilter) ([]SyncRun, int64, error)

	// FindRunning returns every run still in the running state
	FindRunning(ctx context.Context) ([]SyncRun, error)
}
