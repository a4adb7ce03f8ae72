package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultRunPageSize = 20
	maxRunPageSize     = 100
)

// GormSyncRunRepository implements integration.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Create inserts a running ledger entry
func (r *GormSyncRunRepository) Create(ctx context.Context, run *integration.SyncRun) error {
	return r.db.WithContext(ctx).Create(models.SyncRunModelFromDomain(run)).Error
}

// Finalize writes the terminal state of a run. The update is guarded by
// status = 'running' so a row is finalized at most once even across processes.
func (r *GormSyncRunRepository) Finalize(ctx context.Context, run *integration.SyncRun) error {
	if !run.Status.IsTerminal() {
		return fmt.Errorf("finalize sync run %s: status %q is not terminal", run.ID, run.Status)
	}

	result := r.db.WithContext(ctx).
		Model(&models.SyncRunModel{}).
		Where("id = ? AND status = ?", run.ID, integration.RunStatusRunning).
		Updates(models.SyncRunModelFromDomain(run).FinalizeColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.FindByID(ctx, run.ID); err != nil {
		return err
	}
	return integration.ErrRunAlreadyFinalized
}

// FindByID returns ErrRunNotFound for unknown IDs
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns one page of runs and the total count matching the filter
func (r *GormSyncRunRepository) List(ctx context.Context, filter integration.SyncRunFilter) ([]integration.SyncRun, int64, error) {
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.SyncRunModel{})
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	orderBy := ValidateSortField(filter.OrderBy, SyncRunSortFields, "started_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var runModels []models.SyncRunModel
	if err := scoped().
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&runModels).Error; err != nil {
		return nil, 0, err
	}

	runs := make([]integration.SyncRun, len(runModels))
	for i := range runModels {
		runs[i] = *runModels[i].ToDomain()
	}
	return runs, total, nil
}

// FindRunning returns every run still in the running state, oldest first
func (r *GormSyncRunRepository) FindRunning(ctx context.Context) ([]integration.SyncRun, error) {
	var runModels []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", integration.RunStatusRunning).
		Order("started_at ASC").
		Find(&runModels).Error; err != nil {
		return nil, err
	}

	runs := make([]integration.SyncRun, len(runModels))
	for i := range runModels {
		runs[i] = *runModels[i].ToDomain()
	}
	return runs, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultRunPageSize
	}
	if pageSize > maxRunPageSize {
		pageSize = maxRunPageSize
	}
	return page, pageSize
}
