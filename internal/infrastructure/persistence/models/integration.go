package models

import (
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// ProductIdentityMappingModel links a remote item ID to a mirrored product.
// Both sides are unique: one remote item never maps to two products and vice versa.
type ProductIdentityMappingModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	RemoteID  int64     `gorm:"not null;uniqueIndex:idx_product_identity_remote"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_identity_product"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductIdentityMappingModel) TableName() string {
	return "product_identity_mappings"
}

// ToDomain converts the persistence model to a domain ProductIdentityMapping
func (m *ProductIdentityMappingModel) ToDomain() *integration.ProductIdentityMapping {
	return &integration.ProductIdentityMapping{
		ID:        m.ID,
		RemoteID:  m.RemoteID,
		ProductID: m.ProductID,
		CreatedAt: m.CreatedAt,
	}
}

// ProductIdentityMappingModelFromDomain creates a new persistence model from a domain mapping
func ProductIdentityMappingModelFromDomain(mp *integration.ProductIdentityMapping) *ProductIdentityMappingModel {
	return &ProductIdentityMappingModel{
		ID:        mp.ID,
		RemoteID:  mp.RemoteID,
		ProductID: mp.ProductID,
		CreatedAt: mp.CreatedAt,
	}
}

// CategoryIdentityMappingModel links a remote category to a local category
type CategoryIdentityMappingModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	RemoteCategoryID int64     `gorm:"not null;index"`
	RemoteName       string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_category_identity_remote_name"`
	CategoryID       uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CategoryIdentityMappingModel) TableName() string {
	return "category_identity_mappings"
}

// ToDomain converts the persistence model to a domain CategoryIdentityMapping
func (m *CategoryIdentityMappingModel) ToDomain() *integration.CategoryIdentityMapping {
	return &integration.CategoryIdentityMapping{
		ID:               m.ID,
		RemoteCategoryID: m.RemoteCategoryID,
		RemoteName:       m.RemoteName,
		CategoryID:       m.CategoryID,
		CreatedAt:        m.CreatedAt,
	}
}

// CategoryIdentityMappingModelFromDomain creates a new persistence model from a domain mapping
func CategoryIdentityMappingModelFromDomain(mp *integration.CategoryIdentityMapping) *CategoryIdentityMappingModel {
	return &CategoryIdentityMappingModel{
		ID:               mp.ID,
		RemoteCategoryID: mp.RemoteCategoryID,
		RemoteName:       mp.RemoteName,
		CategoryID:       mp.CategoryID,
		CreatedAt:        mp.CreatedAt,
	}
}

// SyncRunModel is the persistence model for the run ledger.
// Counters are flattened into columns so the ledger can be queried directly.
type SyncRunModel struct {
	ID                   uuid.UUID               `gorm:"type:uuid;primary_key"`
	TriggerType          integration.TriggerType `gorm:"type:varchar(20);not null"`
	TriggeredBy          *uuid.UUID              `gorm:"type:uuid"`
	Status               integration.RunStatus   `gorm:"type:varchar(20);not null;index:idx_sync_runs_status_started,priority:1"`
	Synced               int                     `gorm:"not null"`
	Created              int                     `gorm:"not null"`
	Updated              int                     `gorm:"not null"`
	Skipped              int                     `gorm:"not null"`
	Deactivated          int                     `gorm:"not null"`
	Failed               int                     `gorm:"not null"`
	VariantsCreated      int                     `gorm:"not null"`
	VariantsUpdated      int                     `gorm:"not null"`
	VariantsSkipped      int                     `gorm:"not null"`
	VariantFetchFailures int                     `gorm:"not null"`
	PagesFetched         int                     `gorm:"not null"`
	PagesSkipped         int                     `gorm:"not null"`
	ErrorMessage         string                  `gorm:"type:text"`
	ErrorKind            integration.ErrorKind   `gorm:"type:varchar(40)"`
	StartedAt            time.Time               `gorm:"not null;index:idx_sync_runs_status_started,priority:2"`
	FinishedAt           *time.Time
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun
func (m *SyncRunModel) ToDomain() *integration.SyncRun {
	return &integration.SyncRun{
		ID:          m.ID,
		TriggerType: m.TriggerType,
		TriggeredBy: m.TriggeredBy,
		Status:      m.Status,
		Stats: integration.RunStats{
			Synced:               m.Synced,
			Created:              m.Created,
			Updated:              m.Updated,
			Skipped:              m.Skipped,
			Deactivated:          m.Deactivated,
			Failed:               m.Failed,
			VariantsCreated:      m.VariantsCreated,
			VariantsUpdated:      m.VariantsUpdated,
			VariantsSkipped:      m.VariantsSkipped,
			VariantFetchFailures: m.VariantFetchFailures,
			PagesFetched:         m.PagesFetched,
			PagesSkipped:         m.PagesSkipped,
		},
		ErrorMessage: m.ErrorMessage,
		ErrorKind:    m.ErrorKind,
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncRun
func (m *SyncRunModel) FromDomain(r *integration.SyncRun) {
	m.ID = r.ID
	m.TriggerType = r.TriggerType
	m.TriggeredBy = r.TriggeredBy
	m.Status = r.Status
	m.Synced = r.Stats.Synced
	m.Created = r.Stats.Created
	m.Updated = r.Stats.Updated
	m.Skipped = r.Stats.Skipped
	m.Deactivated = r.Stats.Deactivated
	m.Failed = r.Stats.Failed
	m.VariantsCreated = r.Stats.VariantsCreated
	m.VariantsUpdated = r.Stats.VariantsUpdated
	m.VariantsSkipped = r.Stats.VariantsSkipped
	m.VariantFetchFailures = r.Stats.VariantFetchFailures
	m.PagesFetched = r.Stats.PagesFetched
	m.PagesSkipped = r.Stats.PagesSkipped
	m.ErrorMessage = r.ErrorMessage
	m.ErrorKind = r.ErrorKind
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt
}

// SyncRunModelFromDomain creates a new persistence model from a domain SyncRun
func SyncRunModelFromDomain(r *integration.SyncRun) *SyncRunModel {
	m := &SyncRunModel{}
	m.FromDomain(r)
	return m
}

// FinalizeColumns returns the columns written when a run reaches its terminal state
func (m *SyncRunModel) FinalizeColumns() map[string]any {
	return map[string]any{
		"status":                 m.Status,
		"synced":                 m.Synced,
		"created":                m.Created,
		"updated":                m.Updated,
		"skipped":                m.Skipped,
		"deactivated":            m.Deactivated,
		"failed":                 m.Failed,
		"variants_created":       m.VariantsCreated,
		"variants_updated":       m.VariantsUpdated,
		"variants_skipped":       m.VariantsSkipped,
		"variant_fetch_failures": m.VariantFetchFailures,
		"pages_fetched":          m.PagesFetched,
		"pages_skipped":          m.PagesSkipped,
		"error_message":          m.ErrorMessage,
		"error_kind":             m.ErrorKind,
		"finished_at":            m.FinishedAt,
	}
}
