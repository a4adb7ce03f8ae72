package persistence

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductMappingRepository implements integration.ProductMappingRepository using GORM
type GormProductMappingRepository struct {
	db *gorm.DB
}

// NewGormProductMappingRepository creates a new GormProductMappingRepository
func NewGormProductMappingRepository(db *gorm.DB) *GormProductMappingRepository {
	return &GormProductMappingRepository{db: db}
}

// FindAll loads every product mapping
func (r *GormProductMappingRepository) FindAll(ctx context.Context) ([]integration.ProductIdentityMapping, error) {
	var mappingModels []models.ProductIdentityMappingModel
	if err := r.db.WithContext(ctx).Order("remote_id ASC").Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]integration.ProductIdentityMapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = *mappingModels[i].ToDomain()
	}
	return mappings, nil
}

// Create inserts a new mapping. Mappings are immutable once written.
func (r *GormProductMappingRepository) Create(ctx context.Context, mapping *integration.ProductIdentityMapping) error {
	err := r.db.WithContext(ctx).Create(models.ProductIdentityMappingModelFromDomain(mapping)).Error
	if isDuplicateKey(err) {
		return integration.ErrMappingAlreadyExists
	}
	return err
}

// CreateWithProduct inserts the product and its mapping in one transaction
func (r *GormProductMappingRepository) CreateWithProduct(ctx context.Context, product *catalog.MirroredProduct, mapping *integration.ProductIdentityMapping) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.MirroredProductModelFromDomain(product)).Error; err != nil {
			return err
		}
		return tx.Create(models.ProductIdentityMappingModelFromDomain(mapping)).Error
	})
	if isDuplicateKey(err) {
		return integration.ErrMappingAlreadyExists
	}
	return err
}

// GormCategoryMappingRepository implements integration.CategoryMappingRepository using GORM
type GormCategoryMappingRepository struct {
	db *gorm.DB
}

// NewGormCategoryMappingRepository creates a new GormCategoryMappingRepository
func NewGormCategoryMappingRepository(db *gorm.DB) *GormCategoryMappingRepository {
	return &GormCategoryMappingRepository{db: db}
}

// FindAll loads every category mapping
func (r *GormCategoryMappingRepository) FindAll(ctx context.Context) ([]integration.CategoryIdentityMapping, error) {
	var mappingModels []models.CategoryIdentityMappingModel
	if err := r.db.WithContext(ctx).Order("remote_name ASC").Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]integration.CategoryIdentityMapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = *mappingModels[i].ToDomain()
	}
	return mappings, nil
}

// Create inserts a new category mapping
func (r *GormCategoryMappingRepository) Create(ctx context.Context, mapping *integration.CategoryIdentityMapping) error {
	err := r.db.WithContext(ctx).Create(models.CategoryIdentityMappingModelFromDomain(mapping)).Error
	if isDuplicateKey(err) {
		return integration.ErrMappingAlreadyExists
	}
	return err
}
