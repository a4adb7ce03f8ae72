package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a mirrored product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.MirroredProduct, error) {
	var model models.MirroredProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs loads the given products in bulk. Unknown IDs are silently absent.
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.MirroredProduct, error) {
	if len(ids) == 0 {
		return []catalog.MirroredProduct{}, nil
	}

	var productModels []models.MirroredProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&productModels).Error; err != nil {
		return nil, err
	}

	products := make([]catalog.MirroredProduct, len(productModels))
	for i := range productModels {
		products[i] = *productModels[i].ToDomain()
	}
	return products, nil
}

// Create inserts a new mirrored product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.MirroredProduct) error {
	return r.db.WithContext(ctx).Create(models.MirroredProductModelFromDomain(product)).Error
}

// UpdateFields writes only the changed columns plus updated_at
func (r *GormProductRepository) UpdateFields(ctx context.Context, id uuid.UUID, changes catalog.FieldChanges) error {
	if changes.IsEmpty() {
		return nil
	}

	columns := models.ProductColumns(changes)
	columns["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.MirroredProductModel{}).
		Where("id = ?", id).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// Deactivate clears the active flag of the product
func (r *GormProductRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.UpdateFields(ctx, id, catalog.FieldChanges{catalog.FieldActive: false})
}

// GormCategoryRepository implements catalog.CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// FindAll returns every local category ordered by name
func (r *GormCategoryRepository) FindAll(ctx context.Context) ([]catalog.Category, error) {
	var categoryModels []models.CategoryModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categoryModels).Error; err != nil {
		return nil, err
	}

	categories := make([]catalog.Category, len(categoryModels))
	for i := range categoryModels {
		categories[i] = *categoryModels[i].ToDomain()
	}
	return categories, nil
}

// Create inserts a new category
func (r *GormCategoryRepository) Create(ctx context.Context, category *catalog.Category) error {
	return r.db.WithContext(ctx).Create(models.CategoryModelFromDomain(category)).Error
}

// GormVariantRepository implements catalog.VariantRepository using GORM
type GormVariantRepository struct {
	db *gorm.DB
}

// NewGormVariantRepository creates a new GormVariantRepository
func NewGormVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// FindByProduct returns every variant of the owning product
func (r *GormVariantRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	var variantModels []models.ProductVariantModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("attribute_key ASC").
		Find(&variantModels).Error; err != nil {
		return nil, err
	}

	variants := make([]catalog.Variant, len(variantModels))
	for i := range variantModels {
		variants[i] = *variantModels[i].ToDomain()
	}
	return variants, nil
}

// Create inserts a new variant. A second variant with the same attribute
// set for the same product violates idx_variant_product_attributes.
func (r *GormVariantRepository) Create(ctx context.Context, variant *catalog.Variant) error {
	err := r.db.WithContext(ctx).Create(models.ProductVariantModelFromDomain(variant)).Error
	if isDuplicateKey(err) {
		return catalog.ErrVariantAlreadyExists
	}
	return err
}

// Update overwrites the mutable fields of an existing variant
func (r *GormVariantRepository) Update(ctx context.Context, variant *catalog.Variant) error {
	m := models.ProductVariantModelFromDomain(variant)
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariantModel{}).
		Where("id = ?", variant.ID).
		Updates(map[string]any{
			"attribute_key": m.AttributeKey,
			"attributes":    m.Attributes,
			"remote_id":     m.RemoteID,
			"sku":           m.SKU,
			"regular_price": m.RegularPrice,
			"sale_price":    m.SalePrice,
			"price":         m.Price,
			"stock":         m.Stock,
			"active":        m.Active,
			"image":         m.Image,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrVariantNotFound
	}
	return nil
}
