package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductRepository persists mirrored products.
// Every write commits on its own; callers never need a surrounding transaction.
type ProductRepository interface {
	// FindByID finds a mirrored product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*MirroredProduct, error)

	// FindByIDs loads the given products in bulk
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]MirroredProduct, error)

	// Create inserts a new mirrored product
	Create(ctx context.Context, product *MirroredProduct) error

	// UpdateFields writes only the given columns of the product
	UpdateFields(ctx context.Context, id uuid.UUID, changes FieldChanges) error

	// Deactivate clears the active flag of the product
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// CategoryRepository persists categories
type CategoryRepository interface {
	// FindAll returns every local category
	FindAll(ctx context.Context) ([]Category, error)

	// Create inserts a new category
	Create(ctx context.Context, category *Category) error
}

// VariantRepository persists variant records
type VariantRepository interface {
	// FindByProduct returns every variant of the owning product
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]Variant, error)

	// Create inserts a new variant
	Create(ctx context.Context, variant *Variant) error

	// Update overwrites the mutable fields of an existing variant
	Update(ctx context.Context, variant *Variant) error
}
