package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/catalog"
)

// ---------------------------------------------------------------------------
// ProductIdentityMapping Entity
// ---------------------------------------------------------------------------

// ProductIdentityMapping links a remote item to its mirrored product.
// It is created once, on the first sync of the remote item, and never mutated.
// At most one mapping exists per remote ID and per product.
type ProductIdentityMapping struct {
	// ID is the unique identifier of this mapping
	ID uuid.UUID
	// RemoteID is the item ID on the remote catalog
	RemoteID int64
	// ProductID is the mirrored product ID
	ProductID uuid.UUID
	// CreatedAt is when this mapping was created
	CreatedAt time.Time
}

// NewProductIdentityMapping creates a new product mapping
func NewProductIdentityMapping(remoteID int64, productID uuid.UUID) (*ProductIdentityMapping, error) {
	if remoteID <= 0 {
		return nil, ErrMappingInvalidRemoteID
	}
	if productID == uuid.Nil {
		return nil, ErrMappingInvalidLocalID
	}

	return &ProductIdentityMapping{
		ID:        uuid.New(),
		RemoteID:  remoteID,
		ProductID: productID,
		CreatedAt: time.Now(),
	}, nil
}

// ---------------------------------------------------------------------------
// CategoryIdentityMapping Entity
// ---------------------------------------------------------------------------

// CategoryIdentityMapping links a remote category to a local category
type CategoryIdentityMapping struct {
	ID               uuid.UUID
	RemoteCategoryID int64
	RemoteName       string
	CategoryID       uuid.UUID
	CreatedAt        time.Time
}

// NewCategoryIdentityMapping creates a new category mapping.
// A zero remote category ID is allowed for categories only known by name.
func NewCategoryIdentityMapping(remoteCategoryID int64, remoteName string, categoryID uuid.UUID) (*CategoryIdentityMapping, error) {
	remoteName = strings.TrimSpace(remoteName)
	if remoteCategoryID < 0 {
		return nil, ErrMappingInvalidRemoteID
	}
	if remoteName == "" {
		return nil, ErrMappingInvalidRemoteName
	}
	if categoryID == uuid.Nil {
		return nil, ErrMappingInvalidLocalID
	}

	return &CategoryIdentityMapping{
		ID:               uuid.New(),
		RemoteCategoryID: remoteCategoryID,
		RemoteName:       remoteName,
		CategoryID:       categoryID,
		CreatedAt:        time.Now(),
	}, nil
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// ProductMappingRepository persists product identity mappings.
// Create returns ErrMappingAlreadyExists when either side is already mapped.
type ProductMappingRepository interface {
	// FindAll loads every product mapping; called once per run
	FindAll(ctx context.Context) ([]ProductIdentityMapping, error)

	// Create inserts a new mapping
	Create(ctx context.Context, mapping *ProductIdentityMapping) error

	// CreateWithProduct inserts a mirrored product and its mapping atomically.
	// When either write fails neither row is kept.
	CreateWithProduct(ctx context.Context, product *catalog.MirroredProduct, mapping *ProductIdentityMapping) error
}

// CategoryMappingRepository persists category identity mappings
type CategoryMappingRepository interface {
	// FindAll loads every category mapping; called once per run
	FindAll(ctx context.Context) ([]CategoryIdentityMapping, error)

	// Create inserts a new mapping
	Create(ctx context.Context, mapping *CategoryIdentityMapping) error
}
