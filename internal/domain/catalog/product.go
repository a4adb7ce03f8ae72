package catalog

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product validation errors
var (
	ErrProductNameRequired  = errors.New("catalog: product name is required")
	ErrProductNegativeStock = errors.New("catalog: product stock cannot be negative")
	ErrProductNegativePrice = errors.New("catalog: product price cannot be negative")
	ErrProductNotFound      = errors.New("catalog: product not found")
)

// MirroredProduct is the local copy of a remote catalog item.
// Its lifecycle is owned by the mirror; a reconciliation run only ever
// creates it, patches individual fields or clears its active flag.
type MirroredProduct struct {
	ID             uuid.UUID
	Name           string
	Description    string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Stock          int
	Active         bool
	Images         []string
	SKU            string
	Tags           []string
	CategoryID     *uuid.UUID
	HasVariants    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewMirroredProduct creates a new active mirrored product
func NewMirroredProduct(name string, price decimal.Decimal, stock int) (*MirroredProduct, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrProductNameRequired
	}
	if price.IsNegative() {
		return nil, ErrProductNegativePrice
	}
	if stock < 0 {
		return nil, ErrProductNegativeStock
	}

	now := time.Now()
	return &MirroredProduct{
		ID:        uuid.New(),
		Name:      name,
		Price:     price,
		Stock:     stock,
		Active:    true,
		Images:    []string{},
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Apply copies the changed values onto the product.
// It is used to keep the in-memory snapshot in step with a persisted patch.
func (p *MirroredProduct) Apply(changes FieldChanges) {
	for field, value := range changes {
		switch field {
		case FieldPrice:
			p.Price = value.(decimal.Decimal)
		case FieldCompareAtPrice:
			p.CompareAtPrice = value.(*decimal.Decimal)
		case FieldStock:
			p.Stock = value.(int)
		case FieldActive:
			p.Active = value.(bool)
		case FieldImages:
			p.Images = slices.Clone(value.([]string))
		case FieldSKU:
			p.SKU = value.(string)
		case FieldTags:
			p.Tags = slices.Clone(value.([]string))
		}
	}
	p.UpdatedAt = time.Now()
}

// Deactivate clears the active flag. Mirrored products are never deleted.
func (p *MirroredProduct) Deactivate() bool {
	if !p.Active {
		return false
	}
	p.Active = false
	p.UpdatedAt = time.Now()
	return true
}

// ---------------------------------------------------------------------------
// Field-level changes
// ---------------------------------------------------------------------------

// ProductField names a reconciled column of a mirrored product
type ProductField string

const (
	FieldPrice          ProductField = "price"
	FieldCompareAtPrice ProductField = "compare_at_price"
	FieldStock          ProductField = "stock"
	FieldActive         ProductField = "active"
	FieldImages         ProductField = "images"
	FieldSKU            ProductField = "sku"
	FieldTags           ProductField = "tags"
)

// FieldChanges holds only the fields that differ from the stored row.
//
// Value types per field:
//   - price: decimal.Decimal
//   - compare_at_price: *decimal.Decimal (nil clears it)
//   - stock: int
//   - active: bool
//   - images, tags: []string
//   - sku: string
type FieldChanges map[ProductField]any

// IsEmpty returns true when nothing changed
func (c FieldChanges) IsEmpty() bool {
	return len(c) == 0
}

// Fields returns the changed field names in a stable order
func (c FieldChanges) Fields() []ProductField {
	fields := make([]ProductField, 0, len(c))
	for f := range c {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

// Has reports whether the field is part of the change set
func (c FieldChanges) Has(field ProductField) bool {
	_, ok := c[field]
	return ok
}
