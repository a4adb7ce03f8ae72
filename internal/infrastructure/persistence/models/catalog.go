package models

import (
	"slices"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MirroredProductModel is the persistence model for the MirroredProduct entity
type MirroredProductModel struct {
	BaseModel
	Name           string           `gorm:"type:varchar(500);not null"`
	Description    string           `gorm:"type:text"`
	Price          decimal.Decimal  `gorm:"type:numeric(18,4);not null"`
	CompareAtPrice *decimal.Decimal `gorm:"type:numeric(18,4)"`
	Stock          int              `gorm:"not null"`
	Active         bool             `gorm:"not null;index"`
	Images         StringList       `gorm:"type:jsonb;not null"`
	SKU            string           `gorm:"type:varchar(100);index"`
	Tags           StringList       `gorm:"type:jsonb;not null"`
	CategoryID     *uuid.UUID       `gorm:"type:uuid;index"`
	HasVariants    bool             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MirroredProductModel) TableName() string {
	return "mirrored_products"
}

// ToDomain converts the persistence model to a domain MirroredProduct
func (m *MirroredProductModel) ToDomain() *catalog.MirroredProduct {
	return &catalog.MirroredProduct{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		Price:          m.Price,
		CompareAtPrice: m.CompareAtPrice,
		Stock:          m.Stock,
		Active:         m.Active,
		Images:         nonNil(m.Images),
		SKU:            m.SKU,
		Tags:           nonNil(m.Tags),
		CategoryID:     m.CategoryID,
		HasVariants:    m.HasVariants,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain MirroredProduct
func (m *MirroredProductModel) FromDomain(p *catalog.MirroredProduct) {
	m.BaseModel = newBaseModel(p.ID, p.CreatedAt, p.UpdatedAt)
	m.Name = p.Name
	m.Description = p.Description
	m.Price = p.Price
	m.CompareAtPrice = p.CompareAtPrice
	m.Stock = p.Stock
	m.Active = p.Active
	m.Images = StringList(slices.Clone(p.Images))
	m.SKU = p.SKU
	m.Tags = StringList(slices.Clone(p.Tags))
	m.CategoryID = p.CategoryID
	m.HasVariants = p.HasVariants
}

// MirroredProductModelFromDomain creates a new persistence model from a domain MirroredProduct
func MirroredProductModelFromDomain(p *catalog.MirroredProduct) *MirroredProductModel {
	m := &MirroredProductModel{}
	m.FromDomain(p)
	return m
}

// ProductColumns maps a reconciled field to its column and storable value
func ProductColumns(changes catalog.FieldChanges) map[string]any {
	columns := make(map[string]any, len(changes))
	for field, value := range changes {
		switch field {
		case catalog.FieldImages, catalog.FieldTags:
			columns[string(field)] = StringList(value.([]string))
		case catalog.FieldCompareAtPrice:
			if amount := value.(*decimal.Decimal); amount != nil {
				columns[string(field)] = *amount
			} else {
				columns[string(field)] = nil
			}
		default:
			columns[string(field)] = value
		}
	}
	return columns
}

// CategoryModel is the persistence model for the Category entity
type CategoryModel struct {
	BaseModel
	Name string `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CategoryModelFromDomain creates a new persistence model from a domain Category
func CategoryModelFromDomain(c *catalog.Category) *CategoryModel {
	return &CategoryModel{
		BaseModel: newBaseModel(c.ID, c.CreatedAt, c.UpdatedAt),
		Name:      c.Name,
	}
}

// ProductVariantModel is the persistence model for the Variant entity.
// AttributeKey is the canonical form of Attributes and is unique per product.
type ProductVariantModel struct {
	BaseModel
	ProductID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_variant_product_attributes,priority:1"`
	AttributeKey string           `gorm:"type:varchar(1000);not null;uniqueIndex:idx_variant_product_attributes,priority:2"`
	Attributes   AttributeList    `gorm:"type:jsonb;not null"`
	RemoteID     int64            `gorm:"index"`
	SKU          string           `gorm:"type:varchar(100)"`
	RegularPrice decimal.Decimal  `gorm:"type:numeric(18,4);not null"`
	SalePrice    *decimal.Decimal `gorm:"type:numeric(18,4)"`
	Price        decimal.Decimal  `gorm:"type:numeric(18,4);not null"`
	Stock        int              `gorm:"not null"`
	Active       bool             `gorm:"not null"`
	Image        string           `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a domain Variant
func (m *ProductVariantModel) ToDomain() *catalog.Variant {
	return &catalog.Variant{
		ID:           m.ID,
		ProductID:    m.ProductID,
		RemoteID:     m.RemoteID,
		SKU:          m.SKU,
		RegularPrice: m.RegularPrice,
		SalePrice:    m.SalePrice,
		Price:        m.Price,
		Stock:        m.Stock,
		Active:       m.Active,
		Image:        m.Image,
		Attributes:   catalog.AttributeSet(m.Attributes),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Variant
func (m *ProductVariantModel) FromDomain(v *catalog.Variant) {
	m.BaseModel = newBaseModel(v.ID, v.CreatedAt, v.UpdatedAt)
	m.ProductID = v.ProductID
	m.AttributeKey = v.AttributeKey()
	m.Attributes = AttributeList(slices.Clone(v.Attributes))
	m.RemoteID = v.RemoteID
	m.SKU = v.SKU
	m.RegularPrice = v.RegularPrice
	m.SalePrice = v.SalePrice
	m.Price = v.Price
	m.Stock = v.Stock
	m.Active = v.Active
	m.Image = v.Image
}

// ProductVariantModelFromDomain creates a new persistence model from a domain Variant
func ProductVariantModelFromDomain(v *catalog.Variant) *ProductVariantModel {
	m := &ProductVariantModel{}
	m.FromDomain(v)
	return m
}

func nonNil(list StringList) []string {
	if list == nil {
		return []string{}
	}
	return []string(list)
}
