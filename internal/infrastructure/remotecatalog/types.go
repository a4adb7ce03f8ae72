package remotecatalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Remote API payloads
// ---------------------------------------------------------------------------

// productPayload is one element of GET /products
type productPayload struct {
	ID            int64             `json:"id" validate:"required,gt=0"`
	ParentID      int64             `json:"parent_id" validate:"gte=0"`
	Name          string            `json:"name" validate:"required"`
	Type          string            `json:"type" validate:"required"`
	Status        string            `json:"status" validate:"required"`
	Description   string            `json:"description"`
	SKU           string            `json:"sku"`
	Price         string            `json:"price" validate:"omitempty,numeric"`
	RegularPrice  string            `json:"regular_price" validate:"omitempty,numeric"`
	SalePrice     string            `json:"sale_price" validate:"omitempty,numeric"`
	StockQuantity *int              `json:"stock_quantity"`
	StockStatus   string            `json:"stock_status"`
	Images        []imagePayload    `json:"images" validate:"dive"`
	Categories    []categoryPayload `json:"categories" validate:"dive"`
	Tags          []tagPayload      `json:"tags" validate:"dive"`
}

type imagePayload struct {
	ID  int64  `json:"id"`
	Src string `json:"src" validate:"required"`
}

type categoryPayload struct {
	ID   int64  `json:"id" validate:"gte=0"`
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug"`
}

type tagPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"required"`
}

// variationPayload is one element of GET /products/{id}/variations
type variationPayload struct {
	ID            int64              `json:"id" validate:"required,gt=0"`
	SKU           string             `json:"sku"`
	Status        string             `json:"status"`
	Price         string             `json:"price" validate:"omitempty,numeric"`
	RegularPrice  string             `json:"regular_price" validate:"omitempty,numeric"`
	SalePrice     string             `json:"sale_price" validate:"omitempty,numeric"`
	StockQuantity *int               `json:"stock_quantity"`
	StockStatus   string             `json:"stock_status"`
	Image         *imagePayload      `json:"image"`
	Attributes    []attributePayload `json:"attributes" validate:"required,min=1,dive"`
}

type attributePayload struct {
	ID     int64  `json:"id"`
	Name   string `json:"name" validate:"required"`
	Option string `json:"option"`
}

// ---------------------------------------------------------------------------
// Conversion to domain values
// ---------------------------------------------------------------------------

func (p *productPayload) toRemoteItem() (integration.RemoteItem, error) {
	regular, err := parseAmount(p.RegularPrice)
	if err != nil {
		return integration.RemoteItem{}, fmt.Errorf("product %d regular_price: %w", p.ID, err)
	}
	price, err := parseAmount(p.Price)
	if err != nil {
		return integration.RemoteItem{}, fmt.Errorf("product %d price: %w", p.ID, err)
	}
	sale, err := parseOptionalAmount(p.SalePrice)
	if err != nil {
		return integration.RemoteItem{}, fmt.Errorf("product %d sale_price: %w", p.ID, err)
	}

	item := integration.RemoteItem{
		ID:            p.ID,
		ParentID:      p.ParentID,
		Name:          strings.TrimSpace(p.Name),
		Description:   p.Description,
		RegularPrice:  regular,
		SalePrice:     sale,
		Price:         price,
		StockQuantity: p.StockQuantity,
		StockStatus:   integration.StockStatus(p.StockStatus),
		SKU:           p.SKU,
		Type:          integration.ItemType(p.Type),
		Status:        integration.ItemStatus(p.Status),
		Images:        make([]string, 0, len(p.Images)),
		Categories:    make([]integration.RemoteCategory, 0, len(p.Categories)),
		Tags:          make([]string, 0, len(p.Tags)),
	}
	for _, img := range p.Images {
		item.Images = append(item.Images, img.Src)
	}
	for _, c := range p.Categories {
		item.Categories = append(item.Categories, integration.RemoteCategory{ID: c.ID, Name: c.Name})
	}
	for _, t := range p.Tags {
		item.Tags = append(item.Tags, t.Name)
	}
	return item, nil
}

func (v *variationPayload) toRemoteVariant() (integration.RemoteVariant, error) {
	regular, err := parseAmount(v.RegularPrice)
	if err != nil {
		return integration.RemoteVariant{}, fmt.Errorf("variation %d regular_price: %w", v.ID, err)
	}
	price, err := parseAmount(v.Price)
	if err != nil {
		return integration.RemoteVariant{}, fmt.Errorf("variation %d price: %w", v.ID, err)
	}
	sale, err := parseOptionalAmount(v.SalePrice)
	if err != nil {
		return integration.RemoteVariant{}, fmt.Errorf("variation %d sale_price: %w", v.ID, err)
	}

	variant := integration.RemoteVariant{
		ID:            v.ID,
		SKU:           v.SKU,
		RegularPrice:  regular,
		SalePrice:     sale,
		Price:         price,
		StockQuantity: v.StockQuantity,
		StockStatus:   integration.StockStatus(v.StockStatus),
		Status:        integration.ItemStatus(v.Status),
		Attributes:    make(catalog.AttributeSet, 0, len(v.Attributes)),
	}
	if v.Image != nil {
		variant.Image = v.Image.Src
	}
	for _, a := range v.Attributes {
		variant.Attributes = append(variant.Attributes, catalog.Attribute{Name: a.Name, Value: a.Option})
	}
	return variant, nil
}

// parseAmount parses a price string; the remote sends "" for unset prices
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseOptionalAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
