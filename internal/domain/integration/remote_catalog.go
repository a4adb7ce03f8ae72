package integration

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/catalog"
)

// ---------------------------------------------------------------------------
// ItemType represents the structural type of a remote item
// ---------------------------------------------------------------------------

// ItemType represents the structural type of a remote item
type ItemType string

const (
	// ItemTypeSimple is a product without variants
	ItemTypeSimple ItemType = "simple"
	// ItemTypeConfigurable is a product with purchasable variants
	ItemTypeConfigurable ItemType = "variable"
	// ItemTypeVariation is a variant listed as a top-level record
	ItemTypeVariation ItemType = "variation"
	// ItemTypeGrouped bundles other products
	ItemTypeGrouped ItemType = "grouped"
	// ItemTypeExternal links to another shop
	ItemTypeExternal ItemType = "external"
)

// String returns the string representation
func (t ItemType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// ItemStatus represents the publication status of a remote item
// ---------------------------------------------------------------------------

// ItemStatus represents the publication status of a remote item
type ItemStatus string

const (
	ItemStatusPublish ItemStatus = "publish"
	ItemStatusDraft   ItemStatus = "draft"
	ItemStatusPending ItemStatus = "pending"
	ItemStatusPrivate ItemStatus = "private"
)

// StockStatus is the remote stock availability flag
type StockStatus string

const (
	StockStatusInStock     StockStatus = "instock"
	StockStatusOutOfStock  StockStatus = "outofstock"
	StockStatusOnBackorder StockStatus = "onbackorder"
)

// ---------------------------------------------------------------------------
// Remote value objects
// ---------------------------------------------------------------------------

// RemoteCategory is a category reference carried by a remote item
type RemoteCategory struct {
	ID   int64
	Name string
}

// RemoteItem is one product of the remote catalog. It is decoded fresh on
// every run and never persisted as-is.
type RemoteItem struct {
	ID            int64
	ParentID      int64
	Name          string
	Description   string
	RegularPrice  decimal.Decimal
	SalePrice     *decimal.Decimal
	Price         decimal.Decimal
	StockQuantity *int
	StockStatus   StockStatus
	Images        []string
	Categories    []RemoteCategory
	Tags          []string
	SKU           string
	Type          ItemType
	Status        ItemStatus
}

// IsConfigurable returns true when the item owns variants
func (i RemoteItem) IsConfigurable() bool {
	return i.Type == ItemTypeConfigurable
}

// IsVariant returns true when the item is a sub-record of a configurable item.
// Such items are reconciled by the variant synchronizer only.
func (i RemoteItem) IsVariant() bool {
	return i.Type == ItemTypeVariation || i.ParentID != 0
}

// IsPublished returns true when the item is visible in the remote shop
func (i RemoteItem) IsPublished() bool {
	return i.Status == ItemStatusPublish
}

// Stock returns the stock quantity to mirror. Items without managed stock
// mirror as zero.
func (i RemoteItem) Stock() int {
	if i.StockQuantity == nil || *i.StockQuantity < 0 {
		return 0
	}
	return *i.StockQuantity
}

// CompareAtPrice returns the price to display struck through. It is the
// regular price while a sale price is active, nil otherwise.
func (i RemoteItem) CompareAtPrice() *decimal.Decimal {
	if i.SalePrice == nil || !i.RegularPrice.GreaterThan(*i.SalePrice) {
		return nil
	}
	regular := i.RegularPrice
	return &regular
}

// PrimaryCategory returns the first category reference, if any
func (i RemoteItem) PrimaryCategory() (RemoteCategory, bool) {
	if len(i.Categories) == 0 {
		return RemoteCategory{}, false
	}
	return i.Categories[0], true
}

// RemoteVariant is one variation of a configurable remote item
type RemoteVariant struct {
	ID            int64
	SKU           string
	RegularPrice  decimal.Decimal
	SalePrice     *decimal.Decimal
	Price         decimal.Decimal
	StockQuantity *int
	StockStatus   StockStatus
	Status        ItemStatus
	Image         string
	Attributes    catalog.AttributeSet
}

// Stock returns the stock quantity to mirror
func (v RemoteVariant) Stock() int {
	if v.StockQuantity == nil || *v.StockQuantity < 0 {
		return 0
	}
	return *v.StockQuantity
}

// RejectedRecord is a remote record that failed validation. It is reported
// alongside the valid records of its page instead of failing the page.
type RejectedRecord struct {
	Position int   // index within the page
	RemoteID int64 // zero when the id itself is invalid
	Reason   string
}

// Page is one page of the remote catalog listing
type Page struct {
	Number     int
	Items      []RemoteItem
	Rejected   []RejectedRecord
	TotalPages int
	TotalCount int
}

// VariationPage is one page of the variation listing of a configurable item
type VariationPage struct {
	Number     int
	Variants   []RemoteVariant
	Rejected   []RejectedRecord
	TotalPages int
}

// ---------------------------------------------------------------------------
// RemoteCatalog Port Interface
// ---------------------------------------------------------------------------

// RemoteCatalog is the port to the external catalog API.
//
// Design Pattern: Ports & Adapters
// This interface is the "port" that the application layer depends on.
// The HTTP client in infrastructure/remotecatalog is the "adapter".
//
// Error contract:
//   - ErrCredentialsMissing: no credentials configured
//   - ErrRemoteAuthFailed: both credential placements were rejected
//   - ErrAntiBotChallenge: the response is a challenge page, not JSON
//   - ErrRemoteUnavailable / ErrRemoteRequestFailed / ErrRemoteInvalidResponse: recoverable
//
// ErrRemoteInvalidResponse is reserved for bodies that cannot be decoded at
// all. Single records that fail validation are returned as Rejected.
type RemoteCatalog interface {
	// FetchPage returns one page of published items. TotalPages and TotalCount
	// are read from the pagination headers.
	FetchPage(ctx context.Context, page, pageSize int) (*Page, error)

	// FetchVariationPage returns one page of the variations of a configurable
	// item. Each call is a single request.
	FetchVariationPage(ctx context.Context, remoteProductID int64, page int) (*VariationPage, error)
}
