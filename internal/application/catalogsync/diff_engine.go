package catalogsync

import (
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// DecisionKind is the outcome of diffing one remote item
type DecisionKind int

const (
	DecisionNoOp DecisionKind = iota
	DecisionUpdate
	DecisionInsert
)

// String returns the name used in logs and metrics
func (k DecisionKind) String() string {
	switch k {
	case DecisionUpdate:
		return "update"
	case DecisionInsert:
		return "insert"
	default:
		return "noop"
	}
}

// Decision is the write a remote item requires. Changes is only set for updates.
type Decision struct {
	Kind    DecisionKind
	Changes catalog.FieldChanges
}

// DiffEngine decides per item whether the mirror needs a write and which
// columns change. It holds no state.
type DiffEngine struct{}

// NewDiffEngine creates a new DiffEngine
func NewDiffEngine() *DiffEngine {
	return &DiffEngine{}
}

// TopLevel drops variation records; they are reconciled with their parent
func (e *DiffEngine) TopLevel(items []integration.RemoteItem) []integration.RemoteItem {
	return lo.Reject(items, func(item integration.RemoteItem, _ int) bool {
		return item.IsVariant()
	})
}

// Diff compares the reconciled fields of a remote item with the mirrored row.
// A nil current row means the item is unmapped and must be inserted.
func (e *DiffEngine) Diff(remote integration.RemoteItem, current *catalog.MirroredProduct) Decision {
	if current == nil {
		return Decision{Kind: DecisionInsert}
	}

	changes := catalog.FieldChanges{}

	if price := mirrorPrice(remote); !price.Equal(current.Price) {
		changes[catalog.FieldPrice] = price
	}
	if compareAt := remote.CompareAtPrice(); !catalog.EqualOptionalDecimal(compareAt, current.CompareAtPrice) {
		changes[catalog.FieldCompareAtPrice] = compareAt
	}
	if stock := remote.Stock(); stock != current.Stock {
		changes[catalog.FieldStock] = stock
	}
	if active := remote.IsPublished(); active != current.Active {
		changes[catalog.FieldActive] = active
	}
	if images := orEmpty(remote.Images); !slices.Equal(images, current.Images) {
		changes[catalog.FieldImages] = slices.Clone(images)
	}
	if remote.SKU != current.SKU {
		changes[catalog.FieldSKU] = remote.SKU
	}
	if tags := orEmpty(remote.Tags); !slices.Equal(tags, current.Tags) {
		changes[catalog.FieldTags] = slices.Clone(tags)
	}

	if changes.IsEmpty() {
		return Decision{Kind: DecisionNoOp}
	}
	return Decision{Kind: DecisionUpdate, Changes: changes}
}

// StaleMappings returns the remote IDs that are mapped locally but absent
// from the fetched remote set, in ascending order.
func (e *DiffEngine) StaleMappings(mapped map[int64]uuid.UUID, seen map[int64]struct{}) []int64 {
	stale := lo.Filter(lo.Keys(mapped), func(remoteID int64, _ int) bool {
		_, ok := seen[remoteID]
		return !ok
	})
	slices.Sort(stale)
	return stale
}

// NewProductFromRemote builds the mirrored row of an unmapped remote item
func NewProductFromRemote(remote integration.RemoteItem, categoryID *uuid.UUID) (*catalog.MirroredProduct, error) {
	product, err := catalog.NewMirroredProduct(remote.Name, mirrorPrice(remote), remote.Stock())
	if err != nil {
		return nil, err
	}
	product.Description = remote.Description
	product.CompareAtPrice = remote.CompareAtPrice()
	product.Active = remote.IsPublished()
	product.Images = slices.Clone(orEmpty(remote.Images))
	product.SKU = remote.SKU
	product.Tags = slices.Clone(orEmpty(remote.Tags))
	product.CategoryID = categoryID
	product.HasVariants = remote.IsConfigurable()
	return product, nil
}

// mirrorPrice is the effective price, falling back to the regular price when
// the remote leaves it empty.
func mirrorPrice(remote integration.RemoteItem) decimal.Decimal {
	if remote.Price.IsZero() && !remote.RegularPrice.IsZero() {
		return remote.RegularPrice
	}
	return remote.Price
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
