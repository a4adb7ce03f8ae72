package catalogsync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

func mirroredFrom(t *testing.T, item integration.RemoteItem) *catalog.MirroredProduct {
	t.Helper()
	p, err := NewProductFromRemote(item, nil)
	require.NoError(t, err)
	return p
}

func TestDiffEngine_Diff(t *testing.T) {
	engine := NewDiffEngine()
	base := remoteItem(1, "Tee")
	sale := dec("14.99")

	tests := []struct {
		name    string
		mutate  func(item *integration.RemoteItem)
		current func(p *catalog.MirroredProduct)
		want    []catalog.ProductField
	}{
		{name: "no change", mutate: func(*integration.RemoteItem) {}},
		{name: "stock", mutate: func(i *integration.RemoteItem) { i.StockQuantity = intPtr(0) }, want: []catalog.ProductField{catalog.FieldStock}},
		{name: "unmanaged stock mirrors as zero", mutate: func(i *integration.RemoteItem) { i.StockQuantity = nil }, want: []catalog.ProductField{catalog.FieldStock}},
		{name: "price equal by value", mutate: func(i *integration.RemoteItem) { i.Price = dec("19.990") }},
		{name: "sale starts", mutate: func(i *integration.RemoteItem) {
			i.SalePrice = &sale
			i.Price = sale
		}, want: []catalog.ProductField{catalog.FieldCompareAtPrice, catalog.FieldPrice}},
		{
			name:    "images reordered",
			mutate:  func(i *integration.RemoteItem) { i.Images = []string{"b.jpg", "a.jpg"} },
			current: func(p *catalog.MirroredProduct) { p.Images = []string{"a.jpg", "b.jpg"} },
			want:    []catalog.ProductField{catalog.FieldImages},
		},
		{name: "tags", mutate: func(i *integration.RemoteItem) { i.Tags = []string{"new", "sale"} }, want: []catalog.ProductField{catalog.FieldTags}},
		{name: "sku", mutate: func(i *integration.RemoteItem) { i.SKU = "OTHER" }, want: []catalog.ProductField{catalog.FieldSKU}},
		{name: "unpublished", mutate: func(i *integration.RemoteItem) { i.Status = integration.ItemStatusDraft }, want: []catalog.ProductField{catalog.FieldActive}},
		{name: "name is not reconciled", mutate: func(i *integration.RemoteItem) { i.Name = "Renamed" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := mirroredFrom(t, base)
			if tt.current != nil {
				tt.current(current)
			}

			item := base
			tt.mutate(&item)

			decision := engine.Diff(item, current)
			if tt.want == nil {
				assert.Equal(t, DecisionNoOp, decision.Kind)
				assert.True(t, decision.Changes.IsEmpty())
				return
			}
			assert.Equal(t, DecisionUpdate, decision.Kind)
			assert.Equal(t, tt.want, decision.Changes.Fields())
		})
	}
}

func TestDiffEngine_DiffUnmappedInserts(t *testing.T) {
	decision := NewDiffEngine().Diff(remoteItem(1, "Tee"), nil)
	assert.Equal(t, DecisionInsert, decision.Kind)
	assert.Equal(t, "insert", decision.Kind.String())
}

func TestDiffEngine_UpdateValues(t *testing.T) {
	item := remoteItem(1, "Tee")
	current := mirroredFrom(t, item)
	item.StockQuantity = intPtr(4)
	item.Tags = []string{"a"}

	decision := NewDiffEngine().Diff(item, current)
	require.Equal(t, DecisionUpdate, decision.Kind)
	assert.Equal(t, 4, decision.Changes[catalog.FieldStock])
	assert.Equal(t, []string{"a"}, decision.Changes[catalog.FieldTags])

	current.Apply(decision.Changes)
	assert.Equal(t, DecisionNoOp, NewDiffEngine().Diff(item, current).Kind)
}

func TestDiffEngine_NilAndEmptyListsAreEqual(t *testing.T) {
	item := remoteItem(1, "Tee")
	item.Images = nil
	item.Tags = nil
	current := mirroredFrom(t, item)
	current.Images = nil
	current.Tags = []string{}

	assert.Equal(t, DecisionNoOp, NewDiffEngine().Diff(item, current).Kind)
}

func TestDiffEngine_TopLevel(t *testing.T) {
	simple := remoteItem(1, "A")
	variation := remoteItem(2, "B")
	variation.Type = integration.ItemTypeVariation
	child := remoteItem(3, "C")
	child.ParentID = 1

	top := NewDiffEngine().TopLevel([]integration.RemoteItem{simple, variation, child})
	require.Len(t, top, 1)
	assert.Equal(t, int64(1), top[0].ID)
}

func TestDiffEngine_StaleMappings(t *testing.T) {
	mapped := map[int64]uuid.UUID{5: uuid.New(), 1: uuid.New(), 3: uuid.New(), 9: uuid.New()}
	seen := map[int64]struct{}{1: {}, 9: {}, 42: {}}

	assert.Equal(t, []int64{3, 5}, NewDiffEngine().StaleMappings(mapped, seen))
	assert.Empty(t, NewDiffEngine().StaleMappings(map[int64]uuid.UUID{}, seen))
}

func TestNewProductFromRemote(t *testing.T) {
	item := remoteItem(1, "Tee")
	sale := dec("9.99")
	item.SalePrice = &sale
	item.Price = decimal.Zero
	item.Type = integration.ItemTypeConfigurable
	categoryID := uuid.New()

	p, err := NewProductFromRemote(item, &categoryID)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(dec("19.99")), "empty effective price falls back to regular")
	require.NotNil(t, p.CompareAtPrice)
	assert.True(t, p.CompareAtPrice.Equal(dec("19.99")))
	assert.True(t, p.HasVariants)
	assert.True(t, p.Active)
	assert.Equal(t, &categoryID, p.CategoryID)

	item.Name = "  "
	_, err = NewProductFromRemote(item, nil)
	assert.ErrorIs(t, err, catalog.ErrProductNameRequired)
}
