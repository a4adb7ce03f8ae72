package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMirroredProduct(t *testing.T) {
	t.Run("creates active product with valid inputs", func(t *testing.T) {
		product, err := NewMirroredProduct("  Linen Shirt ", decimal.RequireFromString("49.90"), 12)
		require.NoError(t, err)

		assert.NotEmpty(t, product.ID)
		assert.Equal(t, "Linen Shirt", product.Name)
		assert.True(t, product.Price.Equal(decimal.RequireFromString("49.9")))
		assert.Equal(t, 12, product.Stock)
		assert.True(t, product.Active)
		assert.NotNil(t, product.Images)
		assert.NotNil(t, product.Tags)
	})

	t.Run("fails with empty name", func(t *testing.T) {
		_, err := NewMirroredProduct("   ", decimal.Zero, 0)
		assert.ErrorIs(t, err, ErrProductNameRequired)
	})

	t.Run("fails with negative price", func(t *testing.T) {
		_, err := NewMirroredProduct("Shirt", decimal.NewFromInt(-1), 0)
		assert.ErrorIs(t, err, ErrProductNegativePrice)
	})

	t.Run("fails with negative stock", func(t *testing.T) {
		_, err := NewMirroredProduct("Shirt", decimal.Zero, -3)
		assert.ErrorIs(t, err, ErrProductNegativeStock)
	})
}

func TestMirroredProduct_Apply(t *testing.T) {
	product, err := NewMirroredProduct("Shirt", decimal.NewFromInt(10), 1)
	require.NoError(t, err)

	compareAt := decimal.NewFromInt(15)
	product.Apply(FieldChanges{
		FieldPrice:          decimal.NewFromInt(8),
		FieldCompareAtPrice: &compareAt,
		FieldStock:          7,
		FieldActive:         false,
		FieldImages:         []string{"a.jpg", "b.jpg"},
		FieldSKU:            "SH-1",
		FieldTags:           []string{"summer"},
	})

	assert.True(t, product.Price.Equal(decimal.NewFromInt(8)))
	require.NotNil(t, product.CompareAtPrice)
	assert.True(t, product.CompareAtPrice.Equal(compareAt))
	assert.Equal(t, 7, product.Stock)
	assert.False(t, product.Active)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, product.Images)
	assert.Equal(t, "SH-1", product.SKU)
	assert.Equal(t, []string{"summer"}, product.Tags)
}

func TestMirroredProduct_Deactivate(t *testing.T) {
	product, err := NewMirroredProduct("Shirt", decimal.Zero, 0)
	require.NoError(t, err)

	assert.True(t, product.Deactivate())
	assert.False(t, product.Active)
	assert.False(t, product.Deactivate(), "second deactivation is a no-op")
}

func TestFieldChanges(t *testing.T) {
	changes := FieldChanges{}
	assert.True(t, changes.IsEmpty())

	changes[FieldTags] = []string{"x"}
	changes[FieldStock] = 3
	changes[FieldPrice] = decimal.NewFromInt(1)

	assert.False(t, changes.IsEmpty())
	assert.True(t, changes.Has(FieldStock))
	assert.False(t, changes.Has(FieldSKU))
	assert.Equal(t, []ProductField{FieldPrice, FieldStock, FieldTags}, changes.Fields())
}
