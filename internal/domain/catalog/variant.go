package catalog

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrVariantProductRequired    = errors.New("catalog: variant must belong to a product")
	ErrVariantAttributesRequired = errors.New("catalog: variant must have at least one attribute")
	ErrVariantAttributeInvalid   = errors.New("catalog: variant attribute name is required")
	ErrVariantAlreadyExists      = errors.New("catalog: variant with this attribute set already exists")
	ErrVariantNotFound           = errors.New("catalog: variant not found")
)

// Attribute is one name/value pair of a variant, e.g. Color=Red
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AttributeSet is the ordered list of attributes that identifies a variant
// within its owning product.
type AttributeSet []Attribute

// keyEscaper escapes the pair and field separators of an attribute key
var keyEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`, `|`, `\|`)

// Key returns the canonical identity of the set. Names and values are
// case-folded and pairs are sorted by name, so {Size:M, Color:Red} and
// {color:red, size:m} address the same variant. Separators inside names and
// values are backslash-escaped, so distinct sets never share a key.
func (s AttributeSet) Key() string {
	pairs := make([]string, 0, len(s))
	for _, a := range s {
		pairs = append(pairs, keyEscaper.Replace(FoldName(a.Name))+"="+keyEscaper.Replace(FoldName(a.Value)))
	}
	slices.Sort(pairs)
	return strings.Join(pairs, "|")
}

// Validate checks that every attribute is named
func (s AttributeSet) Validate() error {
	if len(s) == 0 {
		return ErrVariantAttributesRequired
	}
	for _, a := range s {
		if strings.TrimSpace(a.Name) == "" {
			return ErrVariantAttributeInvalid
		}
	}
	return nil
}

// Variant is a purchasable combination of a configurable mirrored product.
// It is uniquely addressed by (ProductID, Attributes.Key()).
type Variant struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	RemoteID     int64
	SKU          string
	RegularPrice decimal.Decimal
	SalePrice    *decimal.Decimal
	Price        decimal.Decimal
	Stock        int
	Active       bool
	Image        string
	Attributes   AttributeSet
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewVariant creates a variant for the owning product
func NewVariant(productID uuid.UUID, attributes AttributeSet) (*Variant, error) {
	if productID == uuid.Nil {
		return nil, ErrVariantProductRequired
	}
	if err := attributes.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Variant{
		ID:         uuid.New(),
		ProductID:  productID,
		Attributes: slices.Clone(attributes),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AttributeKey returns the canonical key of the variant's attribute set
func (v *Variant) AttributeKey() string {
	return v.Attributes.Key()
}

// SameState reports whether the mutable fields of two variants are equal
func (v *Variant) SameState(other *Variant) bool {
	return v.RemoteID == other.RemoteID &&
		v.SKU == other.SKU &&
		v.RegularPrice.Equal(other.RegularPrice) &&
		equalOptionalDecimal(v.SalePrice, other.SalePrice) &&
		v.Price.Equal(other.Price) &&
		v.Stock == other.Stock &&
		v.Active == other.Active &&
		v.Image == other.Image &&
		slices.Equal(v.Attributes, other.Attributes)
}

// CopyStateFrom overwrites the mutable fields with the ones from other,
// keeping identity and creation time.
func (v *Variant) CopyStateFrom(other *Variant) {
	v.RemoteID = other.RemoteID
	v.SKU = other.SKU
	v.RegularPrice = other.RegularPrice
	v.SalePrice = other.SalePrice
	v.Price = other.Price
	v.Stock = other.Stock
	v.Active = other.Active
	v.Image = other.Image
	v.Attributes = slices.Clone(other.Attributes)
	v.UpdatedAt = time.Now()
}

// EqualOptionalDecimal compares two nullable amounts
func EqualOptionalDecimal(a, b *decimal.Decimal) bool {
	return equalOptionalDecimal(a, b)
}

func equalOptionalDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
