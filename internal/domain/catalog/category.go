package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

var (
	ErrCategoryNameRequired = errors.New("catalog: category name is required")
	ErrCategoryNameTooLong  = errors.New("catalog: category name cannot exceed 200 characters")
)

// Category groups mirrored products
type Category struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCategory creates a new category
func NewCategory(name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCategoryNameRequired
	}
	if len([]rune(name)) > 200 {
		return nil, ErrCategoryNameTooLong
	}

	now := time.Now()
	return &Category{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// FoldedName returns the case-insensitive lookup key for the category name
func (c *Category) FoldedName() string {
	return FoldName(c.Name)
}

// FoldName case-folds a name for case-insensitive comparison.
// Unicode case folding is used so accented capitals match their lower case.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
