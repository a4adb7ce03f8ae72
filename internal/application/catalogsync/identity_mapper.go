package catalogsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// productLoadChunk bounds the number of IDs per bulk product query
const productLoadChunk = 500

// IdentityMapper resolves remote identifiers to local ones. Mappings are
// loaded once per run into the RunContext; new mappings are persisted and
// appended to the in-memory set immediately.
type IdentityMapper struct {
	products         catalog.ProductRepository
	categories       catalog.CategoryRepository
	productMappings  integration.ProductMappingRepository
	categoryMappings integration.CategoryMappingRepository
	logger           *zap.Logger
}

// NewIdentityMapper creates a new IdentityMapper
func NewIdentityMapper(
	products catalog.ProductRepository,
	categories catalog.CategoryRepository,
	productMappings integration.ProductMappingRepository,
	categoryMappings integration.CategoryMappingRepository,
	logger *zap.Logger,
) *IdentityMapper {
	return &IdentityMapper{
		products:         products,
		categories:       categories,
		productMappings:  productMappings,
		categoryMappings: categoryMappings,
		logger:           logger,
	}
}

// Load fills the run caches: product mappings with their current mirrored
// rows, local categories and category mappings.
func (m *IdentityMapper) Load(ctx context.Context, rc *RunContext) error {
	mappings, err := m.productMappings.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load product mappings: %w", err)
	}
	for _, mapping := range mappings {
		rc.addProductMapping(mapping.RemoteID, mapping.ProductID)
	}

	ids := lo.Map(mappings, func(mapping integration.ProductIdentityMapping, _ int) uuid.UUID {
		return mapping.ProductID
	})
	for _, chunk := range lo.Chunk(ids, productLoadChunk) {
		products, err := m.products.FindByIDs(ctx, chunk)
		if err != nil {
			return fmt.Errorf("load mirrored products: %w", err)
		}
		for i := range products {
			rc.putProduct(&products[i])
		}
	}

	categories, err := m.categories.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	categoryMappings, err := m.categoryMappings.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load category mappings: %w", err)
	}

	rc.categoryMu.Lock()
	defer rc.categoryMu.Unlock()
	for _, c := range categories {
		rc.categoriesByName[c.FoldedName()] = c.ID
	}
	for _, cm := range categoryMappings {
		folded := catalog.FoldName(cm.RemoteName)
		rc.categoriesByName[folded] = cm.CategoryID
		rc.mappedNames[folded] = struct{}{}
		if cm.RemoteCategoryID > 0 {
			rc.categoriesByRemote[cm.RemoteCategoryID] = cm.CategoryID
		}
	}

	rc.Logger().Info("Identity mappings loaded",
		zap.Int("product_mappings", len(mappings)),
		zap.Int("categories", len(categories)),
		zap.Int("category_mappings", len(categoryMappings)),
	)
	return nil
}

// ResolveCategory returns the local category of a remote category reference.
// Lookup order is the case-folded name, then the remote category ID. An
// unknown category is created together with its mapping; an existing local
// category with a case-insensitively equal name only gets a mapping.
func (m *IdentityMapper) ResolveCategory(ctx context.Context, rc *RunContext, ref integration.RemoteCategory) (uuid.UUID, error) {
	folded := catalog.FoldName(ref.Name)
	if folded == "" {
		return uuid.Nil, integration.ErrMappingInvalidRemoteName
	}

	rc.categoryMu.Lock()
	defer rc.categoryMu.Unlock()

	if id, ok := rc.categoriesByName[folded]; ok {
		if _, mapped := rc.mappedNames[folded]; !mapped {
			if err := m.createCategoryMapping(ctx, rc, ref, id); err != nil {
				return uuid.Nil, err
			}
		}
		return id, nil
	}
	if ref.ID > 0 {
		if id, ok := rc.categoriesByRemote[ref.ID]; ok {
			return id, nil
		}
	}

	category, err := catalog.NewCategory(ref.Name)
	if err != nil {
		return uuid.Nil, err
	}
	if err := m.categories.Create(ctx, category); err != nil {
		return uuid.Nil, fmt.Errorf("create category %q: %w", ref.Name, err)
	}
	rc.categoriesByName[folded] = category.ID

	if err := m.createCategoryMapping(ctx, rc, ref, category.ID); err != nil {
		return uuid.Nil, err
	}

	rc.Logger().Info("Category created",
		zap.String("category_id", category.ID.String()),
		zap.String("name", category.Name),
		zap.Int64("remote_category_id", ref.ID),
	)
	return category.ID, nil
}

// createCategoryMapping persists the mapping and records it in the run caches.
// The caller holds rc.categoryMu.
func (m *IdentityMapper) createCategoryMapping(ctx context.Context, rc *RunContext, ref integration.RemoteCategory, categoryID uuid.UUID) error {
	remoteID := max(ref.ID, 0)
	mapping, err := integration.NewCategoryIdentityMapping(remoteID, ref.Name, categoryID)
	if err != nil {
		return err
	}

	err = m.categoryMappings.Create(ctx, mapping)
	if err != nil && !errors.Is(err, integration.ErrMappingAlreadyExists) {
		return fmt.Errorf("create category mapping %q: %w", ref.Name, err)
	}

	folded := catalog.FoldName(ref.Name)
	rc.mappedNames[folded] = struct{}{}
	if remoteID > 0 {
		rc.categoriesByRemote[remoteID] = categoryID
	}
	return nil
}

// ResolveProduct looks up the mirrored product of a remote item
func (m *IdentityMapper) ResolveProduct(rc *RunContext, remoteID int64) (uuid.UUID, bool) {
	return rc.productMapping(remoteID)
}

// CreateProduct inserts a freshly mirrored product together with its mapping
// and makes the mapping visible to the rest of the run. A product is never
// stored without its mapping.
func (m *IdentityMapper) CreateProduct(ctx context.Context, rc *RunContext, remoteID int64, product *catalog.MirroredProduct) error {
	mapping, err := integration.NewProductIdentityMapping(remoteID, product.ID)
	if err != nil {
		return err
	}
	if err := m.productMappings.CreateWithProduct(ctx, product, mapping); err != nil {
		return fmt.Errorf("create product for remote %d: %w", remoteID, err)
	}
	rc.addProductMapping(remoteID, product.ID)
	return nil
}
