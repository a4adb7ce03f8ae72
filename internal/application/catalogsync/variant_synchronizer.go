package catalogsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// Variant fan-out defaults
const (
	DefaultVariantConcurrency = 5
	DefaultVariantRate        = 5.0
	DefaultVariantTimeout     = 15 * time.Second

	// maxVariationPages stops runaway variation pagination
	maxVariationPages = 50
)

// VariantSyncConfig tunes the variant fan-out
type VariantSyncConfig struct {
	Concurrency int           // parallel products
	Rate        float64       // variation page requests per second across workers
	Timeout     time.Duration // per-product fetch timeout, including pacing waits
}

func (c VariantSyncConfig) withDefaults() VariantSyncConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultVariantConcurrency
	}
	if c.Rate <= 0 {
		c.Rate = DefaultVariantRate
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultVariantTimeout
	}
	return c
}

// VariantSynchronizer reconciles the variants of configurable products.
// Variants are keyed by (owning product, attribute set) and never written to
// the mirrored product itself.
type VariantSynchronizer struct {
	remote   integration.RemoteCatalog
	variants catalog.VariantRepository
	config   VariantSyncConfig
	logger   *zap.Logger
}

// NewVariantSynchronizer creates a new VariantSynchronizer
func NewVariantSynchronizer(
	remote integration.RemoteCatalog,
	variants catalog.VariantRepository,
	config VariantSyncConfig,
	logger *zap.Logger,
) *VariantSynchronizer {
	return &VariantSynchronizer{
		remote:   remote,
		variants: variants,
		config:   config.withDefaults(),
		logger:   logger,
	}
}

// Sync fetches and upserts the variants of every target. Every variation page
// request, across all workers, is paced by one shared limiter. A product whose
// fetch fails is logged, counted in VariantFetchFailures and left untouched.
// Only cancellation of ctx is returned as an error.
func (s *VariantSynchronizer) Sync(ctx context.Context, rc *RunContext, targets []configurableTarget) error {
	if len(targets) == 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Limit(s.config.Rate), 1)
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)

	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return s.syncProduct(ctx, rc, limiter, target)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *VariantSynchronizer) syncProduct(ctx context.Context, rc *RunContext, limiter *rate.Limiter, target configurableTarget) error {
	log := rc.Logger().With(
		zap.Int64("remote_id", target.RemoteID),
		zap.String("product_id", target.ProductID.String()),
	)

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	remoteVariants, rejected, err := s.fetchVariations(fetchCtx, limiter, target.RemoteID)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("Variation fetch failed, variants left untouched", zap.Error(err))
		rc.count(func(st *integration.RunStats) { st.VariantFetchFailures++ })
		return nil
	}
	if rejected > 0 {
		log.Warn("Invalid remote variations rejected", zap.Int("rejected", rejected))
		rc.count(func(st *integration.RunStats) { st.Failed += rejected })
	}

	existing, err := s.variants.FindByProduct(ctx, target.ProductID)
	if err != nil {
		log.Error("Failed to load stored variants", zap.Error(err))
		rc.count(func(st *integration.RunStats) { st.Failed += len(remoteVariants) })
		return nil
	}
	byKey := make(map[string]*catalog.Variant, len(existing))
	for i := range existing {
		byKey[existing[i].AttributeKey()] = &existing[i]
	}

	seen := make(map[string]struct{}, len(remoteVariants))
	for _, rv := range remoteVariants {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.upsert(ctx, rc, log, target.ProductID, rv, byKey, seen)
	}
	return nil
}

// fetchVariations follows the variation listing of one product. Each page
// request first takes a slot from the shared limiter.
func (s *VariantSynchronizer) fetchVariations(ctx context.Context, limiter *rate.Limiter, remoteID int64) ([]integration.RemoteVariant, int, error) {
	variants := make([]integration.RemoteVariant, 0)
	rejected := 0

	for page := 1; page <= maxVariationPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("variation page %d: wait for request slot: %w", page, err)
		}

		p, err := s.remote.FetchVariationPage(ctx, remoteID, page)
		if err != nil {
			return nil, 0, fmt.Errorf("variation page %d: %w", page, err)
		}
		variants = append(variants, p.Variants...)
		rejected += len(p.Rejected)

		if page >= p.TotalPages || len(p.Variants)+len(p.Rejected) == 0 {
			break
		}
	}
	return variants, rejected, nil
}

func (s *VariantSynchronizer) upsert(
	ctx context.Context,
	rc *RunContext,
	log *zap.Logger,
	productID uuid.UUID,
	rv integration.RemoteVariant,
	byKey map[string]*catalog.Variant,
	seen map[string]struct{},
) {
	desired, err := variantFromRemote(productID, rv)
	if err != nil {
		log.Warn("Skipping invalid variant", zap.Int64("remote_variant_id", rv.ID), zap.Error(err))
		rc.count(func(st *integration.RunStats) { st.Failed++ })
		return
	}

	key := desired.AttributeKey()
	if _, dup := seen[key]; dup {
		log.Warn("Duplicate attribute set in remote variations",
			zap.Int64("remote_variant_id", rv.ID),
			zap.String("attribute_key", key),
		)
		rc.count(func(st *integration.RunStats) { st.Failed++ })
		return
	}
	seen[key] = struct{}{}

	current, ok := byKey[key]
	if !ok {
		if err := s.variants.Create(ctx, desired); err != nil {
			log.Error("Failed to create variant", zap.String("attribute_key", key), zap.Error(err))
			rc.count(func(st *integration.RunStats) { st.Failed++ })
			return
		}
		rc.count(func(st *integration.RunStats) { st.VariantsCreated++ })
		return
	}

	if current.SameState(desired) {
		rc.count(func(st *integration.RunStats) { st.VariantsSkipped++ })
		return
	}

	updated := *current
	updated.CopyStateFrom(desired)
	if err := s.variants.Update(ctx, &updated); err != nil {
		log.Error("Failed to update variant", zap.String("variant_id", current.ID.String()), zap.Error(err))
		rc.count(func(st *integration.RunStats) { st.Failed++ })
		return
	}
	*current = updated
	rc.count(func(st *integration.RunStats) { st.VariantsUpdated++ })
}

// variantFromRemote builds the desired variant state for the owning product
func variantFromRemote(productID uuid.UUID, rv integration.RemoteVariant) (*catalog.Variant, error) {
	v, err := catalog.NewVariant(productID, rv.Attributes)
	if err != nil {
		return nil, err
	}
	v.RemoteID = rv.ID
	v.SKU = rv.SKU
	v.RegularPrice = rv.RegularPrice
	v.SalePrice = rv.SalePrice
	v.Price = rv.Price
	if v.Price.IsZero() {
		v.Price = rv.RegularPrice
	}
	v.Stock = rv.Stock()
	v.Active = rv.Status == "" || rv.Status == integration.ItemStatusPublish
	v.Image = rv.Image
	return v, nil
}
