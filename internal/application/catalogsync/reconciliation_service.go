package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
)

// Orchestrator defaults
const (
	DefaultPageSize  = 100
	DefaultPageDelay = 500 * time.Millisecond
)

// RunMetrics receives finalized runs and rejected triggers
type RunMetrics interface {
	RecordRun(ctx context.Context, run *integration.SyncRun)
	RecordLockContention(ctx context.Context, trigger integration.TriggerType)
}

// Config tunes a reconciliation run
type Config struct {
	PageSize  int
	PageDelay time.Duration // wait before every page after the first
	Variants  VariantSyncConfig
}

// Dependencies are the ports the service drives
type Dependencies struct {
	Remote           integration.RemoteCatalog
	Products         catalog.ProductRepository
	Categories       catalog.CategoryRepository
	Variants         catalog.VariantRepository
	ProductMappings  integration.ProductMappingRepository
	CategoryMappings integration.CategoryMappingRepository
	Runs             integration.SyncRunRepository
	Lock             integration.RunLock
	Translations     integration.TranslationQueue // optional
	Metrics          RunMetrics                   // optional
	LockTTL          time.Duration
	StaleRunAfter    time.Duration
}

// ReconciliationService drives a full-catalog reconciliation run:
// fetch every page, diff each item against the mirror, apply the minimal
// writes, sync variants of configurable items, and finalize the ledger entry.
type ReconciliationService struct {
	remote       integration.RemoteCatalog
	products     catalog.ProductRepository
	runs         integration.SyncRunRepository
	mapper       *IdentityMapper
	diff         *DiffEngine
	variants     *VariantSynchronizer
	ledger       *RunLedger
	translations integration.TranslationQueue
	metrics      RunMetrics
	config       Config
	logger       *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(deps Dependencies, config Config, log *zap.Logger) *ReconciliationService {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("catalogsync")
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.PageDelay <= 0 {
		config.PageDelay = DefaultPageDelay
	}

	return &ReconciliationService{
		remote:       deps.Remote,
		products:     deps.Products,
		runs:         deps.Runs,
		mapper:       NewIdentityMapper(deps.Products, deps.Categories, deps.ProductMappings, deps.CategoryMappings, log),
		diff:         NewDiffEngine(),
		variants:     NewVariantSynchronizer(deps.Remote, deps.Variants, config.Variants, log),
		ledger:       NewRunLedger(deps.Runs, deps.Lock, deps.LockTTL, deps.StaleRunAfter, log),
		translations: deps.Translations,
		metrics:      deps.Metrics,
		config:       config,
		logger:       log,
		sleep:        sleepContext,
	}
}

// Trigger runs a reconciliation to completion and returns its outcome.
// An error is only returned when the run could not start; once started, the
// outcome is always reported through the result and the ledger.
func (s *ReconciliationService) Trigger(ctx context.Context, input TriggerInput) (*RunResult, error) {
	run, err := s.Run(ctx, input)
	if err != nil {
		return nil, err
	}
	return NewRunResult(run), nil
}

// TriggerScheduled starts a run on behalf of the scheduler
func (s *ReconciliationService) TriggerScheduled(ctx context.Context) (*integration.SyncRun, error) {
	return s.Run(ctx, TriggerInput{TriggerType: integration.TriggerScheduled})
}

// Run executes one reconciliation run and returns the finalized ledger entry
func (s *ReconciliationService) Run(ctx context.Context, input TriggerInput) (*integration.SyncRun, error) {
	if !input.TriggerType.IsValid() {
		return nil, integration.ErrInvalidTriggerType
	}

	run, release, err := s.ledger.Start(ctx, input.TriggerType, input.TriggeredBy)
	if err != nil {
		if errors.Is(err, integration.ErrRunAlreadyInProgress) {
			if s.metrics != nil {
				s.metrics.RecordLockContention(ctx, input.TriggerType)
			}
			s.logger.Warn("Catalog sync rejected, a run is already in progress",
				zap.String("trigger", string(input.TriggerType)))
		}
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	ctx, log := logger.WithRunID(ctx, s.logger, run.ID.String())
	ctx, span := telemetry.StartSpan(ctx, "catalog_sync.run",
		telemetry.WithAttribute("run_id", run.ID.String()),
		telemetry.WithAttribute("trigger", string(run.TriggerType)),
	)
	defer span.End()

	log.Info("Catalog sync started", zap.String("trigger", string(run.TriggerType)))

	rc := NewRunContext(run, log)
	runErr := s.execute(ctx, rc)
	if runErr != nil {
		telemetry.RecordError(span, runErr)
	}
	s.finalize(ctx, rc, runErr)

	telemetry.SetAttributes(span,
		"status", string(run.Status),
		"created", run.Stats.Created,
		"updated", run.Stats.Updated,
		"failed", run.Stats.Failed,
	)
	return run, nil
}

// ListRuns returns one page of ledger entries, newest first
func (s *ReconciliationService) ListRuns(ctx context.Context, input ListRunsInput) (*RunListResult, error) {
	filter := integration.SyncRunFilter{
		Page:     max(input.Page, 1),
		PageSize: input.PageSize,
		OrderBy:  "started_at",
		OrderDir: "desc",
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	filter.PageSize = min(filter.PageSize, 100)
	if input.Status != "" {
		status := integration.RunStatus(input.Status)
		filter.Status = &status
	}

	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &RunListResult{Runs: runs, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// GetRun returns one ledger entry
func (s *ReconciliationService) GetRun(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	return s.runs.FindByID(ctx, id)
}

// ---------------------------------------------------------------------------
// State machine
// ---------------------------------------------------------------------------

// plannedWrite is the decision for one top-level item
type plannedWrite struct {
	item      integration.RemoteItem
	productID uuid.UUID
	decision  Decision
}

func (s *ReconciliationService) execute(ctx context.Context, rc *RunContext) error {
	rc.Transition(StateFetchingPages)
	items, rejected, err := s.fetchAll(ctx, rc)
	if err != nil {
		return err
	}

	rc.Transition(StateDiffing)
	if err := s.mapper.Load(ctx, rc); err != nil {
		return cancelledOr(ctx, err)
	}
	plan, seen := s.plan(rc, items)

	// A rejected record still exists remotely, so its product is not stale.
	// Without an id it cannot be matched and the item set is incomplete.
	unidentified := 0
	for _, r := range rejected {
		if r.RemoteID > 0 {
			seen[r.RemoteID] = struct{}{}
		} else {
			unidentified++
		}
	}

	var stale []int64
	switch skipped := rc.Stats().PagesSkipped; {
	case skipped > 0:
		rc.Logger().Warn("Deactivation skipped, remote item set is incomplete", zap.Int("pages_skipped", skipped))
	case unidentified > 0:
		rc.Logger().Warn("Deactivation skipped, rejected records carry no remote id", zap.Int("unidentified", unidentified))
	default:
		stale = s.diff.StaleMappings(rc.mappedRemoteIDs(), seen)
	}

	rc.Transition(StateApplyingWrites)
	for _, w := range plan {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		s.apply(ctx, rc, w)
	}
	for _, remoteID := range stale {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		s.deactivate(ctx, rc, remoteID)
	}

	rc.Transition(StateSyncingVariants)
	if err := s.variants.Sync(ctx, rc, rc.configurableTargets()); err != nil {
		return cancelled(ctx)
	}
	return nil
}

// fetchAll reads every page sequentially. Page 1 failures and auth or
// anti-bot failures on any page are fatal; other page failures are skipped.
// Records rejected by validation count as failed and are returned so the
// caller can keep their products out of deactivation.
func (s *ReconciliationService) fetchAll(ctx context.Context, rc *RunContext) ([]integration.RemoteItem, []integration.RejectedRecord, error) {
	first, err := s.fetchPage(ctx, 1)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, cancelled(ctx)
		}
		if integration.IsFatalFetchError(err) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", integration.ErrFirstPageFailed, err)
	}
	rc.count(func(st *integration.RunStats) { st.PagesFetched++ })

	items := make([]integration.RemoteItem, 0, max(first.TotalCount, len(first.Items)))
	items = append(items, first.Items...)
	rejected := s.collectRejected(rc, first, nil)

	rc.Logger().Info("Catalog page fetched",
		zap.Int("page", 1),
		zap.Int("items", len(first.Items)),
		zap.Int("total_pages", first.TotalPages),
		zap.Int("total_count", first.TotalCount),
	)

	for page := 2; page <= first.TotalPages; page++ {
		if err := s.sleep(ctx, s.config.PageDelay); err != nil {
			return nil, nil, cancelled(ctx)
		}

		p, err := s.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, cancelled(ctx)
			}
			if integration.IsFatalFetchError(err) {
				return nil, nil, fmt.Errorf("page %d: %w", page, err)
			}
			rc.count(func(st *integration.RunStats) { st.PagesSkipped++ })
			rc.Logger().Warn("Catalog page skipped", zap.Int("page", page), zap.Error(err))
			continue
		}

		rc.count(func(st *integration.RunStats) { st.PagesFetched++ })
		items = append(items, p.Items...)
		rejected = s.collectRejected(rc, p, rejected)
		rc.Logger().Debug("Catalog page fetched", zap.Int("page", page), zap.Int("items", len(p.Items)))
	}
	return items, rejected, nil
}

func (s *ReconciliationService) collectRejected(rc *RunContext, p *integration.Page, acc []integration.RejectedRecord) []integration.RejectedRecord {
	if len(p.Rejected) == 0 {
		return acc
	}
	rc.count(func(st *integration.RunStats) { st.Failed += len(p.Rejected) })
	rc.Logger().Warn("Invalid remote records rejected",
		zap.Int("page", p.Number),
		zap.Int("rejected", len(p.Rejected)),
		zap.Int64s("remote_ids", lo.Map(p.Rejected, func(r integration.RejectedRecord, _ int) int64 { return r.RemoteID })),
	)
	return append(acc, p.Rejected...)
}

func (s *ReconciliationService) fetchPage(ctx context.Context, page int) (*integration.Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog_sync.fetch_page", telemetry.WithAttribute("page", page))
	defer span.End()

	p, err := s.remote.FetchPage(ctx, page, s.config.PageSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return p, nil
}

// plan resolves identities and diffs every top-level item. Items repeated
// across pages are planned once.
func (s *ReconciliationService) plan(rc *RunContext, items []integration.RemoteItem) ([]plannedWrite, map[int64]struct{}) {
	topLevel := s.diff.TopLevel(items)
	seen := make(map[int64]struct{}, len(topLevel))
	plan := make([]plannedWrite, 0, len(topLevel))

	for _, item := range topLevel {
		if _, dup := seen[item.ID]; dup {
			rc.Logger().Debug("Duplicate remote item ignored", zap.Int64("remote_id", item.ID))
			continue
		}
		seen[item.ID] = struct{}{}

		var current *catalog.MirroredProduct
		productID, mapped := s.mapper.ResolveProduct(rc, item.ID)
		if mapped {
			current = rc.product(productID)
			if current == nil {
				rc.Logger().Error("Mapped product is missing from the mirror",
					zap.Int64("remote_id", item.ID),
					zap.String("product_id", productID.String()),
				)
				rc.count(func(st *integration.RunStats) { st.Failed++ })
				continue
			}
		}

		plan = append(plan, plannedWrite{
			item:      item,
			productID: productID,
			decision:  s.diff.Diff(item, current),
		})
	}
	return plan, seen
}

// apply performs the write of one planned item. Failures are counted and
// never abort the run.
func (s *ReconciliationService) apply(ctx context.Context, rc *RunContext, w plannedWrite) {
	log := rc.Logger().With(zap.Int64("remote_id", w.item.ID))

	switch w.decision.Kind {
	case DecisionInsert:
		productID, err := s.insert(ctx, rc, w.item)
		if err != nil {
			log.Error("Failed to create mirrored product", zap.Error(err))
			rc.count(func(st *integration.RunStats) { st.Failed++ })
			return
		}
		w.productID = productID
		rc.count(func(st *integration.RunStats) { st.Created++ })

	case DecisionUpdate:
		if err := s.products.UpdateFields(ctx, w.productID, w.decision.Changes); err != nil {
			log.Error("Failed to update mirrored product", zap.Error(err))
			rc.count(func(st *integration.RunStats) { st.Failed++ })
			return
		}
		if current := rc.product(w.productID); current != nil {
			current.Apply(w.decision.Changes)
		}
		log.Debug("Mirrored product updated", zap.Any("fields", w.decision.Changes.Fields()))
		rc.count(func(st *integration.RunStats) { st.Updated++ })

	default:
		rc.count(func(st *integration.RunStats) { st.Skipped++ })
	}

	if w.item.IsConfigurable() {
		rc.addConfigurable(configurableTarget{RemoteID: w.item.ID, ProductID: w.productID})
	}
}

func (s *ReconciliationService) insert(ctx context.Context, rc *RunContext, item integration.RemoteItem) (uuid.UUID, error) {
	var categoryID *uuid.UUID
	if ref, ok := item.PrimaryCategory(); ok {
		id, err := s.mapper.ResolveCategory(ctx, rc, ref)
		if err != nil {
			return uuid.Nil, fmt.Errorf("resolve category: %w", err)
		}
		categoryID = &id
	}

	product, err := NewProductFromRemote(item, categoryID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.mapper.CreateProduct(ctx, rc, item.ID, product); err != nil {
		return uuid.Nil, err
	}

	rc.putProduct(product)
	rc.recordCreated(product.ID)
	return product.ID, nil
}

// deactivate clears the active flag of a product whose remote item vanished.
// Inactive products are left alone and not counted.
func (s *ReconciliationService) deactivate(ctx context.Context, rc *RunContext, remoteID int64) {
	productID, ok := s.mapper.ResolveProduct(rc, remoteID)
	if !ok {
		return
	}
	product := rc.product(productID)
	if product == nil || !product.Active {
		return
	}

	if err := s.products.Deactivate(ctx, productID); err != nil {
		rc.Logger().Error("Failed to deactivate mirrored product",
			zap.Int64("remote_id", remoteID),
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
		rc.count(func(st *integration.RunStats) { st.Failed++ })
		return
	}
	product.Deactivate()
	rc.count(func(st *integration.RunStats) { st.Deactivated++ })
}

// finalize is the only place a run reaches a terminal status
func (s *ReconciliationService) finalize(ctx context.Context, rc *RunContext, runErr error) {
	ctx = context.WithoutCancel(ctx)
	run := rc.Run

	stats := rc.Stats()
	stats.Synced = stats.Created + stats.Updated + stats.Skipped

	var err error
	if runErr == nil {
		err = run.Succeed(stats)
	} else {
		err = run.Fail(stats, runErr)
	}
	if err != nil {
		rc.Logger().Error("Sync run already finalized", zap.Error(err))
		return
	}

	if err := s.ledger.Finalize(ctx, run); err != nil {
		rc.Logger().Error("Failed to persist sync run outcome", zap.Error(err))
	}
	rc.Transition(StateFinalized)

	fields := []zap.Field{
		zap.String("status", string(run.Status)),
		zap.Duration("duration", run.Duration()),
		zap.Int("synced", stats.Synced),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("deactivated", stats.Deactivated),
		zap.Int("failed", stats.Failed),
		zap.Int("variants_created", stats.VariantsCreated),
		zap.Int("variants_updated", stats.VariantsUpdated),
		zap.Int("pages_skipped", stats.PagesSkipped),
	}
	if runErr != nil {
		rc.Logger().Error("Catalog sync failed", append(fields,
			zap.String("error_kind", string(run.ErrorKind)),
			zap.Error(runErr),
		)...)
	} else {
		rc.Logger().Info("Catalog sync finished", fields...)
	}

	if s.metrics != nil {
		s.metrics.RecordRun(ctx, run)
	}
	s.requestTranslations(ctx, rc)
}

// requestTranslations hands newly created products to the translation
// pipeline. Failures are logged only.
func (s *ReconciliationService) requestTranslations(ctx context.Context, rc *RunContext) {
	created := rc.CreatedProducts()
	if s.translations == nil || len(created) == 0 {
		return
	}

	req := integration.TranslationRequest{RunID: rc.Run.ID, ProductIDs: created}
	if err := s.translations.Enqueue(ctx, req); err != nil {
		rc.Logger().Warn("Failed to enqueue translation request",
			zap.Int("products", len(created)),
			zap.Error(err),
		)
		return
	}
	rc.Logger().Info("Translation requested", zap.Int("products", len(created)))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %v", integration.ErrRunCancelled, context.Cause(ctx))
}

func cancelledOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return cancelled(ctx)
	}
	return err
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
