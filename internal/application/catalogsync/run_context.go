package catalogsync

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// RunState is a step of the reconciliation state machine
type RunState string

const (
	StateInitialized     RunState = "initialized"
	StateFetchingPages   RunState = "fetching_pages"
	StateDiffing         RunState = "diffing"
	StateApplyingWrites  RunState = "applying_writes"
	StateSyncingVariants RunState = "syncing_variants"
	StateFinalized       RunState = "finalized"
)

// configurableTarget is a configurable remote item whose variants are synced
// after the top-level writes.
type configurableTarget struct {
	RemoteID  int64
	ProductID uuid.UUID
}

// RunContext carries everything scoped to one reconciliation run: the ledger
// entry, the identity caches loaded at start, the product snapshot, and the
// counters. It is passed explicitly to every component and never shared
// between runs.
type RunContext struct {
	Run    *integration.SyncRun
	logger *zap.Logger

	mu    sync.Mutex
	state RunState
	stats integration.RunStats

	productMappings map[int64]uuid.UUID
	products        map[uuid.UUID]*catalog.MirroredProduct

	// categoryMu serializes lookup-then-create of categories
	categoryMu         sync.Mutex
	categoriesByName   map[string]uuid.UUID
	categoriesByRemote map[int64]uuid.UUID
	mappedNames        map[string]struct{}

	created       []uuid.UUID
	configurables []configurableTarget
}

// NewRunContext creates an empty context for the run
func NewRunContext(run *integration.SyncRun, logger *zap.Logger) *RunContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunContext{
		Run:                run,
		logger:             logger,
		state:              StateInitialized,
		productMappings:    make(map[int64]uuid.UUID),
		products:           make(map[uuid.UUID]*catalog.MirroredProduct),
		categoriesByName:   make(map[string]uuid.UUID),
		categoriesByRemote: make(map[int64]uuid.UUID),
		mappedNames:        make(map[string]struct{}),
	}
}

// Logger returns the run-scoped logger
func (rc *RunContext) Logger() *zap.Logger {
	return rc.logger
}

// State returns the current state
func (rc *RunContext) State() RunState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

// Transition moves the run to the next state and logs it
func (rc *RunContext) Transition(next RunState) {
	rc.mu.Lock()
	prev := rc.state
	rc.state = next
	rc.mu.Unlock()

	rc.logger.Info("Catalog sync state changed",
		zap.String("from", string(prev)),
		zap.String("state", string(next)),
	)
}

// Stats returns a snapshot of the counters
func (rc *RunContext) Stats() integration.RunStats {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stats
}

// count applies fn to the counters under the lock
func (rc *RunContext) count(fn func(s *integration.RunStats)) {
	rc.mu.Lock()
	fn(&rc.stats)
	rc.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Identity caches
// ---------------------------------------------------------------------------

func (rc *RunContext) productMapping(remoteID int64) (uuid.UUID, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	id, ok := rc.productMappings[remoteID]
	return id, ok
}

func (rc *RunContext) addProductMapping(remoteID int64, productID uuid.UUID) {
	rc.mu.Lock()
	rc.productMappings[remoteID] = productID
	rc.mu.Unlock()
}

// mappedRemoteIDs returns a copy of the remote-to-local product mappings
func (rc *RunContext) mappedRemoteIDs() map[int64]uuid.UUID {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[int64]uuid.UUID, len(rc.productMappings))
	for k, v := range rc.productMappings {
		out[k] = v
	}
	return out
}

func (rc *RunContext) product(id uuid.UUID) *catalog.MirroredProduct {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.products[id]
}

func (rc *RunContext) putProduct(p *catalog.MirroredProduct) {
	rc.mu.Lock()
	rc.products[p.ID] = p
	rc.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Run outputs
// ---------------------------------------------------------------------------

func (rc *RunContext) recordCreated(productID uuid.UUID) {
	rc.mu.Lock()
	rc.created = append(rc.created, productID)
	rc.mu.Unlock()
}

// CreatedProducts returns the IDs of the products inserted by this run
func (rc *RunContext) CreatedProducts() []uuid.UUID {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]uuid.UUID(nil), rc.created...)
}

func (rc *RunContext) addConfigurable(t configurableTarget) {
	rc.mu.Lock()
	rc.configurables = append(rc.configurables, t)
	rc.mu.Unlock()
}

func (rc *RunContext) configurableTargets() []configurableTarget {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]configurableTarget(nil), rc.configurables...)
}
