package catalogsync

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Remote catalog
// ---------------------------------------------------------------------------

// fakeRemote serves a fixed catalog split into pages
type fakeRemote struct {
	mu            sync.Mutex
	items         []integration.RemoteItem
	pageSize      int
	pageErrors    map[int]error
	pageRejects   map[int][]integration.RejectedRecord
	variations    map[int64][]integration.RemoteVariant
	variationErrs map[int64]error
	onPage        func(page int)
	pageCalls     []int
	variantCalls  []int64
}

func newFakeRemote(items []integration.RemoteItem, pageSize int) *fakeRemote {
	return &fakeRemote{
		items:         items,
		pageSize:      pageSize,
		pageErrors:    map[int]error{},
		pageRejects:   map[int][]integration.RejectedRecord{},
		variations:    map[int64][]integration.RemoteVariant{},
		variationErrs: map[int64]error{},
	}
}

func (r *fakeRemote) FetchPage(ctx context.Context, page, _ int) (*integration.Page, error) {
	r.mu.Lock()
	r.pageCalls = append(r.pageCalls, page)
	hook := r.onPage
	err := r.pageErrors[page]
	rejected := r.pageRejects[page]
	items := r.items
	r.mu.Unlock()

	if hook != nil {
		hook(page)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	totalPages := max((len(items)+r.pageSize-1)/r.pageSize, 1)
	start := min((page-1)*r.pageSize, len(items))
	end := min(start+r.pageSize, len(items))
	return &integration.Page{
		Number:     page,
		Items:      slices.Clone(items[start:end]),
		Rejected:   slices.Clone(rejected),
		TotalPages: totalPages,
		TotalCount: len(items),
	}, nil
}

// FetchVariationPage serves every variation of a product on a single page
func (r *fakeRemote) FetchVariationPage(_ context.Context, remoteID int64, page int) (*integration.VariationPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variantCalls = append(r.variantCalls, remoteID)
	if err := r.variationErrs[remoteID]; err != nil {
		return nil, err
	}
	return &integration.VariationPage{
		Number:     page,
		Variants:   slices.Clone(r.variations[remoteID]),
		TotalPages: 1,
	}, nil
}

func (r *fakeRemote) setItems(items []integration.RemoteItem) {
	r.mu.Lock()
	r.items = items
	r.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Mirror stores
// ---------------------------------------------------------------------------

// productOp records one write against the product store
type productOp struct {
	Kind      string // create, update, deactivate
	ProductID uuid.UUID
	Fields    []catalog.ProductField
}

type memProductRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]catalog.MirroredProduct
	ops      []productOp
	failName string
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{rows: map[uuid.UUID]catalog.MirroredProduct{}}
}

func (r *memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*catalog.MirroredProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (r *memProductRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]catalog.MirroredProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]catalog.MirroredProduct, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.rows[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProductRepo) Create(_ context.Context, p *catalog.MirroredProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failName != "" && p.Name == r.failName {
		return fmt.Errorf("insert %q: connection reset", p.Name)
	}
	r.rows[p.ID] = *p
	r.ops = append(r.ops, productOp{Kind: "create", ProductID: p.ID})
	return nil
}

func (r *memProductRepo) UpdateFields(_ context.Context, id uuid.UUID, changes catalog.FieldChanges) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.Apply(changes)
	r.rows[id] = p
	r.ops = append(r.ops, productOp{Kind: "update", ProductID: id, Fields: changes.Fields()})
	return nil
}

func (r *memProductRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.Active = false
	r.rows[id] = p
	r.ops = append(r.ops, productOp{Kind: "deactivate", ProductID: id})
	return nil
}

func (r *memProductRepo) opCount(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

func (r *memProductRepo) resetOps() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

func (r *memProductRepo) get(id uuid.UUID) catalog.MirroredProduct {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *memProductRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memCategoryRepo struct {
	mu   sync.Mutex
	rows []catalog.Category
}

func (r *memCategoryRepo) FindAll(context.Context) ([]catalog.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.rows), nil
}

func (r *memCategoryRepo) Create(_ context.Context, c *catalog.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *c)
	return nil
}

func (r *memCategoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memVariantRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]catalog.Variant
	updates int
}

func newMemVariantRepo() *memVariantRepo {
	return &memVariantRepo{rows: map[uuid.UUID]catalog.Variant{}}
}

func (r *memVariantRepo) FindByProduct(_ context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Variant
	for _, v := range r.rows {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttributeKey() < out[j].AttributeKey() })
	return out, nil
}

func (r *memVariantRepo) Create(_ context.Context, v *catalog.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.ProductID == v.ProductID && existing.AttributeKey() == v.AttributeKey() {
			return catalog.ErrVariantAlreadyExists
		}
	}
	r.rows[v.ID] = *v
	return nil
}

func (r *memVariantRepo) Update(_ context.Context, v *catalog.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[v.ID]; !ok {
		return catalog.ErrVariantNotFound
	}
	r.rows[v.ID] = *v
	r.updates++
	return nil
}

func (r *memVariantRepo) byKey(productID uuid.UUID, key string) (catalog.Variant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.rows {
		if v.ProductID == productID && v.AttributeKey() == key {
			return v, true
		}
	}
	return catalog.Variant{}, false
}

func (r *memVariantRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// ---------------------------------------------------------------------------
// Identity mappings
// ---------------------------------------------------------------------------

type memProductMappingRepo struct {
	mu          sync.Mutex
	rows        []integration.ProductIdentityMapping
	products    *memProductRepo
	failCreates int
}

func (r *memProductMappingRepo) FindAll(context.Context) ([]integration.ProductIdentityMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.rows), nil
}

func (r *memProductMappingRepo) Create(_ context.Context, m *integration.ProductIdentityMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.RemoteID == m.RemoteID || existing.ProductID == m.ProductID {
			return integration.ErrMappingAlreadyExists
		}
	}
	r.rows = append(r.rows, *m)
	return nil
}

// CreateWithProduct stores the product only when the mapping can be stored too
func (r *memProductMappingRepo) CreateWithProduct(ctx context.Context, p *catalog.MirroredProduct, m *integration.ProductIdentityMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreates > 0 {
		r.failCreates--
		return fmt.Errorf("insert mapping for remote %d: connection reset", m.RemoteID)
	}
	for _, existing := range r.rows {
		if existing.RemoteID == m.RemoteID || existing.ProductID == m.ProductID {
			return integration.ErrMappingAlreadyExists
		}
	}
	if err := r.products.Create(ctx, p); err != nil {
		return err
	}
	r.rows = append(r.rows, *m)
	return nil
}

func (r *memProductMappingRepo) productFor(remoteID int64) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.RemoteID == remoteID {
			return m.ProductID, true
		}
	}
	return uuid.Nil, false
}

func (r *memProductMappingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memCategoryMappingRepo struct {
	mu   sync.Mutex
	rows []integration.CategoryIdentityMapping
}

func (r *memCategoryMappingRepo) FindAll(context.Context) ([]integration.CategoryIdentityMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.rows), nil
}

func (r *memCategoryMappingRepo) Create(_ context.Context, m *integration.CategoryIdentityMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if catalog.FoldName(existing.RemoteName) == catalog.FoldName(m.RemoteName) {
			return integration.ErrMappingAlreadyExists
		}
	}
	r.rows = append(r.rows, *m)
	return nil
}

func (r *memCategoryMappingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// ---------------------------------------------------------------------------
// Run ledger
// ---------------------------------------------------------------------------

type memRunRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]integration.SyncRun
	finalized int
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{rows: map[uuid.UUID]integration.SyncRun{}}
}

func (r *memRunRepo) Create(_ context.Context, run *integration.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[run.ID] = *run
	return nil
}

func (r *memRunRepo) Finalize(ctx context.Context, run *integration.SyncRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[run.ID]
	if !ok {
		return integration.ErrRunNotFound
	}
	if stored.Status != integration.RunStatusRunning {
		return integration.ErrRunAlreadyFinalized
	}
	r.rows[run.ID] = *run
	r.finalized++
	return nil
}

func (r *memRunRepo) FindByID(_ context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.rows[id]
	if !ok {
		return nil, integration.ErrRunNotFound
	}
	return &run, nil
}

func (r *memRunRepo) List(_ context.Context, filter integration.SyncRunFilter) ([]integration.SyncRun, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.SyncRun
	for _, run := range r.rows {
		if filter.Status == nil || run.Status == *filter.Status {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	total := int64(len(out))
	start := min((filter.Page-1)*filter.PageSize, len(out))
	end := min(start+filter.PageSize, len(out))
	return out[start:end], total, nil
}

func (r *memRunRepo) FindRunning(context.Context) ([]integration.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.SyncRun
	for _, run := range r.rows {
		if run.Status == integration.RunStatusRunning {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *memRunRepo) get(id uuid.UUID) integration.SyncRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

// ---------------------------------------------------------------------------
// Lock, metrics and translation queue
// ---------------------------------------------------------------------------

type stubLock struct {
	mu       sync.Mutex
	held     bool
	releases int
	err      error
}

func (l *stubLock) TryAcquire(context.Context, time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.releases++
		return nil
	}, true, nil
}

type recordingMetrics struct {
	mu         sync.Mutex
	runs       []integration.SyncRun
	contention []integration.TriggerType
}

func (m *recordingMetrics) RecordRun(_ context.Context, run *integration.SyncRun) {
	m.mu.Lock()
	m.runs = append(m.runs, *run)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLockContention(_ context.Context, trigger integration.TriggerType) {
	m.mu.Lock()
	m.contention = append(m.contention, trigger)
	m.mu.Unlock()
}

// MockTranslationQueue is a mock implementation of TranslationQueue
type MockTranslationQueue struct {
	mock.Mock
}

func (m *MockTranslationQueue) Enqueue(ctx context.Context, req integration.TranslationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type harness struct {
	remote           *fakeRemote
	products         *memProductRepo
	categories       *memCategoryRepo
	variants         *memVariantRepo
	productMappings  *memProductMappingRepo
	categoryMappings *memCategoryMappingRepo
	runs             *memRunRepo
	lock             *stubLock
	metrics          *recordingMetrics
	sleeps           []time.Duration
	svc              *ReconciliationService
}

func newHarness(remote *fakeRemote, translations integration.TranslationQueue) *harness {
	h := &harness{
		remote:           remote,
		products:         newMemProductRepo(),
		categories:       &memCategoryRepo{},
		variants:         newMemVariantRepo(),
		categoryMappings: &memCategoryMappingRepo{},
		runs:             newMemRunRepo(),
		lock:             &stubLock{},
		metrics:          &recordingMetrics{},
	}
	h.productMappings = &memProductMappingRepo{products: h.products}
	deps := Dependencies{
		Remote:           remote,
		Products:         h.products,
		Categories:       h.categories,
		Variants:         h.variants,
		ProductMappings:  h.productMappings,
		CategoryMappings: h.categoryMappings,
		Runs:             h.runs,
		Lock:             h.lock,
		Translations:     translations,
		Metrics:          h.metrics,
	}
	h.svc = NewReconciliationService(deps, Config{
		PageSize: remote.pageSize,
		Variants: VariantSyncConfig{Rate: 1000},
	}, nil)
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return h
}

func (h *harness) trigger(t *testing.T) *RunResult {
	t.Helper()
	result, err := h.svc.Trigger(context.Background(), TriggerInput{TriggerType: integration.TriggerManual})
	require.NoError(t, err)
	return result
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(n int) *int {
	return &n
}

func remoteItem(id int64, name string) integration.RemoteItem {
	return integration.RemoteItem{
		ID:            id,
		Name:          name,
		RegularPrice:  dec("19.99"),
		Price:         dec("19.99"),
		StockQuantity: intPtr(10),
		StockStatus:   integration.StockStatusInStock,
		Images:        []string{fmt.Sprintf("https://cdn.example.com/%d.jpg", id)},
		Categories:    []integration.RemoteCategory{{ID: 7, Name: "Apparel"}},
		Tags:          []string{"new"},
		SKU:           fmt.Sprintf("SKU-%d", id),
		Type:          integration.ItemTypeSimple,
		Status:        integration.ItemStatusPublish,
	}
}

func remoteItems(n int) []integration.RemoteItem {
	items := make([]integration.RemoteItem, n)
	for i := range n {
		items[i] = remoteItem(int64(i+1), fmt.Sprintf("Product %d", i+1))
	}
	return items
}

func remoteVariant(id int64, sku, price string, attrs ...catalog.Attribute) integration.RemoteVariant {
	return integration.RemoteVariant{
		ID:            id,
		SKU:           sku,
		RegularPrice:  dec(price),
		Price:         dec(price),
		StockQuantity: intPtr(3),
		Status:        integration.ItemStatusPublish,
		Attributes:    attrs,
	}
}
