//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/usecase"
)

// -----------------------------
// Utilities
// -----------------------------

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// =============================
// In-memory store with tx rollback
// =============================

// memStore keeps every table by value. MockTxManager serializes transactions
// and restores a snapshot when the body fails, which is what the Postgres
// path gives us through ROLLBACK.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	pools     map[string]model.SessionPool
	allocs    map[string]model.Allocation
	requests  map[string]model.SessionRequest
	settings  *model.PricingSettings
	overrides map[string]model.PricingOverride
	changes   map[string]model.ScheduledPriceChange
	purchases map[string]model.SessionPurchase
}

func newMemStore() *memStore {
	return &memStore{
		pools:     map[string]model.SessionPool{},
		allocs:    map[string]model.Allocation{},
		requests:  map[string]model.SessionRequest{},
		overrides: map[string]model.PricingOverride{},
		changes:   map[string]model.ScheduledPriceChange{},
		purchases: map[string]model.SessionPurchase{},
	}
}

type memSnapshot struct {
	pools     map[string]model.SessionPool
	allocs    map[string]model.Allocation
	requests  map[string]model.SessionRequest
	settings  *model.PricingSettings
	overrides map[string]model.PricingOverride
	changes   map[string]model.ScheduledPriceChange
	purchases map[string]model.SessionPurchase
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		pools:     copyMap(s.pools),
		allocs:    copyMap(s.allocs),
		requests:  copyMap(s.requests),
		overrides: copyMap(s.overrides),
		changes:   copyMap(s.changes),
		purchases: copyMap(s.purchases),
	}
	if s.settings != nil {
		cp := *s.settings
		snap.settings = &cp
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools, s.allocs, s.requests = snap.pools, snap.allocs, snap.requests
	s.settings, s.overrides, s.changes = snap.settings, snap.overrides, snap.changes
	s.purchases = snap.purchases
}

func (s *memStore) seedSettings(vapi, markup, license string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &model.PricingSettings{
		VapiCostPerMinute: dec(vapi),
		MarkupPercentage:  dec(markup),
		AnnualLicenseCost: dec(license),
		Version:           1,
	}
}

func (s *memStore) pool(inst string) model.SessionPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pools[inst]
}

func (s *memStore) allocCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.allocs)
}

// ---- Mock TxManager ----

type MockTxManager struct {
	store *memStore
	// WithTxFunc, when set, replaces the snapshot behavior entirely.
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error

	mu    sync.Mutex
	calls int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(store *memStore) *MockTxManager { return &MockTxManager{store: store} }

func (m *MockTxManager) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()
	snap := m.store.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// ---- Mock InstitutionLocker ----

type MockLocker struct {
	mu     sync.Mutex
	Locked []string
}

var _ repository.InstitutionLocker = (*MockLocker)(nil)

func (m *MockLocker) LockInstitution(ctx context.Context, tx repository.Tx, institutionID string) error {
	m.mu.Lock()
	m.Locked = append(m.Locked, institutionID)
	m.mu.Unlock()
	return nil
}

// =============================
// Repositories
// =============================

type memPoolRepo struct{ s *memStore }

var _ repository.SessionPoolRepository = (*memPoolRepo)(nil)

func (r *memPoolRepo) FindByInstitution(ctx context.Context, tx repository.Tx, institutionID string) (*model.SessionPool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pools[institutionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *memPoolRepo) Save(ctx context.Context, tx repository.Tx, p *model.SessionPool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.UsedSessions > p.TotalSessions || p.UsedSessions < 0 {
		return fmt.Errorf("%w: pool check constraint", domain.ErrOperationFailed)
	}
	r.s.pools[p.InstitutionID] = *p
	return nil
}

type memPurchaseRepo struct{ s *memStore }

var _ repository.SessionPurchaseRepository = (*memPurchaseRepo)(nil)

func (r *memPurchaseRepo) Create(ctx context.Context, tx repository.Tx, p *model.SessionPurchase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.purchases[p.PaymentRef]; ok {
		return domain.ErrAlreadyExists
	}
	r.s.purchases[p.PaymentRef] = *p
	return nil
}

func (r *memPurchaseRepo) FindByPaymentRef(ctx context.Context, tx repository.Tx, paymentRef string) (*model.SessionPurchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.purchases[paymentRef]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *memPurchaseRepo) ListByInstitution(ctx context.Context, tx repository.Tx, institutionID string) ([]*model.SessionPurchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.SessionPurchase
	for _, p := range r.s.purchases {
		if p.InstitutionID == institutionID {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentRef < out[j].PaymentRef })
	return out, nil
}

type memAllocationRepo struct{ s *memStore }

var _ repository.AllocationRepository = (*memAllocationRepo)(nil)

func (r *memAllocationRepo) Create(ctx context.Context, tx repository.Tx, a *model.Allocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.allocs[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.s.allocs[a.ID] = *a
	return nil
}

func (r *memAllocationRepo) Update(ctx context.Context, tx repository.Tx, a *model.Allocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.allocs[a.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.allocs[a.ID] = *a
	return nil
}

func (r *memAllocationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Allocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.allocs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (r *memAllocationRepo) FindActiveByTarget(ctx context.Context, tx repository.Tx, institutionID string, target model.AllocationTarget) (*model.Allocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.allocs {
		if !a.IsActive() || a.Kind != target.Kind || a.TargetID() != target.ID {
			continue
		}
		if target.Kind != model.TargetStudent && a.InstitutionID != institutionID {
			continue
		}
		return &a, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memAllocationRepo) ListByInstitution(ctx context.Context, tx repository.Tx, institutionID string, f model.AllocationFilter) ([]*model.Allocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Allocation
	for _, a := range r.s.allocs {
		if a.InstitutionID != institutionID {
			continue
		}
		if f.ActiveOnly && !a.IsActive() {
			continue
		}
		if f.Kind != nil && a.Kind != *f.Kind {
			continue
		}
		if f.DepartmentID != nil && (a.DepartmentID == nil || *a.DepartmentID != *f.DepartmentID) {
			continue
		}
		cp := a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memRequestRepo struct{ s *memStore }

var _ repository.SessionRequestRepository = (*memRequestRepo)(nil)

func (r *memRequestRepo) Create(ctx context.Context, tx repository.Tx, req *model.SessionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.requests[req.ID] = *req
	return nil
}

func (r *memRequestRepo) Update(ctx context.Context, tx repository.Tx, req *model.SessionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[req.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.requests[req.ID] = *req
	return nil
}

func (r *memRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SessionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &req, nil
}

func (r *memRequestRepo) List(ctx context.Context, tx repository.Tx, f model.RequestFilter) ([]*model.SessionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.SessionRequest
	for _, req := range r.s.requests {
		if f.InstitutionID != "" && req.InstitutionID != f.InstitutionID {
			continue
		}
		if f.DepartmentID != nil && req.DepartmentID != *f.DepartmentID {
			continue
		}
		if f.StudentID != nil && req.StudentID != *f.StudentID {
			continue
		}
		if f.Status != nil && req.Status != *f.Status {
			continue
		}
		cp := req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memPricingRepo struct{ s *memStore }

var _ repository.PricingRepository = (*memPricingRepo)(nil)

func (r *memPricingRepo) GetSettings(ctx context.Context, tx repository.Tx) (*model.PricingSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.settings == nil {
		return nil, domain.ErrNotFound
	}
	cp := *r.s.settings
	return &cp, nil
}

func (r *memPricingRepo) SaveSettings(ctx context.Context, tx repository.Tx, s *model.PricingSettings, expectedVersion int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.settings == nil || r.s.settings.Version != expectedVersion {
		return domain.ErrContention
	}
	s.Version = expectedVersion + 1
	cp := *s
	r.s.settings = &cp
	return nil
}

func (r *memPricingRepo) GetOverride(ctx context.Context, tx repository.Tx, institutionID string) (*model.PricingOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.overrides[institutionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (r *memPricingRepo) SaveOverride(ctx context.Context, tx repository.Tx, o *model.PricingOverride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.overrides[o.InstitutionID] = *o
	return nil
}

func (r *memPricingRepo) DeleteOverride(ctx context.Context, tx repository.Tx, institutionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.overrides[institutionID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.overrides, institutionID)
	return nil
}

type memChangeRepo struct{ s *memStore }

var _ repository.ScheduledChangeRepository = (*memChangeRepo)(nil)

func (r *memChangeRepo) Create(ctx context.Context, tx repository.Tx, c *model.ScheduledPriceChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.changes[c.ID] = *c
	return nil
}

func (r *memChangeRepo) Update(ctx context.Context, tx repository.Tx, c *model.ScheduledPriceChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.changes[c.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.changes[c.ID] = *c
	return nil
}

func (r *memChangeRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.changes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.changes, id)
	return nil
}

func (r *memChangeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ScheduledPriceChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.changes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *memChangeRepo) List(ctx context.Context, tx repository.Tx, f model.ChangeFilter) ([]*model.ScheduledPriceChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ScheduledPriceChange
	for _, c := range r.s.changes {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.Affected != nil && c.Affected != *f.Affected {
			continue
		}
		if f.DueBy != nil && c.ChangeDate.After(*f.DueBy) {
			continue
		}
		cp := c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChangeDate.Before(out[j].ChangeDate) })
	return out, nil
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	Err    error
}

var _ usecase.RateLimiter = (*MockRateLimiter)(nil)

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[key]++
	return m.counts[key] <= limit, nil
}

// =============================
// Engine harness
// =============================

type testEngine struct {
	store  *memStore
	tx     *MockTxManager
	locker *MockLocker
	clock  *fakeClock

	pools    usecase.PoolUseCase
	allocs   usecase.AllocationUseCase
	requests usecase.SessionRequestUseCase
	pricing  usecase.PricingUseCase
	changes  usecase.ScheduledChangeUseCase
}

type engineOption func(*engineConfig)

type engineConfig struct {
	limiter usecase.RateLimiter
	limit   usecase.RequestLimit
}

func withRateLimit(l usecase.RateLimiter, limit int) engineOption {
	return func(c *engineConfig) {
		c.limiter = l
		c.limit = usecase.RequestLimit{Limit: limit, Window: time.Minute}
	}
}

func newTestEngine(opts ...engineOption) *testEngine {
	var cfg engineConfig
	for _, o := range opts {
		o(&cfg)
	}
	store := newMemStore()
	store.seedSettings("0.11", "36.36", "1200")
	e := &testEngine{
		store:  store,
		tx:     NewMockTxManager(store),
		locker: &MockLocker{},
		clock:  newFakeClock(),
	}
	o := usecase.Options{MaxRetries: 3, RetryBackoff: time.Millisecond, Now: e.clock.Now}
	log := newTestLogger()

	poolRepo := &memPoolRepo{s: store}
	allocRepo := &memAllocationRepo{s: store}
	pricingRepo := &memPricingRepo{s: store}

	e.pools = usecase.NewPoolUseCase(poolRepo, allocRepo, &memPurchaseRepo{s: store}, e.locker, e.tx, o, log)
	e.allocs = usecase.NewAllocationUseCase(allocRepo, e.pools, e.locker, e.tx, o, log)
	e.requests = usecase.NewSessionRequestUseCase(&memRequestRepo{s: store}, e.allocs, e.locker, e.tx, cfg.limiter, cfg.limit, o, log)
	e.pricing = usecase.NewPricingUseCase(pricingRepo, e.locker, e.tx, o, log)
	e.changes = usecase.NewScheduledChangeUseCase(&memChangeRepo{s: store}, pricingRepo, e.locker, e.tx, o, log)
	return e
}
