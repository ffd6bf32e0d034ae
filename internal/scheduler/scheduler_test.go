package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cardpulse/internal/detector"
	"cardpulse/internal/models"
	"cardpulse/internal/platform"
)

type fakeAdapter struct {
	platform models.Platform

	mu      sync.Mutex
	quotes  map[string]models.PriceQuote
	errs    map[string]error
	slow    bool
	slowErr error
}

func (f *fakeAdapter) Platform() models.Platform { return f.platform }

func (f *fakeAdapter) Resolve(_ context.Context, _ string) (models.ProductDescriptor, error) {
	return models.ProductDescriptor{}, nil
}

func (f *fakeAdapter) Search(_ context.Context, _ string) ([]models.ProductDescriptor, error) {
	return nil, nil
}

func (f *fakeAdapter) FlashDeals(_ context.Context) ([]models.Deal, error) { return nil, nil }

func (f *fakeAdapter) FetchPrice(ctx context.Context, externalID string) (models.PriceQuote, error) {
	if f.slow {
		<-ctx.Done()
		if f.slowErr != nil {
			return models.PriceQuote{}, f.slowErr
		}
		return models.PriceQuote{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[externalID]; err != nil {
		return models.PriceQuote{}, err
	}
	return f.quotes[externalID], nil
}

type fakeStore struct {
	mu       sync.Mutex
	products []models.TrackedProduct
	history  map[string][]models.PriceSnapshot
	listErr  error
}

func newFakeStore(products ...models.TrackedProduct) *fakeStore {
	return &fakeStore{products: products, history: make(map[string][]models.PriceSnapshot)}
}

func (f *fakeStore) ListProducts(_ context.Context) ([]models.TrackedProduct, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.products, nil
}

func (f *fakeStore) Latest(_ context.Context, productID string) (*models.PriceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snaps := f.history[productID]
	if len(snaps) == 0 {
		return nil, nil
	}
	snap := snaps[len(snaps)-1]
	return &snap, nil
}

func (f *fakeStore) AppendSnapshot(_ context.Context, snap models.PriceSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[snap.ProductID] = append(f.history[snap.ProductID], snap)
	return nil
}

func (f *fakeStore) snapshotCount(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history[productID])
}

type recordingSink struct {
	mu     sync.Mutex
	events []detector.Event
}

func (r *recordingSink) HandleEvent(_ context.Context, _ models.TrackedProduct, ev *detector.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

func (r *recordingSink) kinds() []detector.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []detector.EventKind
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func product(id, externalID string, target *int64) models.TrackedProduct {
	return models.TrackedProduct{
		ID:          id,
		Platform:    models.PlatformPChome,
		ExternalID:  externalID,
		Name:        "Product " + id,
		TargetPrice: target,
	}
}

func TestRunCycleAppendsAndDetects(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformPChome,
		quotes:   map[string]models.PriceQuote{"X": {Price: 10000, InStock: true}},
	}
	st := newFakeStore(product("p1", "X", nil))
	sink := &recordingSink{}
	s := New(st, platform.NewSet(adapter), sink, time.Hour, time.Second, 4, nil)

	ctx := context.Background()
	if err := s.RunCycle(ctx); err != nil {
		t.Fatalf("first RunCycle: %v", err)
	}
	if got := st.snapshotCount("p1"); got != 1 {
		t.Fatalf("snapshots = %d, want 1", got)
	}
	if len(sink.kinds()) != 0 {
		t.Fatalf("no event expected on first observation, got %v", sink.kinds())
	}

	adapter.mu.Lock()
	adapter.quotes["X"] = models.PriceQuote{Price: 9000, InStock: true}
	adapter.mu.Unlock()

	if err := s.RunCycle(ctx); err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	kinds := sink.kinds()
	if len(kinds) != 1 || kinds[0] != detector.PriceDropped {
		t.Fatalf("events = %v, want one PriceDropped", kinds)
	}
	if st.snapshotCount("p1") != 2 {
		t.Errorf("snapshots = %d, want 2", st.snapshotCount("p1"))
	}
}

func TestRunCycleListFailureSetsFailedState(t *testing.T) {
	st := newFakeStore()
	st.listErr = errors.New("db gone")
	s := New(st, platform.NewSet(), nil, time.Hour, time.Second, 1, nil)

	if err := s.RunCycle(context.Background()); err == nil {
		t.Fatal("expected error when listing fails")
	}
	status := s.Status()
	if status.State != StateFailed {
		t.Errorf("State = %s, want %s", status.State, StateFailed)
	}
	if status.LastError == "" {
		t.Error("expected LastError to be recorded")
	}
}

func TestRunCycleIsolatesProductFailures(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformPChome,
		quotes:   map[string]models.PriceQuote{"OK": {Price: 500, InStock: true}},
		errs:     map[string]error{"BAD": errors.New("page unavailable")},
	}
	st := newFakeStore(product("bad", "BAD", nil), product("good", "OK", nil))
	s := New(st, platform.NewSet(adapter), nil, time.Hour, time.Second, 2, nil)

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if st.snapshotCount("good") != 1 {
		t.Error("healthy product was not polled")
	}
	if st.snapshotCount("bad") != 0 {
		t.Error("failed fetch must not append a snapshot")
	}

	status := s.Status()
	if status.State != StateIdle {
		t.Errorf("State = %s, want %s after per-product failure", status.State, StateIdle)
	}
	if status.ProductsPolled != 2 {
		t.Errorf("ProductsPolled = %d, want 2", status.ProductsPolled)
	}
}

func TestPollProductTimeout(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformPChome, slow: true}
	st := newFakeStore()
	s := New(st, platform.NewSet(adapter), nil, time.Hour, 10*time.Millisecond, 1, nil)

	err := s.pollProduct(context.Background(), product("p1", "X", nil))
	if !errors.Is(err, models.ErrAdapterTimeout) {
		t.Fatalf("expected ErrAdapterTimeout, got %v", err)
	}
	if st.snapshotCount("p1") != 0 {
		t.Error("timed-out fetch must not append a snapshot")
	}
}

func TestPollProductTimeoutUntypedError(t *testing.T) {
	// Rate limiters report an exhausted deadline with their own error value,
	// not context.DeadlineExceeded. The expired fetch context still marks the
	// failure as a timeout.
	adapter := &fakeAdapter{
		platform: models.PlatformPChome,
		slow:     true,
		slowErr:  errors.New("rate: Wait(n=1) would exceed context deadline"),
	}
	st := newFakeStore()
	s := New(st, platform.NewSet(adapter), nil, time.Hour, 10*time.Millisecond, 1, nil)

	err := s.pollProduct(context.Background(), product("p1", "X", nil))
	if !errors.Is(err, models.ErrAdapterTimeout) {
		t.Fatalf("expected ErrAdapterTimeout, got %v", err)
	}
	if st.snapshotCount("p1") != 0 {
		t.Error("timed-out fetch must not append a snapshot")
	}
}

func TestPollProductTargetReachedOnce(t *testing.T) {
	target := int64(9000)
	adapter := &fakeAdapter{
		platform: models.PlatformPChome,
		quotes:   map[string]models.PriceQuote{"X": {Price: 10000, InStock: true}},
	}
	st := newFakeStore(product("p1", "X", &target))
	sink := &recordingSink{}
	s := New(st, platform.NewSet(adapter), sink, time.Hour, time.Second, 1, nil)

	ctx := context.Background()
	s.RunCycle(ctx)

	adapter.mu.Lock()
	adapter.quotes["X"] = models.PriceQuote{Price: 8500, InStock: true}
	adapter.mu.Unlock()
	s.RunCycle(ctx)

	adapter.mu.Lock()
	adapter.quotes["X"] = models.PriceQuote{Price: 8400, InStock: true}
	adapter.mu.Unlock()
	s.RunCycle(ctx)

	kinds := sink.kinds()
	if len(kinds) != 2 {
		t.Fatalf("events = %v, want TargetReached then PriceDropped", kinds)
	}
	if kinds[0] != detector.TargetReached || kinds[1] != detector.PriceDropped {
		t.Errorf("events = %v, want [target_price_reached price_drop]", kinds)
	}
}

func TestRunStops(t *testing.T) {
	st := newFakeStore()
	s := New(st, platform.NewSet(), nil, 10*time.Millisecond, time.Second, 1, nil)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	if s.Status().CyclesRun < 1 {
		t.Error("expected at least one cycle before stop")
	}
}
