// Package scheduler drives the recurring price poll: list tracked products,
// fan fetches out across a bounded worker pool, persist snapshots, and hand
// detected price movements to the alert sink.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cardpulse/internal/detector"
	"cardpulse/internal/models"
	"cardpulse/internal/platform"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// Store is the persistence surface one polling cycle needs.
type Store interface {
	ListProducts(ctx context.Context) ([]models.TrackedProduct, error)
	Latest(ctx context.Context, productID string) (*models.PriceSnapshot, error)
	AppendSnapshot(ctx context.Context, snap models.PriceSnapshot) error
}

// EventSink receives detected price movements. Sink errors are logged and do
// not fail the cycle.
type EventSink interface {
	HandleEvent(ctx context.Context, product models.TrackedProduct, ev *detector.Event) error
}

// Status is a point-in-time view of the scheduler for the admin surface.
type Status struct {
	State          State      `json:"state"`
	LastCycleAt    *time.Time `json:"last_cycle_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	CyclesRun      int64      `json:"cycles_run"`
	ProductsPolled int        `json:"products_polled"`
}

type Scheduler struct {
	store    Store
	adapters platform.Set
	sink     EventSink
	logger   *slog.Logger

	interval time.Duration
	timeout  time.Duration
	workers  int

	mu     sync.Mutex
	status Status

	quit     chan struct{}
	quitOnce sync.Once
}

func New(store Store, adapters platform.Set, sink EventSink, interval, timeout time.Duration, workers int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		store:    store,
		adapters: adapters,
		sink:     sink,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		workers:  workers,
		status:   Status{State: StateIdle},
		quit:     make(chan struct{}),
	}
}

// RunCycle polls every tracked product once. Listing failures fail the whole
// cycle and leave the scheduler in the failed state; per-product fetch
// failures are logged and isolated so one flaky product page cannot starve
// the rest.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.setState(StateRunning)

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		s.finishCycle(0, fmt.Errorf("list products: %w", err))
		return err
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, product := range products {
		g.Go(func() error {
			if err := s.pollProduct(ctx, product); err != nil {
				s.logger.Error("Failed to poll product",
					"id", product.ID, "platform", product.Platform,
					"external_id", product.ExternalID, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	s.finishCycle(len(products), nil)
	s.logger.Info("Polling cycle complete", "products", len(products))
	return nil
}

func (s *Scheduler) pollProduct(ctx context.Context, product models.TrackedProduct) error {
	adapter, err := s.adapters.For(product.Platform)
	if err != nil {
		return err
	}

	// The previous snapshot must be read before the new one is appended,
	// otherwise the comparison is against the price we just wrote.
	prev, err := s.store.Latest(ctx, product.ID)
	if err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	quote, err := adapter.FetchPrice(fetchCtx, product.ExternalID)
	if err != nil {
		// Adapters rate-limit themselves; a limiter that cannot admit the
		// request before the deadline returns its own error rather than
		// context.DeadlineExceeded, so check the context too.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", models.ErrAdapterTimeout, err)
		}
		return err
	}

	snap := models.PriceSnapshot{
		ProductID:     product.ID,
		Price:         quote.Price,
		OriginalPrice: quote.OriginalPrice,
		InStock:       quote.InStock,
		ObservedAt:    time.Now().UTC(),
	}
	if err := s.store.AppendSnapshot(ctx, snap); err != nil {
		return err
	}

	ev := detector.Evaluate(prev, snap, product.TargetPrice)
	if ev == nil || s.sink == nil {
		return nil
	}
	if err := s.sink.HandleEvent(ctx, product, ev); err != nil {
		s.logger.Error("Failed to handle price event",
			"id", product.ID, "kind", ev.Kind, "error", err)
	}
	return nil
}

// Run polls immediately and then on every interval tick until the context is
// cancelled or Stop is called. The current cycle always finishes before Run
// returns.
func (s *Scheduler) Run(ctx context.Context) {
	if err := s.RunCycle(ctx); err != nil {
		s.logger.Error("Polling cycle failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				s.logger.Error("Polling cycle failed", "error", err)
			}
		}
	}
}

// Stop asks Run to exit after the current cycle. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = state
}

func (s *Scheduler) finishCycle(polled int, err error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastCycleAt = &now
	s.status.CyclesRun++
	s.status.ProductsPolled = polled
	if err != nil {
		s.status.State = StateFailed
		s.status.LastError = err.Error()
		return
	}
	s.status.State = StateIdle
	s.status.LastError = ""
}
