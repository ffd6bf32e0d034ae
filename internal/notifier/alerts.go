package notifier

import (
	"context"
	"fmt"
	"time"

	"cardpulse/internal/catalog"
	"cardpulse/internal/detector"
	"cardpulse/internal/models"
	"cardpulse/internal/reward"
)

// AlertSink turns detected price movements into dispatched notifications,
// attaching the best-card suggestion from the current catalog snapshot.
type AlertSink struct {
	catalog    *catalog.Catalog
	dispatcher *Dispatcher
}

func NewAlertSink(cat *catalog.Catalog, d *Dispatcher) *AlertSink {
	return &AlertSink{catalog: cat, dispatcher: d}
}

// HandleEvent dispatches the alert for one event. The dedup reference keys
// on product and price, so the same price is announced once but a further
// drop alerts again.
func (s *AlertSink) HandleEvent(ctx context.Context, product models.TrackedProduct, ev *detector.Event) error {
	best := reward.Best(s.catalog.Current(), models.PricedItem{
		Price:      ev.Price,
		Category:   models.CategoryOnlineShopping,
		Platform:   product.Platform,
		ObservedAt: time.Now().UTC(),
	})

	typ := TypePriceDrop
	if ev.Kind == detector.TargetReached {
		typ = TypeTargetReached
	}
	reference := fmt.Sprintf("%s:%d", product.ID, ev.Price)
	return s.dispatcher.Dispatch(ctx, typ, reference, FormatEvent(product, ev, best))
}
