// Package deals serves flash-sale listings, augmented with the best credit
// card for each deal, and broadcasts noteworthy ones to the notification
// channels.
package deals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"cardpulse/internal/catalog"
	"cardpulse/internal/models"
	"cardpulse/internal/notifier"
	"cardpulse/internal/platform"
	"cardpulse/internal/reward"
)

// DealWithCard pairs a flash deal with the card that earns the most on it.
type DealWithCard struct {
	models.Deal
	BestCard *models.MatchResult `json:"best_card,omitempty"`
}

// Notifier is the dispatch surface the broadcaster needs.
type Notifier interface {
	Dispatch(ctx context.Context, typ notifier.NotificationType, referenceID, message string) error
}

type Service struct {
	adapters platform.Set
	catalog  *catalog.Catalog
	cache    *cache.Cache
	logger   *slog.Logger

	// MinBroadcastDiscount filters Broadcast to deals at or above this
	// discount rate. Zero broadcasts everything.
	MinBroadcastDiscount float64
}

func New(adapters platform.Set, cat *catalog.Catalog, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		adapters:             adapters,
		catalog:              cat,
		cache:                cache.New(ttl, 2*ttl),
		logger:               logger,
		MinBroadcastDiscount: 0.3,
	}
}

// FlashDeals returns current deals for one platform, or for all platforms
// when p is empty. Results are cached per platform; within the TTL repeated
// calls do not hit the marketplaces. Deals are ephemeral and never stored.
func (s *Service) FlashDeals(ctx context.Context, p models.Platform) ([]DealWithCard, error) {
	if p != "" {
		return s.platformDeals(ctx, p)
	}

	var all []DealWithCard
	for _, pf := range s.adapters.Platforms() {
		deals, err := s.platformDeals(ctx, pf)
		if err != nil {
			// One marketplace being down should not empty the whole
			// feed.
			s.logger.Error("Failed to fetch flash deals", "platform", pf, "error", err)
			continue
		}
		all = append(all, deals...)
	}
	return all, nil
}

func (s *Service) platformDeals(ctx context.Context, p models.Platform) ([]DealWithCard, error) {
	key := "flash:" + string(p)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]DealWithCard), nil
	}

	adapter, err := s.adapters.For(p)
	if err != nil {
		return nil, err
	}

	deals, err := adapter.FlashDeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("flash deals for %s: %w", p, err)
	}

	snap := s.catalog.Current()
	out := make([]DealWithCard, 0, len(deals))
	for _, deal := range deals {
		out = append(out, DealWithCard{
			Deal: deal,
			BestCard: reward.Best(snap, models.PricedItem{
				Price:      deal.SalePrice,
				Category:   deal.Category,
				Platform:   deal.Platform,
				ObservedAt: deal.ObservedAt,
			}),
		})
	}

	s.cache.Set(key, out, cache.DefaultExpiration)
	s.logger.Debug("Flash deals fetched", "platform", p, "count", len(out), "catalog_version", snap.Version)
	return out, nil
}

// Broadcast pushes current deep-discount deals to the notification channels.
// The sent log keys on the product URL, so a deal that stays on sale across
// several cycles is announced once.
func (s *Service) Broadcast(ctx context.Context, n Notifier) error {
	deals, err := s.FlashDeals(ctx, "")
	if err != nil {
		return err
	}

	var announced int
	for _, deal := range deals {
		if deal.DiscountRate == nil || *deal.DiscountRate < s.MinBroadcastDiscount {
			continue
		}
		msg := notifier.FormatFlashDeal(deal.Deal, deal.BestCard)
		if err := n.Dispatch(ctx, notifier.TypeFlashDeal, deal.ProductURL, msg); err != nil {
			s.logger.Error("Failed to broadcast flash deal", "url", deal.ProductURL, "error", err)
			continue
		}
		announced++
	}
	s.logger.Info("Flash deal broadcast complete", "deals", len(deals), "announced", announced)
	return nil
}

// Run broadcasts on the given interval until the context is cancelled.
func (s *Service) Run(ctx context.Context, n Notifier, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Broadcast(ctx, n); err != nil {
				s.logger.Error("Flash deal broadcast failed", "error", err)
			}
		}
	}
}
