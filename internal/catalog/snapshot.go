// Package catalog holds the credit card reward catalog: cards, their base
// rates, and time-boxed promotion rules. Readers see immutable versioned
// snapshots; refreshes swap the whole snapshot atomically so a matching run
// never mixes rules from two catalog versions.
package catalog

import (
	"sync/atomic"
	"time"

	"cardpulse/internal/models"
)

// Snapshot is one immutable catalog version. All lookups on a snapshot are
// read-only and safe for concurrent use.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time

	cards    []models.CreditCard
	cardByID map[string]models.CreditCard
	promos   map[string][]models.PromotionRule
}

func newSnapshot(version int64, cards []models.CreditCard, promos []models.PromotionRule) *Snapshot {
	s := &Snapshot{
		Version:  version,
		LoadedAt: time.Now().UTC(),
		cards:    make([]models.CreditCard, 0, len(cards)),
		cardByID: make(map[string]models.CreditCard, len(cards)),
		promos:   make(map[string][]models.PromotionRule),
	}
	// Card ids are unique within a snapshot; on duplicate input the first
	// occurrence wins.
	for _, c := range cards {
		if _, ok := s.cardByID[c.ID]; ok {
			continue
		}
		s.cardByID[c.ID] = c
		s.cards = append(s.cards, c)
	}
	for _, p := range promos {
		s.promos[p.CardID] = append(s.promos[p.CardID], p)
	}
	return s
}

// Cards returns every card in the snapshot.
func (s *Snapshot) Cards() []models.CreditCard { return s.cards }

// Card looks up one card by id.
func (s *Snapshot) Card(id string) (models.CreditCard, bool) {
	c, ok := s.cardByID[id]
	return c, ok
}

// Promotions returns the card's promotion rules, active or not.
func (s *Snapshot) Promotions(cardID string) []models.PromotionRule {
	return s.promos[cardID]
}

// ActiveRate returns the card's effective reward rate for an item: the
// highest rate among promotions matching the item, ties broken by the most
// recent ValidFrom. With no matching promotion the base rate applies and the
// returned limit is nil.
func (s *Snapshot) ActiveRate(cardID string, item models.PricedItem) (float64, *int64) {
	card, ok := s.cardByID[cardID]
	if !ok {
		return 0, nil
	}

	var best *models.PromotionRule
	for i := range s.promos[cardID] {
		rule := &s.promos[cardID][i]
		if !rule.Matches(item) {
			continue
		}
		if best == nil ||
			rule.RewardRate > best.RewardRate ||
			(rule.RewardRate == best.RewardRate && rule.ValidFrom.After(best.ValidFrom)) {
			best = rule
		}
	}
	if best == nil {
		return card.BaseRewardRate, nil
	}
	return best.RewardRate, best.RewardLimit
}

// Catalog hands out the current snapshot and swaps in replacements.
type Catalog struct {
	current atomic.Pointer[Snapshot]
	version atomic.Int64
}

func New() *Catalog {
	c := &Catalog{}
	c.current.Store(newSnapshot(0, nil, nil))
	return c
}

// Current returns the live snapshot. Callers hold it for the duration of one
// matching run; a concurrent Replace does not affect snapshots already
// handed out.
func (c *Catalog) Current() *Snapshot {
	return c.current.Load()
}

// Replace installs a new catalog version. The version number increases
// monotonically.
func (c *Catalog) Replace(cards []models.CreditCard, promos []models.PromotionRule) *Snapshot {
	snap := newSnapshot(c.version.Add(1), cards, promos)
	c.current.Store(snap)
	return snap
}
