// Package reward ranks credit cards by the reward a purchase would earn.
package reward

import (
	"math"
	"sort"

	"cardpulse/internal/catalog"
	"cardpulse/internal/models"
)

// Amount computes the reward for a price at a percentage rate, in the
// currency's smallest unit, rounded half to even. A reward limit, when
// present, caps the result.
func Amount(price int64, ratePercent float64, limit *int64) int64 {
	amount := int64(math.RoundToEven(float64(price) * ratePercent / 100))
	if amount < 0 {
		amount = 0
	}
	if limit != nil && amount > *limit {
		amount = *limit
	}
	return amount
}

// BestCards evaluates every card in the snapshot against the item and returns
// the top n matches, ordered by descending reward amount with ties broken by
// ascending card id. n <= 0 means no truncation. An empty catalog yields an
// empty result, not an error.
func BestCards(snap *catalog.Snapshot, item models.PricedItem, n int) []models.MatchResult {
	cards := snap.Cards()
	results := make([]models.MatchResult, 0, len(cards))
	for _, card := range cards {
		rate, limit := snap.ActiveRate(card.ID, item)
		results = append(results, models.MatchResult{
			CardID:       card.ID,
			CardName:     card.Name,
			BankName:     card.BankName,
			Rate:         rate,
			RewardAmount: Amount(item.Price, rate, limit),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RewardAmount != results[j].RewardAmount {
			return results[i].RewardAmount > results[j].RewardAmount
		}
		return results[i].CardID < results[j].CardID
	})

	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results
}

// Best returns the single best card for the item, or nil when the catalog is
// empty.
func Best(snap *catalog.Snapshot, item models.PricedItem) *models.MatchResult {
	top := BestCards(snap, item, 1)
	if len(top) == 0 {
		return nil
	}
	return &top[0]
}
