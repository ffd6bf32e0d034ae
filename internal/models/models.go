package models

import (
	"fmt"
	"time"
)

// Platform identifies a supported marketplace. Each platform has its own
// external id format and its own adapter.
type Platform string

const (
	PlatformPChome Platform = "pchome"
	PlatformMomo   Platform = "momo"
)

// CategoryOnlineShopping is the reward category every marketplace adapter
// stamps on its descriptors and deals. Promotion rules filter on it.
const CategoryOnlineShopping = "online_shopping"

// ParsePlatform validates a platform name coming from an API request or
// config value.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformPChome, PlatformMomo:
		return Platform(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, s)
}

// TrackedProduct is a product registered for recurring price observation.
// (Platform, ExternalID) is unique across the registry.
type TrackedProduct struct {
	ID          string    `json:"id"`
	Platform    Platform  `json:"platform"`
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	TargetPrice *int64    `json:"target_price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PriceSnapshot is one timestamped price observation for a tracked product.
// Prices are integers in the currency's smallest unit. Snapshots are
// immutable once written; a second append at the same instant replaces the
// first rather than duplicating it.
type PriceSnapshot struct {
	ProductID     string    `json:"-"`
	Price         int64     `json:"price"`
	OriginalPrice *int64    `json:"original_price,omitempty"`
	InStock       bool      `json:"in_stock"`
	ObservedAt    time.Time `json:"observed_at"`
}

// PriceQuote is the adapter's answer to "what does this product cost right
// now". It carries no identity; the caller already knows which product it
// asked about.
type PriceQuote struct {
	Price         int64
	OriginalPrice *int64
	InStock       bool
}

// ProductDescriptor is the canonical result of resolving a URL or keyword
// through a platform adapter.
type ProductDescriptor struct {
	Platform      Platform `json:"platform"`
	ExternalID    string   `json:"external_id"`
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	Price         int64    `json:"price"`
	OriginalPrice *int64   `json:"original_price,omitempty"`
	Category      string   `json:"category,omitempty"`
	InStock       bool     `json:"in_stock"`
}

// Deal is an ephemeral externally-sourced priced item, e.g. a flash sale
// listing. Deals are query inputs to the matching engine and are never
// persisted.
type Deal struct {
	Platform      Platform  `json:"platform"`
	ProductName   string    `json:"product_name"`
	ProductURL    string    `json:"product_url"`
	SalePrice     int64     `json:"sale_price"`
	OriginalPrice *int64    `json:"original_price,omitempty"`
	DiscountRate  *float64  `json:"discount_rate,omitempty"`
	Category      string    `json:"category,omitempty"`
	ObservedAt    time.Time `json:"observed_at"`
}

// CreditCard is one card from the reward rule catalog.
type CreditCard struct {
	ID             string  `json:"id" validate:"required"`
	BankName       string  `json:"bank_name" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	BaseRewardRate float64 `json:"base_reward_rate" validate:"gte=0"`
}

// PromotionRule is a time-boxed override of a card's base reward rate.
// Empty filters match everything. The validity window is inclusive on both
// ends. RewardLimit, when set, caps the reward amount a single purchase can
// earn under this rule.
type PromotionRule struct {
	CardID      string    `json:"card_id" validate:"required"`
	Title       string    `json:"title"`
	Category    string    `json:"category,omitempty"`
	Merchant    string    `json:"merchant,omitempty"`
	RewardRate  float64   `json:"reward_rate" validate:"gte=0"`
	RewardLimit *int64    `json:"reward_limit,omitempty"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
}

// Matches reports whether the rule applies to the given item: both filters
// must match and the item's timestamp must fall inside the validity window.
func (r PromotionRule) Matches(item PricedItem) bool {
	if r.Category != "" && r.Category != item.Category {
		return false
	}
	if r.Merchant != "" && r.Merchant != string(item.Platform) {
		return false
	}
	if item.ObservedAt.Before(r.ValidFrom) || item.ObservedAt.After(r.ValidTo) {
		return false
	}
	return true
}

// PricedItem is the matching engine's view of a purchase: how much, in what
// category, on which platform, and when.
type PricedItem struct {
	Price      int64
	Category   string
	Platform   Platform
	ObservedAt time.Time
}

// MatchResult is one card's answer for a priced item. RewardAmount is in the
// currency's smallest unit, rounded half-to-even. Result sets are ordered by
// descending RewardAmount, ties broken by ascending CardID.
type MatchResult struct {
	CardID       string  `json:"card_id"`
	CardName     string  `json:"name"`
	BankName     string  `json:"bank_name"`
	Rate         float64 `json:"best_rate"`
	RewardAmount int64   `json:"reward_amount"`
}
