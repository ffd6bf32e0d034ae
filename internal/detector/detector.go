// Package detector decides whether a new price observation is worth telling
// anyone about. Evaluate is a pure function so it can be tested without a
// store or scheduler behind it.
package detector

import "cardpulse/internal/models"

type EventKind string

const (
	// TargetReached fires when the price crosses down to or below the
	// user's target.
	TargetReached EventKind = "target_price_reached"

	// PriceDropped fires when the price fell since the previous snapshot
	// without reaching a target.
	PriceDropped EventKind = "price_drop"
)

// Event describes a notification-worthy price movement.
type Event struct {
	Kind          EventKind
	Price         int64
	PreviousPrice *int64 // nil on first observation
	Delta         int64  // previous - new, zero for TargetReached on first observation
	TargetPrice   *int64 // set only for TargetReached
}

// Evaluate applies the drop rules in order and returns the first match, or
// nil when nothing noteworthy happened.
//
//  1. Target set, new price at or below it, and the previous price (if any)
//     was above it: TargetReached. The target rule wins even when the move
//     is also a plain drop.
//  2. Previous snapshot exists and the price fell: PriceDropped.
//
// Same inputs always produce the same event; Evaluate has no side effects.
func Evaluate(prev *models.PriceSnapshot, next models.PriceSnapshot, target *int64) *Event {
	var prevPrice *int64
	if prev != nil {
		p := prev.Price
		prevPrice = &p
	}

	if target != nil && next.Price <= *target && (prev == nil || prev.Price > *target) {
		ev := &Event{
			Kind:          TargetReached,
			Price:         next.Price,
			PreviousPrice: prevPrice,
			TargetPrice:   target,
		}
		if prev != nil {
			ev.Delta = prev.Price - next.Price
		}
		return ev
	}

	if prev != nil && next.Price < prev.Price {
		return &Event{
			Kind:          PriceDropped,
			Price:         next.Price,
			PreviousPrice: prevPrice,
			Delta:         prev.Price - next.Price,
		}
	}

	return nil
}
