package notifier

import (
	"fmt"
	"strconv"
	"strings"

	"cardpulse/internal/detector"
	"cardpulse/internal/models"
)

// FormatAmount renders a minor-unit amount as display currency, e.g. 2790000
// becomes "NT$27,900".
func FormatAmount(minor int64) string {
	negative := minor < 0
	if negative {
		minor = -minor
	}

	whole := minor / 100
	cents := minor % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := "NT$" + b.String()
	if cents != 0 {
		out += fmt.Sprintf(".%02d", cents)
	}
	if negative {
		out = "-" + out
	}
	return out
}

// FormatEvent builds the alert message for a detected price movement. The
// best-card suggestion is appended when available.
func FormatEvent(product models.TrackedProduct, ev *detector.Event, best *models.MatchResult) string {
	var b strings.Builder

	switch ev.Kind {
	case detector.TargetReached:
		fmt.Fprintf(&b, "🎯 Target price reached: %s\n", product.Name)
		fmt.Fprintf(&b, "Now %s", FormatAmount(ev.Price))
		if ev.TargetPrice != nil {
			fmt.Fprintf(&b, " (target %s)", FormatAmount(*ev.TargetPrice))
		}
	case detector.PriceDropped:
		fmt.Fprintf(&b, "📉 Price drop: %s\n", product.Name)
		fmt.Fprintf(&b, "Now %s", FormatAmount(ev.Price))
		if ev.PreviousPrice != nil {
			fmt.Fprintf(&b, ", was %s (save %s)", FormatAmount(*ev.PreviousPrice), FormatAmount(ev.Delta))
		}
	default:
		fmt.Fprintf(&b, "%s: %s at %s", ev.Kind, product.Name, FormatAmount(ev.Price))
	}
	b.WriteByte('\n')
	b.WriteString(product.URL)

	if best != nil {
		fmt.Fprintf(&b, "\n💳 Best card: %s %s (%.1f%%, earns %s)",
			best.BankName, best.CardName, best.Rate, FormatAmount(best.RewardAmount))
	}
	return b.String()
}

// FormatFlashDeal builds the alert message for a flash sale listing.
func FormatFlashDeal(deal models.Deal, best *models.MatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚡ Flash deal on %s: %s\n", deal.Platform, deal.ProductName)
	fmt.Fprintf(&b, "Now %s", FormatAmount(deal.SalePrice))
	if deal.OriginalPrice != nil {
		fmt.Fprintf(&b, ", was %s", FormatAmount(*deal.OriginalPrice))
	}
	if deal.DiscountRate != nil {
		fmt.Fprintf(&b, " (%.0f%% off)", *deal.DiscountRate*100)
	}
	b.WriteByte('\n')
	b.WriteString(deal.ProductURL)

	if best != nil {
		fmt.Fprintf(&b, "\n💳 Best card: %s %s (%.1f%%, earns %s)",
			best.BankName, best.CardName, best.Rate, FormatAmount(best.RewardAmount))
	}
	return b.String()
}
