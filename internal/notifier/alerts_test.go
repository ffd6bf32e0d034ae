package notifier

import (
	"context"
	"strings"
	"testing"
	"time"

	"cardpulse/internal/catalog"
	"cardpulse/internal/detector"
	"cardpulse/internal/models"
)

func TestAlertSinkDispatchesWithBestCard(t *testing.T) {
	cat := catalog.New()
	cat.Replace([]models.CreditCard{
		{ID: "card-a", BankName: "Bank", Name: "Card A", BaseRewardRate: 2.0},
	}, nil)

	ch := &recordingChannel{name: "discord"}
	sink := NewAlertSink(cat, NewDispatcher(newMemorySentLog(), nil, ch))

	product := models.TrackedProduct{ID: "p1", Platform: models.PlatformPChome, Name: "Widget", URL: "u"}
	prev := int64(10000)
	ev := &detector.Event{Kind: detector.PriceDropped, Price: 9000, PreviousPrice: &prev, Delta: 1000}

	if err := sink.HandleEvent(context.Background(), product, ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(ch.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(ch.messages))
	}
	if !strings.Contains(ch.messages[0], "Card A") {
		t.Errorf("message missing best card:\n%s", ch.messages[0])
	}

	// Same price again: deduplicated.
	if err := sink.HandleEvent(context.Background(), product, ev); err != nil {
		t.Fatalf("repeat HandleEvent: %v", err)
	}
	if len(ch.messages) != 1 {
		t.Errorf("repeat event at the same price sent %d messages, want 1", len(ch.messages))
	}

	// A further drop is a new reference and alerts again.
	ev2 := &detector.Event{Kind: detector.PriceDropped, Price: 8000, PreviousPrice: &ev.Price, Delta: 1000}
	if err := sink.HandleEvent(context.Background(), product, ev2); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(ch.messages) != 2 {
		t.Errorf("further drop sent %d messages, want 2 total", len(ch.messages))
	}
}

func TestAlertSinkAppliesShoppingCategoryPromos(t *testing.T) {
	// Promotions filtered on the shared shopping category must apply to
	// tracked-product alerts, which carry the same category the adapters
	// stamp on their listings.
	now := time.Now().UTC()
	cat := catalog.New()
	cat.Replace(
		[]models.CreditCard{{ID: "card-a", BankName: "Bank", Name: "Card A", BaseRewardRate: 1.0}},
		[]models.PromotionRule{{
			CardID:     "card-a",
			Category:   models.CategoryOnlineShopping,
			RewardRate: 6.0,
			ValidFrom:  now.AddDate(0, -1, 0),
			ValidTo:    now.AddDate(0, 1, 0),
		}},
	)

	ch := &recordingChannel{name: "discord"}
	sink := NewAlertSink(cat, NewDispatcher(newMemorySentLog(), nil, ch))

	product := models.TrackedProduct{ID: "p1", Platform: models.PlatformPChome, Name: "Widget", URL: "u"}
	prev := int64(10000)
	ev := &detector.Event{Kind: detector.PriceDropped, Price: 9000, PreviousPrice: &prev, Delta: 1000}
	if err := sink.HandleEvent(context.Background(), product, ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(ch.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(ch.messages))
	}
	// 6% of 9000 minor units.
	if !strings.Contains(ch.messages[0], "6.0%") || !strings.Contains(ch.messages[0], "NT$5.40") {
		t.Errorf("message missing promo rate/reward:\n%s", ch.messages[0])
	}
}
