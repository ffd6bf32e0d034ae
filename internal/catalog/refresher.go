package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"cardpulse/internal/models"
)

// Refresher periodically pulls the card catalog from an upstream rules API
// and swaps it into the catalog. Refresh runs on its own cadence, decoupled
// from price polling; a failed refresh keeps the previous snapshot live.
type Refresher struct {
	catalog *Catalog
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewRefresher(catalog *Catalog, baseURL string, client *http.Client, logger *slog.Logger) *Refresher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{catalog: catalog, baseURL: baseURL, client: client, logger: logger}
}

// RefreshOnce fetches cards and their promotions and installs a new snapshot.
// On any error the catalog is left untouched.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	var cards []models.CreditCard
	if err := r.getJSON(ctx, r.baseURL+"/api/cards", &cards); err != nil {
		return fmt.Errorf("fetch cards: %w", err)
	}

	var promos []models.PromotionRule
	for _, card := range cards {
		endpoint := fmt.Sprintf("%s/api/cards/%s/promotions", r.baseURL, url.PathEscape(card.ID))
		var cardPromos []models.PromotionRule
		if err := r.getJSON(ctx, endpoint, &cardPromos); err != nil {
			return fmt.Errorf("fetch promotions for %s: %w", card.ID, err)
		}
		promos = append(promos, cardPromos...)
	}

	snap := r.catalog.Replace(cards, promos)
	r.logger.Info("Card catalog refreshed",
		"cards", len(cards), "promotions", len(promos), "version", snap.Version)
	return nil
}

// Run refreshes on the given interval until the context is cancelled. The
// first refresh happens immediately.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if err := r.RefreshOnce(ctx); err != nil {
		r.logger.Error("Card catalog refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.logger.Error("Card catalog refresh failed", "error", err)
			}
		}
	}
}

func (r *Refresher) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
