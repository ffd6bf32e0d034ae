package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"

	"cardpulse/internal/models"
)

//go:embed cards.json
var embeddedSeed []byte

type seedFile struct {
	Cards      []models.CreditCard    `json:"cards"`
	Promotions []models.PromotionRule `json:"promotions"`
}

// LoadSeed populates the catalog before the first remote refresh. It tries
// the configured seed path first and falls back to the embedded card set, so
// the matcher is never empty-handed on a cold start.
func LoadSeed(c *Catalog, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	data := embeddedSeed
	source := "embedded"
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Failed to read card seed file, using embedded seed", "path", path, "error", err)
		} else {
			data = fileData
			source = path
		}
	}

	cards, promos, err := parseSeed(data)
	if err != nil {
		return fmt.Errorf("load card seed from %s: %w", source, err)
	}

	snap := c.Replace(cards, promos)
	logger.Info("Card catalog seeded",
		"source", source, "cards", len(cards), "promotions", len(promos), "version", snap.Version)
	return nil
}

func parseSeed(data []byte) ([]models.CreditCard, []models.PromotionRule, error) {
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, nil, fmt.Errorf("parse seed: %w", err)
	}

	v := validator.New()
	for _, card := range seed.Cards {
		if err := v.Struct(card); err != nil {
			return nil, nil, fmt.Errorf("invalid card %q: %w", card.ID, err)
		}
	}
	for _, promo := range seed.Promotions {
		if err := v.Struct(promo); err != nil {
			return nil, nil, fmt.Errorf("invalid promotion %q: %w", promo.Title, err)
		}
	}
	return seed.Cards, seed.Promotions, nil
}
