package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         string `validate:"required"`
	DatabasePath string `validate:"required"`

	// Price polling
	PollInterval   time.Duration `validate:"gt=0"`
	WorkerCount    int           `validate:"gte=1,lte=64"`
	AdapterTimeout time.Duration `validate:"gt=0"`

	// Flash deals
	FlashDealsInterval time.Duration `validate:"gt=0"`
	FlashDealsTTL      time.Duration `validate:"gt=0"`

	// Card catalog
	CardsAPIBaseURL      string
	CardsRefreshInterval time.Duration `validate:"gt=0"`
	CardsSeedPath        string

	// Notifications
	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present, matching how the deployment images ship.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:         envOr("PORT", "8080"),
		DatabasePath: envOr("DATABASE_PATH", "./data/cardpulse.db"),

		CardsAPIBaseURL: os.Getenv("CARDS_API_BASE_URL"),
		CardsSeedPath:   os.Getenv("CARDS_SEED_PATH"),

		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
	}

	var err error
	if cfg.PollInterval, err = durationOr("POLL_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AdapterTimeout, err = durationOr("ADAPTER_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.FlashDealsInterval, err = durationOr("FLASH_DEALS_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.FlashDealsTTL, err = durationOr("FLASH_DEALS_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CardsRefreshInterval, err = durationOr("CARDS_REFRESH_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = intOr("WORKER_COUNT", 8); err != nil {
		return nil, err
	}

	if cfg.DiscordWebhookURL == "" && cfg.TelegramBotToken == "" {
		slog.Warn("No notification channel configured, price alerts will be skipped")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func intOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
