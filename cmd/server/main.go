package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cardpulse/internal/api"
	"cardpulse/internal/catalog"
	"cardpulse/internal/config"
	"cardpulse/internal/deals"
	"cardpulse/internal/notifier"
	"cardpulse/internal/platform"
	"cardpulse/internal/registry"
	"cardpulse/internal/scheduler"
	"cardpulse/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	adapters := platform.NewSet(
		platform.NewPChome(nil),
		platform.NewMomo(nil),
	)
	reg := registry.New(st, adapters, logger)

	cat := catalog.New()
	if err := catalog.LoadSeed(cat, cfg.CardsSeedPath, logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CardsAPIBaseURL != "" {
		refresher := catalog.NewRefresher(cat, cfg.CardsAPIBaseURL, nil, logger)
		go refresher.Run(ctx, cfg.CardsRefreshInterval)
	}

	var channels []notifier.Channel
	if cfg.DiscordWebhookURL != "" {
		channels = append(channels, notifier.NewDiscord(cfg.DiscordWebhookURL, nil))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		channels = append(channels, notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, nil))
	}
	dispatcher := notifier.NewDispatcher(st, logger, channels...)

	sched := scheduler.New(st, adapters, notifier.NewAlertSink(cat, dispatcher),
		cfg.PollInterval, cfg.AdapterTimeout, cfg.WorkerCount, logger)
	go sched.Run(ctx)

	dealsSvc := deals.New(adapters, cat, cfg.FlashDealsTTL, logger)
	if dispatcher.ChannelCount() > 0 {
		go dealsSvc.Run(ctx, dispatcher, cfg.FlashDealsInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(reg, st, cat, dealsSvc, sched, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("Server listening", "port", cfg.Port, "poll_interval", cfg.PollInterval.String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
