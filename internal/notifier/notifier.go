// Package notifier delivers price alerts to chat channels. A dispatcher fans
// one message out to every configured channel and keeps a sent log so
// restarts and overlapping jobs never alert twice for the same event.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type NotificationType string

const (
	TypePriceDrop     NotificationType = "price_drop"
	TypeTargetReached NotificationType = "target_price_reached"
	TypeFlashDeal     NotificationType = "flash_deal"
)

// Channel is one delivery target.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// SentLog records which (type, reference, channel) triples have already been
// delivered.
type SentLog interface {
	AlreadySent(ctx context.Context, notificationType, referenceID, channel string) (bool, error)
	MarkSent(ctx context.Context, notificationType, referenceID, channel string) error
}

type Dispatcher struct {
	channels []Channel
	log      SentLog
	logger   *slog.Logger
}

func NewDispatcher(log SentLog, logger *slog.Logger, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{channels: channels, log: log, logger: logger}
}

// Dispatch sends the message to every channel that has not already received
// this (type, reference) pair. One channel failing does not stop delivery to
// the others; the errors are joined and returned after all channels were
// tried. A failed send is not marked, so the next dispatch retries it.
func (d *Dispatcher) Dispatch(ctx context.Context, typ NotificationType, referenceID, message string) error {
	var errs []error
	for _, ch := range d.channels {
		sent, err := d.log.AlreadySent(ctx, string(typ), referenceID, ch.Name())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		if sent {
			d.logger.Debug("Notification already sent, skipping",
				"type", typ, "reference", referenceID, "channel", ch.Name())
			continue
		}

		if err := ch.Send(ctx, message); err != nil {
			d.logger.Error("Failed to send notification",
				"type", typ, "reference", referenceID, "channel", ch.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}

		if err := d.log.MarkSent(ctx, string(typ), referenceID, ch.Name()); err != nil {
			errs = append(errs, fmt.Errorf("%s: mark sent: %w", ch.Name(), err))
			continue
		}
		d.logger.Info("Notification sent",
			"type", typ, "reference", referenceID, "channel", ch.Name())
	}
	return errors.Join(errs...)
}

// ChannelCount reports how many delivery targets are configured.
func (d *Dispatcher) ChannelCount() int { return len(d.channels) }

// sendWithRetry retries transient delivery failures with doubling backoff.
// Client errors other than 429 are permanent and returned immediately.
func sendWithRetry(ctx context.Context, attempts int, send func(ctx context.Context) (int, error)) error {
	backoff := 500 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		status, err := send(ctx)
		if err == nil && status < 300 {
			return nil
		}
		if err == nil {
			if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
				return fmt.Errorf("rejected with status %d", status)
			}
			lastErr = fmt.Errorf("status %d", status)
			continue
		}
		lastErr = err
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
