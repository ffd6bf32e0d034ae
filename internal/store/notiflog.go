package store

import (
	"context"
	"fmt"
	"time"
)

// AlreadySent reports whether a notification with this (type, reference,
// channel) triple has been dispatched before.
func (s *Store) AlreadySent(ctx context.Context, notificationType, referenceID, channel string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notification_log
		 WHERE notification_type = ? AND reference_id = ? AND channel = ?`,
		notificationType, referenceID, channel).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check notification log: %w", err)
	}
	return n > 0, nil
}

// MarkSent records a dispatched notification. Inserting the same triple
// twice is a no-op thanks to the unique constraint.
func (s *Store) MarkSent(ctx context.Context, notificationType, referenceID, channel string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_log (notification_type, reference_id, channel, sent_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(notification_type, reference_id, channel) DO NOTHING`,
		notificationType, referenceID, channel, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}
