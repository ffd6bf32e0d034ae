package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"cardpulse/internal/models"
)

// AppendSnapshot records one price observation. A snapshot already present
// at exactly the same instant for the same product is replaced
// (last-write-wins) instead of duplicated, so history never contains two
// snapshots with equal timestamps.
func (s *Store) AppendSnapshot(ctx context.Context, snap models.PriceSnapshot) error {
	if snap.Price < 0 {
		return fmt.Errorf("%w: price %d is negative", models.ErrInvalidArgument, snap.Price)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, original_price, in_stock, observed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(product_id, observed_at) DO UPDATE SET
			price = excluded.price,
			original_price = excluded.original_price,
			in_stock = excluded.in_stock`,
		snap.ProductID, snap.Price, snap.OriginalPrice, snap.InStock, formatTime(snap.ObservedAt))
	if err != nil {
		var serr *sqlite.Error
		if errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return fmt.Errorf("product %s: %w", snap.ProductID, models.ErrNotFound)
		}
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// History returns the product's snapshots ordered by observed_at ascending,
// optionally bounded by [from, to]. The sequence is lazy and restartable:
// each range over it runs a fresh query, and rows are scanned as they are
// consumed. An empty range yields an empty sequence, not an error.
func (s *Store) History(ctx context.Context, productID string, from, to *time.Time) iter.Seq2[models.PriceSnapshot, error] {
	return func(yield func(models.PriceSnapshot, error) bool) {
		query := `SELECT product_id, price, original_price, in_stock, observed_at
			 FROM price_history WHERE product_id = ?`
		args := []any{productID}
		if from != nil {
			query += ` AND observed_at >= ?`
			args = append(args, formatTime(*from))
		}
		if to != nil {
			query += ` AND observed_at <= ?`
			args = append(args, formatTime(*to))
		}
		query += ` ORDER BY observed_at ASC`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(models.PriceSnapshot{}, fmt.Errorf("query history: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			snap, err := scanSnapshot(rows)
			if err != nil {
				yield(models.PriceSnapshot{}, err)
				return
			}
			if !yield(snap, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.PriceSnapshot{}, fmt.Errorf("iterate history: %w", err))
		}
	}
}

// HistorySlice collects History into a slice, for callers that need the
// whole range at once.
func (s *Store) HistorySlice(ctx context.Context, productID string, from, to *time.Time) ([]models.PriceSnapshot, error) {
	var snaps []models.PriceSnapshot
	for snap, err := range s.History(ctx, productID, from, to) {
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Latest returns the most recent snapshot for the product, or nil when no
// history exists.
func (s *Store) Latest(ctx context.Context, productID string) (*models.PriceSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT product_id, price, original_price, in_stock, observed_at
		 FROM price_history WHERE product_id = ?
		 ORDER BY observed_at DESC LIMIT 1`, productID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// LowestPrice returns the lowest observed price for the product, or nil when
// no history exists.
func (s *Store) LowestPrice(ctx context.Context, productID string) (*int64, error) {
	var lowest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(price) FROM price_history WHERE product_id = ?`, productID).Scan(&lowest)
	if err != nil {
		return nil, fmt.Errorf("lowest price: %w", err)
	}
	if !lowest.Valid {
		return nil, nil
	}
	v := lowest.Int64
	return &v, nil
}

func scanSnapshot(row rowScanner) (models.PriceSnapshot, error) {
	var (
		snap       models.PriceSnapshot
		original   sql.NullInt64
		observedAt string
	)
	if err := row.Scan(&snap.ProductID, &snap.Price, &original, &snap.InStock, &observedAt); err != nil {
		return models.PriceSnapshot{}, err
	}
	if original.Valid {
		v := original.Int64
		snap.OriginalPrice = &v
	}
	t, err := parseTime(observedAt)
	if err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("parse observed_at: %w", err)
	}
	snap.ObservedAt = t
	return snap, nil
}
