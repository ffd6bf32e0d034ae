package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardpulse/internal/models"
)

// timeLayout is a fixed-width RFC3339 form so stored timestamps sort
// lexicographically. Everything is stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// CreateProduct inserts a tracked product, deduplicating on
// (platform, external_id). When the product is already tracked the existing
// row is returned and created is false, regardless of whether it was first
// added via URL or keyword search.
func (s *Store) CreateProduct(ctx context.Context, p models.TrackedProduct) (models.TrackedProduct, bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.TargetPrice != nil && *p.TargetPrice < 0 {
		return models.TrackedProduct{}, false, fmt.Errorf("%w: target price %d is negative", models.ErrInvalidArgument, *p.TargetPrice)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_products (id, platform, external_id, name, url, target_price, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(platform, external_id) DO NOTHING`,
		p.ID, string(p.Platform), p.ExternalID, p.Name, p.URL, p.TargetPrice, formatTime(p.CreatedAt))
	if err != nil {
		return models.TrackedProduct{}, false, fmt.Errorf("insert product: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.TrackedProduct{}, false, err
	}

	existing, err := s.productByKey(ctx, p.Platform, p.ExternalID)
	if err != nil {
		return models.TrackedProduct{}, false, err
	}
	return existing, n > 0, nil
}

func (s *Store) productByKey(ctx context.Context, platform models.Platform, externalID string) (models.TrackedProduct, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, platform, external_id, name, url, target_price, created_at
		 FROM tracked_products WHERE platform = ? AND external_id = ?`,
		string(platform), externalID)
	return scanProduct(row)
}

// GetProduct returns the tracked product with the given id, or ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id string) (models.TrackedProduct, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, platform, external_id, name, url, target_price, created_at
		 FROM tracked_products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TrackedProduct{}, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return p, err
}

// ListProducts returns all tracked products in creation order.
func (s *Store) ListProducts(ctx context.Context) ([]models.TrackedProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, external_id, name, url, target_price, created_at
		 FROM tracked_products ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.TrackedProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DeleteProduct removes a product and, through the FK cascade, its entire
// price history. A second delete of the same id surfaces ErrNotFound rather
// than silently succeeding.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// SetTargetPrice updates a product's target price. Rejects negative prices
// with ErrInvalidArgument and unknown ids with ErrNotFound.
func (s *Store) SetTargetPrice(ctx context.Context, id string, price int64) error {
	if price < 0 {
		return fmt.Errorf("%w: target price %d is negative", models.ErrInvalidArgument, price)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracked_products SET target_price = ? WHERE id = ?`, price, id)
	if err != nil {
		return fmt.Errorf("set target price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (models.TrackedProduct, error) {
	var (
		p         models.TrackedProduct
		platform  string
		target    sql.NullInt64
		createdAt string
	)
	if err := row.Scan(&p.ID, &platform, &p.ExternalID, &p.Name, &p.URL, &target, &createdAt); err != nil {
		return models.TrackedProduct{}, err
	}
	p.Platform = models.Platform(platform)
	if target.Valid {
		v := target.Int64
		p.TargetPrice = &v
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return models.TrackedProduct{}, fmt.Errorf("parse created_at: %w", err)
	}
	p.CreatedAt = t
	return p, nil
}
