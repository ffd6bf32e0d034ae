// Package registry manages the set of tracked products: resolving identifiers
// through the platform adapters and persisting the results.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"cardpulse/internal/models"
	"cardpulse/internal/platform"
)

const searchCacheTTL = 5 * time.Minute

// ProductStore is the persistence surface the registry needs.
type ProductStore interface {
	CreateProduct(ctx context.Context, p models.TrackedProduct) (models.TrackedProduct, bool, error)
	GetProduct(ctx context.Context, id string) (models.TrackedProduct, error)
	ListProducts(ctx context.Context) ([]models.TrackedProduct, error)
	DeleteProduct(ctx context.Context, id string) error
	SetTargetPrice(ctx context.Context, id string, price int64) error
}

type Registry struct {
	store       ProductStore
	adapters    platform.Set
	searchCache *cache.Cache
	logger      *slog.Logger
}

func New(store ProductStore, adapters platform.Set, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:       store,
		adapters:    adapters,
		searchCache: cache.New(searchCacheTTL, 2*searchCacheTTL),
		logger:      logger,
	}
}

// Track resolves a product URL and registers it for price tracking. When the
// platform is empty it is inferred from the URL's host. Tracking a product
// that is already registered returns the existing record and created=false;
// it never duplicates and never clobbers an existing target price.
func (r *Registry) Track(ctx context.Context, p models.Platform, rawURL string, targetPrice *int64) (models.TrackedProduct, bool, error) {
	if targetPrice != nil && *targetPrice < 0 {
		return models.TrackedProduct{}, false, fmt.Errorf("%w: target price %d is negative", models.ErrInvalidArgument, *targetPrice)
	}

	if p == "" {
		detected, err := DetectPlatform(rawURL)
		if err != nil {
			return models.TrackedProduct{}, false, err
		}
		p = detected
	}

	adapter, err := r.adapters.For(p)
	if err != nil {
		return models.TrackedProduct{}, false, err
	}

	desc, err := adapter.Resolve(ctx, rawURL)
	if err != nil {
		return models.TrackedProduct{}, false, err
	}

	product, created, err := r.store.CreateProduct(ctx, models.TrackedProduct{
		Platform:    desc.Platform,
		ExternalID:  desc.ExternalID,
		Name:        desc.Name,
		URL:         desc.URL,
		TargetPrice: targetPrice,
	})
	if err != nil {
		return models.TrackedProduct{}, false, err
	}

	if created {
		r.logger.Info("Tracking new product",
			"platform", product.Platform, "external_id", product.ExternalID, "name", product.Name)
	} else {
		r.logger.Debug("Product already tracked",
			"platform", product.Platform, "external_id", product.ExternalID)
	}
	return product, created, nil
}

// Search runs a keyword query against one platform. Results are cached
// briefly so repeated queries within the TTL skip the marketplace.
func (r *Registry) Search(ctx context.Context, p models.Platform, keyword string) ([]models.ProductDescriptor, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty keyword", models.ErrInvalidArgument)
	}
	adapter, err := r.adapters.For(p)
	if err != nil {
		return nil, err
	}

	key := string(p) + "|" + keyword
	if hit, ok := r.searchCache.Get(key); ok {
		return hit.([]models.ProductDescriptor), nil
	}

	results, err := adapter.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}
	r.searchCache.Set(key, results, cache.DefaultExpiration)
	return results, nil
}

func (r *Registry) Get(ctx context.Context, id string) (models.TrackedProduct, error) {
	return r.store.GetProduct(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]models.TrackedProduct, error) {
	return r.store.ListProducts(ctx)
}

// Remove stops tracking a product and discards its history.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	r.logger.Info("Stopped tracking product", "id", id)
	return nil
}

func (r *Registry) SetTargetPrice(ctx context.Context, id string, price int64) error {
	return r.store.SetTargetPrice(ctx, id, price)
}

// DetectPlatform infers the marketplace from a product URL's host.
func DetectPlatform(rawURL string) (models.Platform, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", models.ErrResolution, rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, "pchome.com.tw"):
		return models.PlatformPChome, nil
	case strings.HasSuffix(host, "momoshop.com.tw"):
		return models.PlatformMomo, nil
	}
	return "", fmt.Errorf("%w: unrecognized host %q", models.ErrUnsupportedPlatform, host)
}
