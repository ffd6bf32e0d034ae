// Package platform contains the marketplace adapters. Each adapter knows how
// to resolve product identifiers, quote current prices, and list flash deals
// for one platform, normalizing everything into the shared model types.
package platform

import (
	"context"
	"fmt"

	"cardpulse/internal/models"
)

// Adapter is the per-marketplace integration surface. Implementations must be
// safe for concurrent use; the scheduler fans out price fetches across
// products.
type Adapter interface {
	Platform() models.Platform

	// Resolve turns a product page URL into a canonical descriptor.
	// Failures to extract an id or fetch the product wrap
	// models.ErrResolution.
	Resolve(ctx context.Context, rawURL string) (models.ProductDescriptor, error)

	// Search returns descriptors for a keyword query, in the platform's
	// own relevance order. An empty result is not an error.
	Search(ctx context.Context, keyword string) ([]models.ProductDescriptor, error)

	// FetchPrice quotes the current price for a previously resolved
	// external id.
	FetchPrice(ctx context.Context, externalID string) (models.PriceQuote, error)

	// FlashDeals lists the platform's current limited-time offers.
	FlashDeals(ctx context.Context) ([]models.Deal, error)
}

// Set indexes adapters by platform.
type Set map[models.Platform]Adapter

func NewSet(adapters ...Adapter) Set {
	s := make(Set, len(adapters))
	for _, a := range adapters {
		s[a.Platform()] = a
	}
	return s
}

// For returns the adapter for a platform, or ErrUnsupportedPlatform.
func (s Set) For(p models.Platform) (Adapter, error) {
	a, ok := s[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedPlatform, p)
	}
	return a, nil
}

// Platforms returns the supported platform names in no particular order.
func (s Set) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}
