package registry

import (
	"context"
	"errors"
	"testing"

	"cardpulse/internal/models"
	"cardpulse/internal/platform"
)

type fakeAdapter struct {
	platform    models.Platform
	resolved    models.ProductDescriptor
	resolveErr  error
	searched    []models.ProductDescriptor
	searchCalls int
}

func (f *fakeAdapter) Platform() models.Platform { return f.platform }

func (f *fakeAdapter) Resolve(_ context.Context, _ string) (models.ProductDescriptor, error) {
	return f.resolved, f.resolveErr
}

func (f *fakeAdapter) Search(_ context.Context, _ string) ([]models.ProductDescriptor, error) {
	f.searchCalls++
	return f.searched, nil
}

func (f *fakeAdapter) FetchPrice(_ context.Context, _ string) (models.PriceQuote, error) {
	return models.PriceQuote{}, nil
}

func (f *fakeAdapter) FlashDeals(_ context.Context) ([]models.Deal, error) {
	return nil, nil
}

type fakeStore struct {
	products map[string]models.TrackedProduct
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: make(map[string]models.TrackedProduct)}
}

func (f *fakeStore) CreateProduct(_ context.Context, p models.TrackedProduct) (models.TrackedProduct, bool, error) {
	for _, existing := range f.products {
		if existing.Platform == p.Platform && existing.ExternalID == p.ExternalID {
			return existing, false, nil
		}
	}
	f.nextID++
	p.ID = string(rune('a' + f.nextID))
	f.products[p.ID] = p
	return p, true, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (models.TrackedProduct, error) {
	p, ok := f.products[id]
	if !ok {
		return models.TrackedProduct{}, models.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListProducts(_ context.Context) ([]models.TrackedProduct, error) {
	var out []models.TrackedProduct
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) DeleteProduct(_ context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return models.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) SetTargetPrice(_ context.Context, id string, price int64) error {
	p, ok := f.products[id]
	if !ok {
		return models.ErrNotFound
	}
	p.TargetPrice = &price
	f.products[id] = p
	return nil
}

func testRegistry(adapters ...platform.Adapter) (*Registry, *fakeStore) {
	st := newFakeStore()
	return New(st, platform.NewSet(adapters...), nil), st
}

func TestTrackResolvesAndPersists(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformPChome,
		resolved: models.ProductDescriptor{
			Platform:   models.PlatformPChome,
			ExternalID: "ABC123",
			Name:       "Widget",
			URL:        "https://24h.pchome.com.tw/prod/ABC123",
		},
	}
	reg, st := testRegistry(adapter)

	target := int64(50000)
	product, created, err := reg.Track(context.Background(), models.PlatformPChome, "https://24h.pchome.com.tw/prod/ABC123", &target)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if !created {
		t.Error("expected created on first track")
	}
	if product.TargetPrice == nil || *product.TargetPrice != 50000 {
		t.Errorf("TargetPrice = %v, want 50000", product.TargetPrice)
	}
	if len(st.products) != 1 {
		t.Fatalf("store has %d products, want 1", len(st.products))
	}
}

func TestTrackDeduplicates(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformPChome,
		resolved: models.ProductDescriptor{
			Platform:   models.PlatformPChome,
			ExternalID: "ABC123",
			Name:       "Widget",
		},
	}
	reg, st := testRegistry(adapter)

	first, created, err := reg.Track(context.Background(), models.PlatformPChome, "u", nil)
	if err != nil || !created {
		t.Fatalf("first Track: created=%v err=%v", created, err)
	}
	second, created, err := reg.Track(context.Background(), models.PlatformPChome, "u", nil)
	if err != nil {
		t.Fatalf("second Track: %v", err)
	}
	if created {
		t.Error("expected created=false on duplicate track")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate track returned id %q, want existing %q", second.ID, first.ID)
	}
	if len(st.products) != 1 {
		t.Errorf("store has %d products, want 1", len(st.products))
	}
}

func TestTrackDetectsPlatformFromURL(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformMomo,
		resolved: models.ProductDescriptor{Platform: models.PlatformMomo, ExternalID: "99"},
	}
	reg, _ := testRegistry(adapter)

	_, _, err := reg.Track(context.Background(), "", "https://www.momoshop.com.tw/goods/GoodsDetail.jsp?i_code=99", nil)
	if err != nil {
		t.Fatalf("Track with inferred platform: %v", err)
	}

	_, _, err = reg.Track(context.Background(), "", "https://example.com/prod/1", nil)
	if !errors.Is(err, models.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform for unknown host, got %v", err)
	}
}

func TestTrackResolutionFailure(t *testing.T) {
	adapter := &fakeAdapter{
		platform:   models.PlatformPChome,
		resolveErr: models.ErrResolution,
	}
	reg, st := testRegistry(adapter)

	_, _, err := reg.Track(context.Background(), models.PlatformPChome, "u", nil)
	if !errors.Is(err, models.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	if len(st.products) != 0 {
		t.Error("failed resolution must not persist a product")
	}
}

func TestTrackRejectsNegativeTarget(t *testing.T) {
	reg, _ := testRegistry(&fakeAdapter{platform: models.PlatformPChome})
	neg := int64(-1)
	_, _, err := reg.Track(context.Background(), models.PlatformPChome, "u", &neg)
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSearchValidation(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformPChome,
		searched: []models.ProductDescriptor{{ExternalID: "X"}},
	}
	reg, _ := testRegistry(adapter)

	results, err := reg.Search(context.Background(), models.PlatformPChome, "widget")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}

	if _, err := reg.Search(context.Background(), models.PlatformPChome, "   "); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for blank keyword, got %v", err)
	}
	if _, err := reg.Search(context.Background(), "shopee", "widget"); !errors.Is(err, models.ErrUnsupportedPlatform) {
		t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestSearchCachesResults(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformPChome,
		searched: []models.ProductDescriptor{{ExternalID: "X"}},
	}
	reg, _ := testRegistry(adapter)

	for i := 0; i < 3; i++ {
		if _, err := reg.Search(context.Background(), models.PlatformPChome, "widget"); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}
	if adapter.searchCalls != 1 {
		t.Errorf("adapter searched %d times, want 1 (cached)", adapter.searchCalls)
	}

	// A different keyword is a different cache entry.
	if _, err := reg.Search(context.Background(), models.PlatformPChome, "gadget"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if adapter.searchCalls != 2 {
		t.Errorf("adapter searched %d times, want 2", adapter.searchCalls)
	}
}

func TestRemoveUnknownProduct(t *testing.T) {
	reg, _ := testRegistry(&fakeAdapter{platform: models.PlatformPChome})
	if err := reg.Remove(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
