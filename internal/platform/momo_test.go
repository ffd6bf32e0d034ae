package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"cardpulse/internal/models"
)

const momoSearchHTML = `<html><body>
<div class="prdListArea">
  <div class="li_column">
    <a href="/goods/GoodsDetail.jsp?i_code=12345678"></a>
    <p class="prdName">AirPods Pro 2</p>
    <span class="price"><b>6,990</b></span>
    <span class="originalPrice">7,990</span>
  </div>
  <div class="li_column">
    <a href="/goods/GoodsDetail.jsp?i_code=87654321"></a>
    <p class="prdName">AirPods Case</p>
    <span class="price"><b>390</b></span>
  </div>
  <div class="li_column">
    <a href="/edm/some-banner"></a>
    <p class="prdName">Banner, not a product</p>
  </div>
</div>
</body></html>`

const momoDetailHTML = `<html><body>
<p class="prdName">AirPods Pro 2</p>
<span class="goodsPrice">NT$6,990</span>
<span class="originalPrice">7,990</span>
<div class="addBtnArea"><button>加入購物車</button></div>
</body></html>`

const momoSoldOutHTML = `<html><body>
<p class="prdName">AirPods Pro 2</p>
<span class="goodsPrice">NT$6,990</span>
</body></html>`

func newTestMomo(t *testing.T, handler http.Handler) *Momo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := NewMomo(srv.Client())
	m.baseURL = srv.URL
	return m
}

func TestMomoSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/searchShop.jsp", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("keyword"); got != "airpods" {
			t.Errorf("keyword = %q, want airpods", got)
		}
		w.Write([]byte(momoSearchHTML))
	})

	m := newTestMomo(t, mux)
	results, err := m.Search(context.Background(), "airpods")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (banner without i_code skipped)", len(results))
	}

	first := results[0]
	if first.ExternalID != "12345678" {
		t.Errorf("ExternalID = %q", first.ExternalID)
	}
	if first.Name != "AirPods Pro 2" {
		t.Errorf("Name = %q", first.Name)
	}
	if first.Price != 699000 {
		t.Errorf("Price = %d, want 699000", first.Price)
	}
	if first.OriginalPrice == nil || *first.OriginalPrice != 799000 {
		t.Errorf("OriginalPrice = %v, want 799000", first.OriginalPrice)
	}
	if results[1].OriginalPrice != nil {
		t.Errorf("expected nil OriginalPrice without a struck-through price")
	}
}

func TestMomoResolve(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/goods/GoodsDetail.jsp", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("i_code"); got != "12345678" {
			t.Errorf("i_code = %q, want 12345678", got)
		}
		w.Write([]byte(momoDetailHTML))
	})

	m := newTestMomo(t, mux)
	desc, err := m.Resolve(context.Background(), "https://www.momoshop.com.tw/goods/GoodsDetail.jsp?i_code=12345678&str_category_code=xyz")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.ExternalID != "12345678" {
		t.Errorf("ExternalID = %q", desc.ExternalID)
	}
	if desc.Price != 699000 {
		t.Errorf("Price = %d, want 699000", desc.Price)
	}
	if !desc.InStock {
		t.Error("expected InStock when the add-to-cart button is present")
	}
	if desc.Platform != models.PlatformMomo {
		t.Errorf("Platform = %q", desc.Platform)
	}
}

func TestMomoResolveNoICode(t *testing.T) {
	m := newTestMomo(t, http.NewServeMux())
	_, err := m.Resolve(context.Background(), "https://www.momoshop.com.tw/main/Main.jsp")
	if !errors.Is(err, models.ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestMomoFetchPriceSoldOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/goods/GoodsDetail.jsp", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(momoSoldOutHTML))
	})

	m := newTestMomo(t, mux)
	quote, err := m.FetchPrice(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("FetchPrice: %v", err)
	}
	if quote.InStock {
		t.Error("expected out of stock without the add-to-cart button")
	}
	if quote.Price != 699000 {
		t.Errorf("Price = %d, want 699000", quote.Price)
	}
}

func TestMomoFlashDeals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/category/LgrpCategory.jsp", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("l_code"); got != "fl" {
			t.Errorf("l_code = %q, want fl", got)
		}
		w.Write([]byte(momoSearchHTML))
	})

	m := newTestMomo(t, mux)
	deals, err := m.FlashDeals(context.Background())
	if err != nil {
		t.Fatalf("FlashDeals: %v", err)
	}
	if len(deals) != 2 {
		t.Fatalf("got %d deals, want 2", len(deals))
	}
	if deals[0].DiscountRate == nil {
		t.Fatal("expected a discount rate when an original price is shown")
	}
	if got := *deals[0].DiscountRate; got < 0.12 || got > 0.13 {
		t.Errorf("DiscountRate = %v, want ~0.125", got)
	}
}

func TestMomoLimiterDeadline(t *testing.T) {
	m := newTestMomo(t, http.NewServeMux())
	m.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	m.limiter.Allow() // drain the only token

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.FetchPrice(ctx, "12345678")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error when the limiter cannot admit in time, got %v", err)
	}
}

func TestSetFor(t *testing.T) {
	m := NewMomo(nil)
	set := NewSet(m)

	if _, err := set.For(models.PlatformMomo); err != nil {
		t.Fatalf("For(momo): %v", err)
	}
	_, err := set.For(models.PlatformPChome)
	if !errors.Is(err, models.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}
