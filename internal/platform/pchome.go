package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cardpulse/internal/models"
)

const pchomeCategory = models.CategoryOnlineShopping

// PChome talks to the marketplace's public JSON endpoints. No HTML parsing
// is involved; search, product detail, and the flash-sale store all have
// structured APIs.
type PChome struct {
	client  *http.Client
	limiter *rate.Limiter

	searchBase string
	apiBase    string
	siteBase   string
}

func NewPChome(client *http.Client) *PChome {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PChome{
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 3),
		searchBase: "https://ecshweb.pchome.com.tw",
		apiBase:    "https://ecapi.pchome.com.tw",
		siteBase:   "https://24h.pchome.com.tw",
	}
}

func (p *PChome) Platform() models.Platform { return models.PlatformPChome }

type pchomePrice struct {
	M float64 `json:"M"` // market (list) price
	P float64 `json:"P"` // sale price
}

type pchomeSearchResponse struct {
	Prods []struct {
		ID    string      `json:"Id"`
		Name  string      `json:"Name"`
		Price pchomePrice `json:"Price"`
	} `json:"prods"`
}

type pchomeProd struct {
	ID    string      `json:"Id"`
	Name  string      `json:"Name"`
	Price pchomePrice `json:"Price"`
	Stock float64     `json:"Stock"`
}

func (p *PChome) Search(ctx context.Context, keyword string) ([]models.ProductDescriptor, error) {
	endpoint := fmt.Sprintf("%s/search/v3.3/?q=%s&page=1&sort=rnk/dc", p.searchBase, url.QueryEscape(keyword))

	var resp pchomeSearchResponse
	if err := p.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("pchome search %q: %w", keyword, err)
	}

	results := make([]models.ProductDescriptor, 0, len(resp.Prods))
	for _, prod := range resp.Prods {
		if prod.ID == "" {
			continue
		}
		results = append(results, models.ProductDescriptor{
			Platform:      models.PlatformPChome,
			ExternalID:    prod.ID,
			Name:          prod.Name,
			URL:           p.productURL(prod.ID),
			Price:         dollarsToMinor(prod.Price.P),
			OriginalPrice: listPrice(prod.Price),
			Category:      pchomeCategory,
			InStock:       true,
		})
	}
	return results, nil
}

func (p *PChome) Resolve(ctx context.Context, rawURL string) (models.ProductDescriptor, error) {
	id, err := pchomeIDFromURL(rawURL)
	if err != nil {
		return models.ProductDescriptor{}, err
	}

	prod, err := p.fetchProd(ctx, id)
	if err != nil {
		return models.ProductDescriptor{}, fmt.Errorf("%w: pchome product %s: %v", models.ErrResolution, id, err)
	}

	return models.ProductDescriptor{
		Platform:      models.PlatformPChome,
		ExternalID:    id,
		Name:          prod.Name,
		URL:           p.productURL(id),
		Price:         dollarsToMinor(prod.Price.P),
		OriginalPrice: listPrice(prod.Price),
		Category:      pchomeCategory,
		InStock:       prod.Stock > 0,
	}, nil
}

func (p *PChome) FetchPrice(ctx context.Context, externalID string) (models.PriceQuote, error) {
	prod, err := p.fetchProd(ctx, externalID)
	if err != nil {
		return models.PriceQuote{}, fmt.Errorf("pchome price %s: %w", externalID, err)
	}
	return models.PriceQuote{
		Price:         dollarsToMinor(prod.Price.P),
		OriginalPrice: listPrice(prod.Price),
		InStock:       prod.Stock > 0,
	}, nil
}

func (p *PChome) FlashDeals(ctx context.Context) ([]models.Deal, error) {
	endpoint := fmt.Sprintf("%s/ecshop/prodapi/v2/store/DSAA31/prod?fields=Id,Name,Price,Pic&limit=50", p.apiBase)

	var prods []pchomeProd
	if err := p.getJSON(ctx, endpoint, &prods); err != nil {
		return nil, fmt.Errorf("pchome flash deals: %w", err)
	}

	now := time.Now().UTC()
	deals := make([]models.Deal, 0, len(prods))
	for _, prod := range prods {
		if prod.ID == "" || prod.Price.P <= 0 {
			continue
		}
		deal := models.Deal{
			Platform:      models.PlatformPChome,
			ProductName:   prod.Name,
			ProductURL:    p.productURL(prod.ID),
			SalePrice:     dollarsToMinor(prod.Price.P),
			OriginalPrice: listPrice(prod.Price),
			Category:      pchomeCategory,
			ObservedAt:    now,
		}
		if deal.OriginalPrice != nil && *deal.OriginalPrice > 0 {
			discount := 1 - float64(deal.SalePrice)/float64(*deal.OriginalPrice)
			deal.DiscountRate = &discount
		}
		deals = append(deals, deal)
	}
	return deals, nil
}

// fetchProd hits the product detail API. The endpoint keys its response by
// product id, so decode into a map and take the single entry.
func (p *PChome) fetchProd(ctx context.Context, id string) (pchomeProd, error) {
	endpoint := fmt.Sprintf("%s/ecshop/prodapi/v2/prod/%s?fields=Id,Name,Price,Stock", p.apiBase, url.PathEscape(id))

	var byID map[string]pchomeProd
	if err := p.getJSON(ctx, endpoint, &byID); err != nil {
		return pchomeProd{}, err
	}
	for _, prod := range byID {
		return prod, nil
	}
	return pchomeProd{}, fmt.Errorf("product %s not in response", id)
}

func (p *PChome) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		// A wait that would outlast the deadline fails with the limiter's own
		// error before the context expires; surface it as a deadline error so
		// callers can classify it.
		if ctx.Err() == nil {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (p *PChome) productURL(id string) string {
	return p.siteBase + "/prod/" + id
}

// pchomeIDFromURL extracts the external id from a product page URL; the id is
// the last path segment.
func pchomeIDFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", models.ErrResolution, rawURL, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	id := segments[len(segments)-1]
	if id == "" || id == "prod" {
		return "", fmt.Errorf("%w: no product id in %q", models.ErrResolution, rawURL)
	}
	return id, nil
}

// dollarsToMinor converts a marketplace price in whole-currency units to the
// smallest unit.
func dollarsToMinor(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

func listPrice(price pchomePrice) *int64 {
	if price.M <= 0 || price.M <= price.P {
		return nil
	}
	v := dollarsToMinor(price.M)
	return &v
}
