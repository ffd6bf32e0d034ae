package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"cardpulse/internal/models"
	"cardpulse/internal/util"
)

// Served to both marketplaces; the mobile pages are lighter and render their
// prices server-side.
const userAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

const momoCategory = models.CategoryOnlineShopping

var momoIDPattern = regexp.MustCompile(`i_code=(\d+)`)

// Momo scrapes the marketplace's mobile site. There is no public JSON API,
// but the mobile pages carry stable class names for names and prices.
type Momo struct {
	client  *http.Client
	limiter *rate.Limiter

	baseURL string
}

func NewMomo(client *http.Client) *Momo {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Momo{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 2),
		baseURL: "https://m.momoshop.com.tw",
	}
}

func (m *Momo) Platform() models.Platform { return models.PlatformMomo }

func (m *Momo) Search(ctx context.Context, keyword string) ([]models.ProductDescriptor, error) {
	endpoint := fmt.Sprintf("%s/search/searchShop.jsp?keyword=%s", m.baseURL, url.QueryEscape(keyword))

	doc, err := m.fetchDocument(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("momo search %q: %w", keyword, err)
	}

	var results []models.ProductDescriptor
	doc.Find(".prdListArea .li_column").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Find("a").First().Attr("href")
		id := momoIDFromURL(href)
		if id == "" {
			return
		}
		price, ok := util.ParsePriceText(sel.Find(".price b").First().Text())
		if !ok {
			return
		}
		desc := models.ProductDescriptor{
			Platform:   models.PlatformMomo,
			ExternalID: id,
			Name:       sel.Find(".prdName").First().Text(),
			URL:        m.productURL(id),
			Price:      price * 100,
			Category:   momoCategory,
			InStock:    true,
		}
		if original, ok := util.ParsePriceText(sel.Find(".originalPrice").First().Text()); ok && original > price {
			v := original * 100
			desc.OriginalPrice = &v
		}
		results = append(results, desc)
	})
	return results, nil
}

func (m *Momo) Resolve(ctx context.Context, rawURL string) (models.ProductDescriptor, error) {
	id := momoIDFromURL(rawURL)
	if id == "" {
		return models.ProductDescriptor{}, fmt.Errorf("%w: no i_code in %q", models.ErrResolution, rawURL)
	}

	name, quote, err := m.fetchDetail(ctx, id)
	if err != nil {
		return models.ProductDescriptor{}, fmt.Errorf("%w: momo product %s: %v", models.ErrResolution, id, err)
	}

	return models.ProductDescriptor{
		Platform:      models.PlatformMomo,
		ExternalID:    id,
		Name:          name,
		URL:           m.productURL(id),
		Price:         quote.Price,
		OriginalPrice: quote.OriginalPrice,
		Category:      momoCategory,
		InStock:       quote.InStock,
	}, nil
}

func (m *Momo) FetchPrice(ctx context.Context, externalID string) (models.PriceQuote, error) {
	_, quote, err := m.fetchDetail(ctx, externalID)
	if err != nil {
		return models.PriceQuote{}, fmt.Errorf("momo price %s: %w", externalID, err)
	}
	return quote, nil
}

func (m *Momo) FlashDeals(ctx context.Context) ([]models.Deal, error) {
	endpoint := m.baseURL + "/category/LgrpCategory.jsp?l_code=fl"

	doc, err := m.fetchDocument(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("momo flash deals: %w", err)
	}

	now := time.Now().UTC()
	var deals []models.Deal
	doc.Find(".prdListArea .li_column").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Find("a").First().Attr("href")
		id := momoIDFromURL(href)
		if id == "" {
			return
		}
		sale, ok := util.ParsePriceText(sel.Find(".price b").First().Text())
		if !ok {
			return
		}
		deal := models.Deal{
			Platform:    models.PlatformMomo,
			ProductName: sel.Find(".prdName").First().Text(),
			ProductURL:  m.productURL(id),
			SalePrice:   sale * 100,
			Category:    momoCategory,
			ObservedAt:  now,
		}
		if original, ok := util.ParsePriceText(sel.Find(".originalPrice").First().Text()); ok && original > sale {
			v := original * 100
			deal.OriginalPrice = &v
			discount := 1 - float64(sale)/float64(original)
			deal.DiscountRate = &discount
		}
		deals = append(deals, deal)
	})
	return deals, nil
}

// fetchDetail loads the product page and pulls name, prices, and stock state.
// The add-to-cart button is absent on sold-out pages.
func (m *Momo) fetchDetail(ctx context.Context, id string) (string, models.PriceQuote, error) {
	doc, err := m.fetchDocument(ctx, m.productURL(id))
	if err != nil {
		return "", models.PriceQuote{}, err
	}

	name := doc.Find(".prdName").First().Text()

	priceText := doc.Find(".goodsPrice").First().Text()
	if priceText == "" {
		priceText = doc.Find(".price b").First().Text()
	}
	price, ok := util.ParsePriceText(priceText)
	if !ok {
		return "", models.PriceQuote{}, fmt.Errorf("no price on page for %s", id)
	}

	quote := models.PriceQuote{
		Price:   price * 100,
		InStock: doc.Find(".addBtnArea").Length() > 0,
	}
	if original, ok := util.ParsePriceText(doc.Find(".originalPrice").First().Text()); ok && original > price {
		v := original * 100
		quote.OriginalPrice = &v
	}
	return name, quote, nil
}

func (m *Momo) fetchDocument(ctx context.Context, endpoint string) (*goquery.Document, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		// A wait that would outlast the deadline fails with the limiter's own
		// error before the context expires; surface it as a deadline error so
		// callers can classify it.
		if ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (m *Momo) productURL(id string) string {
	return m.baseURL + "/goods/GoodsDetail.jsp?i_code=" + id
}

func momoIDFromURL(rawURL string) string {
	match := momoIDPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return ""
	}
	return match[1]
}
