package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cardpulse/internal/deals"
	"cardpulse/internal/models"
	"cardpulse/internal/reward"
)

type productView struct {
	models.TrackedProduct
	Latest      *models.PriceSnapshot `json:"latest,omitempty"`
	LowestPrice *int64                `json:"lowest_price,omitempty"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		latest, err := s.store.Latest(r.Context(), p.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		views = append(views, productView{TrackedProduct: p, Latest: latest})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

type trackRequest struct {
	URL         string `json:"url"`
	Keyword     string `json:"keyword"`
	Platform    string `json:"platform"`
	TargetPrice *int64 `json:"target_price"`
}

// handleTrackProduct registers a product by URL, or runs a keyword search
// when a keyword is given instead so the caller can pick a URL to track.
func (s *Server) handleTrackProduct(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
		return
	}

	var p models.Platform
	if req.Platform != "" {
		parsed, err := models.ParsePlatform(req.Platform)
		if err != nil {
			writeError(w, err)
			return
		}
		p = parsed
	}

	if strings.TrimSpace(req.URL) == "" {
		if strings.TrimSpace(req.Keyword) == "" {
			writeError(w, fmt.Errorf("%w: url or keyword is required", models.ErrInvalidArgument))
			return
		}
		results, err := s.registry.Search(r.Context(), p, req.Keyword)
		if err != nil {
			writeError(w, err)
			return
		}
		if results == nil {
			results = []models.ProductDescriptor{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	product, created, err := s.registry.Track(r.Context(), p, req.URL, req.TargetPrice)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, product)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	latest, err := s.store.Latest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	lowest, err := s.store.LowestPrice(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productView{TrackedProduct: product, Latest: latest, LowestPrice: lowest})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type targetRequest struct {
	TargetPrice int64 `json:"target_price"`
}

func (s *Server) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.registry.SetTargetPrice(r.Context(), id, req.TargetPrice); err != nil {
		writeError(w, err)
		return
	}
	product, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.registry.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeError(w, err)
		return
	}

	snaps, err := s.store.HistorySlice(r.Context(), id, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	if snaps == nil {
		snaps = []models.PriceSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p, err := models.ParsePlatform(r.URL.Query().Get("platform"))
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := s.registry.Search(r.Context(), p, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []models.ProductDescriptor{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleFlashDeals(w http.ResponseWriter, r *http.Request) {
	var p models.Platform
	if raw := r.URL.Query().Get("platform"); raw != "" {
		parsed, err := models.ParsePlatform(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		p = parsed
	}

	dealsList, err := s.deals.FlashDeals(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	if dealsList == nil {
		dealsList = []deals.DealWithCard{}
	}
	writeJSON(w, http.StatusOK, dealsList)
}

type cardView struct {
	models.CreditCard
	Promotions []models.PromotionRule `json:"promotions"`
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	views := make([]cardView, 0, len(snap.Cards()))
	for _, card := range snap.Cards() {
		promos := snap.Promotions(card.ID)
		if promos == nil {
			promos = []models.PromotionRule{}
		}
		views = append(views, cardView{CreditCard: card, Promotions: promos})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog_version": snap.Version,
		"cards":           views,
	})
}

type recommendRequest struct {
	Price    int64  `json:"price"`
	Category string `json:"category"`
	Platform string `json:"platform"`
	TopN     int    `json:"top_n"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
		return
	}
	if req.Price <= 0 {
		writeError(w, fmt.Errorf("%w: price must be positive", models.ErrInvalidArgument))
		return
	}

	var p models.Platform
	if req.Platform != "" {
		parsed, err := models.ParsePlatform(req.Platform)
		if err != nil {
			writeError(w, err)
			return
		}
		p = parsed
	}
	topN := req.TopN
	if topN <= 0 {
		topN = 3
	}

	snap := s.catalog.Current()
	results := reward.BestCards(snap, models.PricedItem{
		Price:      req.Price,
		Category:   req.Category,
		Platform:   p,
		ObservedAt: time.Now().UTC(),
	}, topN)
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog_version": snap.Version,
		"results":         results,
	})
}

func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	products, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	snap := s.catalog.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduler": s.sched.Status(),
		"catalog": map[string]any{
			"version":   snap.Version,
			"loaded_at": snap.LoadedAt,
			"cards":     len(snap.Cards()),
		},
		"tracked_products": len(products),
	})
}

func parseTimeParam(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", models.ErrInvalidArgument, key, raw, err)
	}
	return &t, nil
}
