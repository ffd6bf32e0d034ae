// Package api exposes the tracking engine over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cardpulse/internal/catalog"
	"cardpulse/internal/deals"
	"cardpulse/internal/registry"
	"cardpulse/internal/scheduler"
	"cardpulse/internal/store"
)

type Server struct {
	registry *registry.Registry
	store    *store.Store
	catalog  *catalog.Catalog
	deals    *deals.Service
	sched    *scheduler.Scheduler
	logger   *slog.Logger
	router   chi.Router
}

func NewServer(reg *registry.Registry, st *store.Store, cat *catalog.Catalog, dealsSvc *deals.Service, sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: reg,
		store:    st,
		catalog:  cat,
		deals:    dealsSvc,
		sched:    sched,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Post("/", s.handleTrackProduct)
			r.Get("/search", s.handleSearch)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProduct)
				r.Delete("/", s.handleDeleteProduct)
				r.Put("/target", s.handleSetTarget)
				r.Get("/history", s.handleHistory)
			})
		})

		r.Get("/flash-deals", s.handleFlashDeals)
		r.Get("/cards", s.handleListCards)
		r.Post("/recommend", s.handleRecommend)
		r.Get("/admin/status", s.handleAdminStatus)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
