// Package server exposes the processing pipeline over HTTP. The backend
// calls these endpoints for parsing, cleaning, enrichment, search,
// ranking and the operational triggers; responses are always JSON.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"baobab/internal/analytics"
	"baobab/internal/clusterer"
	"baobab/internal/collector"
	"baobab/internal/config"
	"baobab/internal/edgesync"
	"baobab/internal/enrich"
	"baobab/internal/fetch"
	"baobab/internal/keywords"
	"baobab/internal/logger"
	"baobab/internal/search"
	"baobab/internal/sourcehealth"
	"baobab/internal/trending"
)

// Components carries the pipeline pieces the handlers dispatch to. Any
// nil component turns its endpoints into 503s.
type Components struct {
	Fetcher   fetch.Fetcher
	Pipeline  *enrich.Pipeline
	Keywords  *keywords.Extractor
	Collector *collector.Collector
	Syncer    *edgesync.Syncer
	Clusterer *clusterer.Clusterer
	Search    *search.Engine
	Trending  *trending.Engine
	Health    *sourcehealth.Monitor
	Analytics *analytics.Reporter
}

// Server is the HTTP front of the processing service.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	components Components
	log        *slog.Logger
}

// New builds the server and its routes.
func New(components Components, cfg config.Server) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		components: components,
		log:        logger.Component("server"),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Post("/rss/parse", s.handleParseFeed)

	s.router.Route("/content", func(r chi.Router) {
		r.Post("/clean", s.handleCleanContent)
		r.Post("/scrape", s.handleScrapeArticle)
		r.Post("/process", s.handleProcessArticle)
	})

	s.router.Post("/keywords/extract", s.handleExtractKeywords)
	s.router.Post("/quality/score", s.handleScoreQuality)
	s.router.Post("/clustering/cluster", s.handleClusterArticles)

	s.router.Post("/search/query", s.handleSearch)
	s.router.Get("/search/trending", s.handleTrending)

	s.router.Route("/feed", func(r chi.Router) {
		r.Post("/rank", s.handleRankFeed)
		r.Post("/collect", s.handleCollectFeeds)
	})

	s.router.Post("/cache/sync", s.handleSyncEdgeCache)

	s.router.Get("/trending", s.handleTrending)
	s.router.Get("/trending/{country}", s.handleTrending)

	s.router.Route("/sources", func(r chi.Router) {
		r.Get("/health", s.handleSourceHealth)
		r.Post("/audit", s.handleSourceAudit)
	})

	s.router.Route("/analytics", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/trending-categories", s.handleTrendingCategories)
		r.Get("/insights", s.handleContentInsights)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusNotFound, map[string]string{
			"error": "Not found",
			"path":  r.URL.Path,
		})
	})
}

// Start runs the listener until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router exposes the mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
