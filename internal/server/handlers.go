package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"baobab/internal/cleaner"
	"baobab/internal/clusterer"
	"baobab/internal/core"
	"baobab/internal/enrich"
	"baobab/internal/extractor"
	"baobab/internal/feedparser"
	"baobab/internal/keywords"
	"baobab/internal/quality"
	"baobab/internal/ranker"
	"baobab/internal/search"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "baobab-news-api",
	})
}

type parseFeedRequest struct {
	XML    string      `json:"xml"`
	Source core.Source `json:"source"`
}

// handleParseFeed handles POST /rss/parse.
func (s *Server) handleParseFeed(w http.ResponseWriter, r *http.Request) {
	var req parseFeedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	result, err := feedparser.Parse(req.XML, req.Source)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type cleanContentRequest struct {
	HTML    string          `json:"html"`
	Options cleaner.Options `json:"options"`
}

// handleCleanContent handles POST /content/clean.
func (s *Server) handleCleanContent(w http.ResponseWriter, r *http.Request) {
	var req cleanContentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.respondJSON(w, http.StatusOK, cleaner.Clean(req.HTML, req.Options))
}

type scrapeRequest struct {
	URL string `json:"url"`
}

type scrapeResponse struct {
	extractor.Result
	URL string `json:"url"`
}

// handleScrapeArticle handles POST /content/scrape: fetch the page and
// extract its article content.
func (s *Server) handleScrapeArticle(w http.ResponseWriter, r *http.Request) {
	if s.components.Fetcher == nil {
		s.respondError(w, http.StatusServiceUnavailable, "fetcher not configured")
		return
	}
	var req scrapeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		s.respondError(w, http.StatusBadRequest, "url must be absolute")
		return
	}

	body, err := s.components.Fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	result, err := extractor.Extract(string(body), req.URL)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, scrapeResponse{Result: result, URL: req.URL})
}

// handleProcessArticle handles POST /content/process, the full
// enrichment pipeline for one article.
func (s *Server) handleProcessArticle(w http.ResponseWriter, r *http.Request) {
	if s.components.Pipeline == nil {
		s.respondError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	var req enrich.Request
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.respondJSON(w, http.StatusOK, s.components.Pipeline.Process(r.Context(), req))
}

// handleExtractKeywords handles POST /keywords/extract.
func (s *Server) handleExtractKeywords(w http.ResponseWriter, r *http.Request) {
	if s.components.Keywords == nil {
		s.respondError(w, http.StatusServiceUnavailable, "keyword extractor not configured")
		return
	}
	var req keywords.Request
	if !s.decodeBody(w, r, &req) {
		return
	}
	extracted := s.components.Keywords.Extract(r.Context(), req)
	s.respondJSON(w, http.StatusOK, map[string]any{"keywords": extracted})
}

type scoreRequest struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

// handleScoreQuality handles POST /quality/score.
func (s *Server) handleScoreQuality(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.respondJSON(w, http.StatusOK, quality.Score(req.Content, req.Title))
}

type clusterRequest struct {
	Articles []core.Article   `json:"articles"`
	Config   clusterer.Config `json:"config"`
}

// handleClusterArticles handles POST /clustering/cluster.
func (s *Server) handleClusterArticles(w http.ResponseWriter, r *http.Request) {
	if s.components.Clusterer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "clusterer not configured")
		return
	}
	var req clusterRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.respondJSON(w, http.StatusOK, s.components.Clusterer.Cluster(r.Context(), req.Articles, req.Config))
}

type searchRequest struct {
	Query   string         `json:"query"`
	Options search.Options `json:"options"`
}

// handleSearch handles POST /search/query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.components.Search == nil {
		s.respondError(w, http.StatusServiceUnavailable, "search not configured")
		return
	}
	var req searchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.respondJSON(w, http.StatusOK, s.components.Search.Search(r.Context(), req.Query, req.Options))
}

type rankRequest struct {
	Articles    []core.Article   `json:"articles"`
	Preferences core.Preferences `json:"preferences"`
}

// handleRankFeed handles POST /feed/rank.
func (s *Server) handleRankFeed(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	ranked := ranker.Rank(req.Articles, req.Preferences)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"articles": ranked,
		"count":    len(ranked),
	})
}

// handleCollectFeeds handles POST /feed/collect, the manual collection
// trigger.
func (s *Server) handleCollectFeeds(w http.ResponseWriter, r *http.Request) {
	if s.components.Collector == nil {
		s.respondError(w, http.StatusServiceUnavailable, "collector not configured")
		return
	}
	summary, err := s.components.Collector.Collect(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

// handleSyncEdgeCache handles POST /cache/sync, the manual replication
// trigger.
func (s *Server) handleSyncEdgeCache(w http.ResponseWriter, r *http.Request) {
	if s.components.Syncer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "syncer not configured")
		return
	}
	s.respondJSON(w, http.StatusOK, s.components.Syncer.Sync(r.Context()))
}

// handleTrending handles GET /trending and GET /trending/{country}.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if s.components.Trending == nil {
		s.respondError(w, http.StatusServiceUnavailable, "trending not configured")
		return
	}
	country := strings.ToUpper(chi.URLParam(r, "country"))
	s.respondJSON(w, http.StatusOK, s.components.Trending.Get(r.Context(), country))
}

// handleSourceHealth handles GET /sources/health.
func (s *Server) handleSourceHealth(w http.ResponseWriter, r *http.Request) {
	if s.components.Health == nil {
		s.respondError(w, http.StatusServiceUnavailable, "health monitor not configured")
		return
	}
	sources, err := s.components.Health.HealthSummary(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}

// handleSourceAudit handles POST /sources/audit, the manual audit
// trigger.
func (s *Server) handleSourceAudit(w http.ResponseWriter, r *http.Request) {
	if s.components.Health == nil {
		s.respondError(w, http.StatusServiceUnavailable, "health monitor not configured")
		return
	}
	result, err := s.components.Health.Audit(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleStats handles GET /analytics/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.components.Analytics == nil {
		s.respondError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}
	stats, err := s.components.Analytics.EnhancedStats(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

// handleTrendingCategories handles GET /analytics/trending-categories.
func (s *Server) handleTrendingCategories(w http.ResponseWriter, r *http.Request) {
	if s.components.Analytics == nil {
		s.respondError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	categories, err := s.components.Analytics.TrendingCategories(r.Context(), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"trending": categories})
}

// handleContentInsights handles GET /analytics/insights.
func (s *Server) handleContentInsights(w http.ResponseWriter, r *http.Request) {
	if s.components.Analytics == nil {
		s.respondError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}
	insights, err := s.components.Analytics.ContentInsights(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, insights)
}

// decodeBody parses a JSON request body. An empty body decodes to the
// zero value; malformed JSON is a 400.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, out); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
