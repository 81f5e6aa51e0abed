// Package search answers article queries. Semantic search embeds the
// query and ranks vector-index matches; LIKE search over the edge cache
// is the fallback when embeddings or the index are unavailable.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/edgecache"
	"baobab/internal/llm"
	"baobab/internal/logger"
	"baobab/internal/vectorindex"
)

// Options narrow a search.
type Options struct {
	Limit           int    `json:"limit"`
	Category        string `json:"category,omitempty"`
	Source          string `json:"source,omitempty"`
	DateFrom        string `json:"date_from,omitempty"`
	DateTo          string `json:"date_to,omitempty"`
	IncludeInsights bool   `json:"include_insights,omitempty"`
}

// ScoredResult is one search hit.
type ScoredResult struct {
	core.Article
	Score float64 `json:"score"`
}

// Insight is an AI-generated note about a result set.
type Insight struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Response is the full search answer.
type Response struct {
	Results  []ScoredResult `json:"results"`
	Insights []Insight      `json:"insights,omitempty"`
	Method   string         `json:"method"`
}

// Engine runs searches over the primary store, edge cache and vector
// index.
type Engine struct {
	store   docstore.Store
	cache   edgecache.Cache
	vectors vectorindex.Index
	ai      llm.Gateway
}

// New builds a search engine. vectors and ai may be nil, which forces
// keyword search.
func New(store docstore.Store, cache edgecache.Cache, vectors vectorindex.Index, ai llm.Gateway) *Engine {
	return &Engine{store: store, cache: cache, vectors: vectors, ai: ai}
}

// Search answers a query. Method reports the path taken: "semantic",
// "keyword", or "none" for an empty query.
func (e *Engine) Search(ctx context.Context, query string, opts Options) Response {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if strings.TrimSpace(query) == "" {
		return Response{Results: []ScoredResult{}, Method: "none"}
	}

	if e.ai != nil && e.vectors != nil {
		if resp, ok := e.semanticSearch(ctx, query, opts); ok {
			return resp
		}
	}

	return Response{Results: e.keywordSearch(ctx, query, opts), Method: "keyword"}
}

func (e *Engine) semanticSearch(ctx context.Context, query string, opts Options) (Response, bool) {
	embedding, err := e.ai.Embed(ctx, query)
	if err != nil {
		logger.Warn("query embedding failed, falling back to keyword", "error", err)
		return Response{}, false
	}

	matches, err := e.vectors.Query(ctx, embedding, opts.Limit*2)
	if err != nil {
		logger.Warn("vector query failed, falling back to keyword", "error", err)
		return Response{}, false
	}
	if len(matches) == 0 {
		return Response{}, false
	}

	scores := make(map[string]float64, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimPrefix(m.ID, "article_")
		scores[id] = m.Score
		ids = append(ids, id)
	}

	articles := e.fetchArticles(ctx, ids, opts)
	results := make([]ScoredResult, 0, len(articles))
	for _, a := range articles {
		results = append(results, ScoredResult{Article: a, Score: scores[a.ID]})
	}
	sortByScore(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	resp := Response{Results: results, Method: "semantic"}
	if opts.IncludeInsights && len(results) > 0 {
		resp.Insights = e.generateInsights(ctx, query, results)
	}
	return resp, true
}

// fetchArticles resolves matched ids to articles, preferring the
// primary store and degrading to the edge cache.
func (e *Engine) fetchArticles(ctx context.Context, ids []string, opts Options) []core.Article {
	filter := docstore.M{"id": docstore.M{"$in": ids}}
	if opts.Category != "" {
		filter["category_id"] = opts.Category
	}
	if opts.Source != "" {
		filter["source"] = opts.Source
	}
	if opts.DateFrom != "" || opts.DateTo != "" {
		dateFilter := docstore.M{}
		if opts.DateFrom != "" {
			dateFilter["$gte"] = opts.DateFrom
		}
		if opts.DateTo != "" {
			dateFilter["$lte"] = opts.DateTo
		}
		filter["published_at"] = dateFilter
	}

	raw, err := e.store.Find(ctx, docstore.Articles, docstore.Query{
		Filter: filter,
		Projection: docstore.M{
			"title": 1, "slug": 1, "description": 1, "source": 1,
			"category_id": 1, "country_id": 1, "published_at": 1,
		},
		// Every vector match is fetched; the limit is applied after the
		// results are ordered by score.
		Limit: len(ids),
	})
	if err == nil {
		if articles, derr := docstore.Decode[core.Article](raw); derr == nil && len(articles) > 0 {
			return articles
		}
	} else {
		logger.Warn("article fetch failed, trying edge cache", "error", err)
	}

	if e.cache == nil {
		return nil
	}
	articles, err := e.cache.ArticlesByIDs(ctx, ids, edgecache.Filter{
		Category: opts.Category,
		Source:   opts.Source,
		DateFrom: opts.DateFrom,
		DateTo:   opts.DateTo,
	})
	if err != nil {
		logger.Warn("edge cache fetch failed", "error", err)
		return nil
	}
	return articles
}

// keywordSearch is the LIKE fallback over the edge cache, newest first,
// every hit scored 1.0.
func (e *Engine) keywordSearch(ctx context.Context, query string, opts Options) []ScoredResult {
	if e.cache == nil {
		return []ScoredResult{}
	}
	articles, err := e.cache.SearchArticles(ctx, query, edgecache.Filter{
		Category: opts.Category,
		Source:   opts.Source,
		DateFrom: opts.DateFrom,
		DateTo:   opts.DateTo,
	}, opts.Limit)
	if err != nil {
		logger.Warn("keyword search failed", "error", err)
		return []ScoredResult{}
	}

	results := make([]ScoredResult, 0, len(articles))
	for _, a := range articles {
		results = append(results, ScoredResult{Article: a, Score: 1.0})
	}
	return results
}

// generateInsights asks the LLM for one short note about the top
// results. Failures return no insights rather than failing the search.
func (e *Engine) generateInsights(ctx context.Context, query string, results []ScoredResult) []Insight {
	top := results
	if len(top) > 5 {
		top = top[:5]
	}
	var titles []string
	for _, r := range top {
		titles = append(titles, "- "+r.Title)
	}

	prompt := fmt.Sprintf(`Based on these search results for %q, provide a brief insight.

Results:
%s

Return JSON: {"type": "summary", "content": "brief insight text", "confidence": 0.8}`,
		query, strings.Join(titles, "\n"))

	var insight Insight
	if err := e.ai.ExtractJSON(ctx, prompt, 200, &insight); err != nil {
		logger.Warn("insight generation failed", "error", err)
		return nil
	}
	return []Insight{insight}
}

func sortByScore(results []ScoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
