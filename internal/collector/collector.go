// Package collector is the batch ingestion pipeline: load enabled
// sources in priority order, skip the ones not due, fetch and parse the
// due feeds in parallel batches, deduplicate, and store new articles.
// One bad source never fails the run; its failure is recorded against
// its health counters instead.
package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/enrich"
	"baobab/internal/feedparser"
	"baobab/internal/fetch"
	"baobab/internal/logger"
	"baobab/internal/sourcehealth"
)

// Country processing priority. The primary market is first; unknown
// countries sort last.
var countryPriority = map[string]int{
	"ZW": 1,
	"ZA": 2, "KE": 3, "NG": 4, "GH": 5,
	"TZ": 6, "UG": 7, "RW": 8, "ET": 9,
	"BW": 10, "ZM": 11, "MW": 12,
	"EG": 13, "MA": 14, "NA": 15, "MZ": 16,
}

const batchSize = 10

// Summary reports one collection run.
type Summary struct {
	SourcesChecked int   `json:"sources_checked"`
	NewArticles    int   `json:"new_articles"`
	Errors         int   `json:"errors"`
	ElapsedMS      int64 `json:"elapsed_ms"`
}

// Collector runs the ingestion pipeline.
type Collector struct {
	store    docstore.Store
	fetcher  fetch.Fetcher
	pipeline *enrich.Pipeline
	now      func() time.Time
}

// New builds a collector. pipeline may be nil; articles are then stored
// with ai_processed=false for later enrichment.
func New(store docstore.Store, fetcher fetch.Fetcher, pipeline *enrich.Pipeline) *Collector {
	return &Collector{store: store, fetcher: fetcher, pipeline: pipeline, now: time.Now}
}

// Collect runs one full collection pass over all due sources.
func (c *Collector) Collect(ctx context.Context) (Summary, error) {
	start := c.now()

	sources, err := c.loadSources(ctx)
	if err != nil {
		return Summary{}, err
	}

	due := make([]core.Source, 0, len(sources))
	for _, s := range sources {
		if sourcehealth.ShouldFetch(s, c.now()) {
			due = append(due, s)
		}
	}
	logger.Info("collection starting", "due", len(due), "total", len(sources))

	type sourceResult struct {
		newArticles int
		err         error
	}

	summary := Summary{SourcesChecked: len(due)}
	for batchStart := 0; batchStart < len(due); batchStart += batchSize {
		end := batchStart + batchSize
		if end > len(due) {
			end = len(due)
		}
		batch := due[batchStart:end]
		results := make([]sourceResult, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, source := range batch {
			i, source := i, source
			g.Go(func() error {
				n, err := c.processSource(gctx, source)
				results[i] = sourceResult{newArticles: n, err: err}
				return nil
			})
		}
		_ = g.Wait()

		for i, source := range batch {
			if results[i].err != nil {
				logger.Warn("source collection failed", "source", source.Name, "error", results[i].err)
				c.recordFailure(ctx, source.ID, results[i].err)
				summary.Errors++
				continue
			}
			summary.NewArticles += results[i].newArticles
			c.recordSuccess(ctx, source.ID)
		}
	}

	summary.ElapsedMS = time.Since(start).Milliseconds()
	logger.Info("collection finished",
		"sources_checked", summary.SourcesChecked,
		"new_articles", summary.NewArticles,
		"errors", summary.Errors,
		"elapsed_ms", summary.ElapsedMS)
	return summary, nil
}

// loadSources returns enabled sources ordered by country priority, then
// by failure count so healthy feeds go first within a country.
func (c *Collector) loadSources(ctx context.Context) ([]core.Source, error) {
	raw, err := c.store.Find(ctx, docstore.Sources, docstore.Query{
		Filter: docstore.M{"enabled": true},
		Sort:   docstore.Sort{{Key: "country_id", Dir: 1}},
		Limit:  500,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	sources, err := docstore.Decode[core.Source](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}

	sort.SliceStable(sources, func(i, j int) bool {
		pi, pj := priorityOf(sources[i].CountryID), priorityOf(sources[j].CountryID)
		if pi != pj {
			return pi < pj
		}
		return sources[i].ConsecutiveFailures < sources[j].ConsecutiveFailures
	})
	return sources, nil
}

func priorityOf(countryID string) int {
	if p, ok := countryPriority[countryID]; ok {
		return p
	}
	return 99
}

// processSource fetches, parses, deduplicates and stores one feed,
// returning the number of new articles.
func (c *Collector) processSource(ctx context.Context, source core.Source) (int, error) {
	if source.URL == "" {
		return 0, fmt.Errorf("source %s has no feed URL", source.ID)
	}

	body, err := c.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		return 0, fmt.Errorf("fetch failed: %w", err)
	}

	parsed, err := feedparser.Parse(string(body), source)
	if err != nil {
		return 0, err
	}
	if len(parsed.Articles) == 0 {
		return 0, nil
	}

	fresh, err := c.deduplicate(ctx, parsed.Articles)
	if err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	now := core.NowISO()
	for i := range fresh {
		c.stamp(ctx, &fresh[i], now)
	}

	if err := c.store.InsertMany(ctx, docstore.Articles, fresh); err != nil {
		return 0, fmt.Errorf("insert failed: %w", err)
	}
	return len(fresh), nil
}

// stamp finalises a new article before insert: generated id, content
// hash, created_at and the enrichment results when a pipeline is
// attached. Assigning the id here keeps the embedding key stable across
// stores.
func (c *Collector) stamp(ctx context.Context, article *core.Article, now string) {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	article.CreatedAt = now
	article.AIProcessed = false

	content := article.Content
	if content == "" {
		content = article.Description
	}

	if c.pipeline == nil {
		article.ContentHash = enrich.ContentHash(article.Title, content)
		return
	}

	result := c.pipeline.Process(ctx, enrich.Request{
		ID:       article.ID,
		Title:    article.Title,
		Content:  content,
		Category: article.CategoryID,
		Country:  article.CountryID,
	})
	article.ContentHash = result.ContentHash
	article.QualityScore = result.QualityScore
	article.AIProcessed = true
	if article.ImageURL == "" && len(result.ExtractedImages) > 0 {
		article.ImageURL = result.ExtractedImages[0]
	}
}

// deduplicate drops articles whose rss_guid or original_url already
// exists in the store.
func (c *Collector) deduplicate(ctx context.Context, articles []core.Article) ([]core.Article, error) {
	guids := make([]string, 0, len(articles))
	urls := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.RSSGuid != "" {
			guids = append(guids, a.RSSGuid)
		}
		if a.OriginalURL != "" {
			urls = append(urls, a.OriginalURL)
		}
	}
	if len(guids) == 0 && len(urls) == 0 {
		return articles, nil
	}

	existingGuids, err := c.existingValues(ctx, "rss_guid", guids)
	if err != nil {
		return nil, err
	}
	existingURLs, err := c.existingValues(ctx, "original_url", urls)
	if err != nil {
		return nil, err
	}

	fresh := make([]core.Article, 0, len(articles))
	for _, a := range articles {
		if existingGuids[a.RSSGuid] || existingURLs[a.OriginalURL] {
			continue
		}
		fresh = append(fresh, a)
	}
	return fresh, nil
}

func (c *Collector) existingValues(ctx context.Context, field string, values []string) (map[string]bool, error) {
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := c.store.Find(ctx, docstore.Articles, docstore.Query{
		Filter:     docstore.M{field: docstore.M{"$in": values}},
		Projection: docstore.M{field: 1},
		Limit:      len(values),
	})
	if err != nil {
		return nil, fmt.Errorf("dedup lookup on %s failed: %w", field, err)
	}
	existing := make(map[string]bool, len(raw))
	for _, v := range docstore.FieldValues(raw, field) {
		existing[v] = true
	}
	return existing, nil
}

// recordSuccess resets the failure counter and stamps fetch times.
func (c *Collector) recordSuccess(ctx context.Context, sourceID string) {
	now := core.NowISO()
	err := c.store.UpdateOne(ctx, docstore.Sources,
		docstore.M{"id": sourceID},
		docstore.M{"$set": docstore.M{
			"consecutive_failures":  0,
			"last_successful_fetch": now,
			"last_fetch_at":         now,
		}},
	)
	if err != nil {
		logger.Warn("health update failed", "source_id", sourceID, "error", err)
	}
}

// recordFailure bumps the failure counter and stores the error.
func (c *Collector) recordFailure(ctx context.Context, sourceID string, cause error) {
	now := core.NowISO()
	err := c.store.UpdateOne(ctx, docstore.Sources,
		docstore.M{"id": sourceID},
		docstore.M{
			"$inc": docstore.M{"consecutive_failures": 1},
			"$set": docstore.M{
				"last_error_at": now,
				"last_fetch_at": now,
				"last_error":    cause.Error(),
			},
		},
	)
	if err != nil {
		logger.Warn("health update failed", "source_id", sourceID, "error", err)
	}
}
