// Package edgesync replicates recent primary-store data into the SQLite
// edge cache. The window overlaps the sync cadence so no write is
// missed; per-row failures are counted and never abort the run.
package edgesync

import (
	"context"
	"time"

	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/edgecache"
	"baobab/internal/logger"
)

const (
	// Articles created or updated inside this window are re-synced.
	syncWindow = 2 * time.Hour

	maxArticles   = 200
	maxKeywords   = 500
	maxCategories = 50
)

// Stats summarises one sync run.
type Stats struct {
	Articles   int   `json:"articles"`
	Keywords   int   `json:"keywords"`
	Categories int   `json:"categories"`
	Errors     int   `json:"errors"`
	ElapsedMS  int64 `json:"elapsed_ms"`
}

// Syncer copies recent data from the primary store to the edge cache.
type Syncer struct {
	store docstore.Store
	cache edgecache.Cache
}

// New builds a syncer.
func New(store docstore.Store, cache edgecache.Cache) *Syncer {
	return &Syncer{store: store, cache: cache}
}

// Sync replicates the last two hours of articles plus the keyword and
// category dictionaries into the edge cache.
func (s *Syncer) Sync(ctx context.Context) Stats {
	start := time.Now()
	stats := Stats{}

	s.syncArticles(ctx, &stats)
	s.syncKeywords(ctx, &stats)
	s.syncCategories(ctx, &stats)

	stats.ElapsedMS = time.Since(start).Milliseconds()
	logger.Info("edge sync completed",
		"articles", stats.Articles,
		"keywords", stats.Keywords,
		"categories", stats.Categories,
		"errors", stats.Errors,
		"elapsed_ms", stats.ElapsedMS)
	return stats
}

func (s *Syncer) syncArticles(ctx context.Context, stats *Stats) {
	since := time.Now().UTC().Add(-syncWindow).Format(time.RFC3339)

	raw, err := s.store.Find(ctx, docstore.Articles, docstore.Query{
		Filter: docstore.M{"$or": []docstore.M{
			{"created_at": docstore.M{"$gte": since}},
			{"updated_at": docstore.M{"$gte": since}},
		}},
		Sort:  docstore.Sort{{Key: "published_at", Dir: -1}},
		Limit: maxArticles,
	})
	if err != nil {
		logger.Warn("article sync query failed", "error", err)
		stats.Errors++
		return
	}
	articles, err := docstore.Decode[core.Article](raw)
	if err != nil {
		logger.Warn("article sync decode failed", "error", err)
		stats.Errors++
		return
	}

	for _, article := range articles {
		if article.ID == "" {
			continue
		}
		if err := s.cache.UpsertArticle(ctx, article); err != nil {
			stats.Errors++
			if stats.Errors <= 3 {
				logger.Warn("article upsert failed", "article_id", article.ID, "error", err)
			}
			continue
		}
		stats.Articles++
	}
}

func (s *Syncer) syncKeywords(ctx context.Context, stats *Stats) {
	raw, err := s.store.Find(ctx, docstore.Keywords, docstore.Query{
		Sort:  docstore.Sort{{Key: "usage_count", Dir: -1}},
		Limit: maxKeywords,
	})
	if err != nil {
		logger.Warn("keyword sync query failed", "error", err)
		return
	}
	keywords, err := docstore.Decode[core.Keyword](raw)
	if err != nil {
		logger.Warn("keyword sync decode failed", "error", err)
		return
	}

	for _, kw := range keywords {
		if kw.ID == "" {
			continue
		}
		if err := s.cache.UpsertKeyword(ctx, kw); err != nil {
			stats.Errors++
			continue
		}
		stats.Keywords++
	}
}

func (s *Syncer) syncCategories(ctx context.Context, stats *Stats) {
	raw, err := s.store.Find(ctx, docstore.Categories, docstore.Query{Limit: maxCategories})
	if err != nil {
		logger.Warn("category sync query failed", "error", err)
		return
	}
	categories, err := docstore.Decode[core.Category](raw)
	if err != nil {
		logger.Warn("category sync decode failed", "error", err)
		return
	}

	for _, cat := range categories {
		if cat.ID == "" {
			continue
		}
		if err := s.cache.UpsertCategory(ctx, cat); err != nil {
			stats.Errors++
			continue
		}
		stats.Categories++
	}
}
