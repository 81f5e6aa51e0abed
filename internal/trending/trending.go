// Package trending computes ranked trending topics from recent article
// engagement. Topics are data-driven: keyword link counts weighted by a
// logarithm of engagement, no model calls involved. Snapshots are cached
// in the KV store and refreshed on a schedule.
package trending

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/kvstore"
	"baobab/internal/logger"
)

const (
	windowHours = 24
	maxTopics   = 20
	maxArticles = 500
	maxLinks    = 2000
	cacheTTL    = 30 * time.Minute
)

// Countries that get their own trending snapshot alongside the global one.
var snapshotCountries = []string{"ZW", "ZA", "KE", "NG", "GH", "TZ"}

// RefreshResult is the output of one refresh cycle.
type RefreshResult struct {
	Global    []core.TrendingTopic            `json:"global"`
	Countries map[string][]core.TrendingTopic `json:"countries"`
	UpdatedAt string                          `json:"updated_at"`
}

// Engine computes and caches trending topics.
type Engine struct {
	store docstore.Store
	kv    kvstore.Store
}

// New builds a trending engine. kv may be nil; snapshots are then
// computed live on every read.
func New(store docstore.Store, kv kvstore.Store) *Engine {
	return &Engine{store: store, kv: kv}
}

// Refresh recomputes the global and per-country snapshots and caches
// them with a 30-minute TTL. Cache write failures are logged, not fatal.
func (e *Engine) Refresh(ctx context.Context) RefreshResult {
	result := RefreshResult{
		Global:    e.computeTopics(ctx, ""),
		Countries: make(map[string][]core.TrendingTopic),
		UpdatedAt: core.NowISO(),
	}
	for _, country := range snapshotCountries {
		topics := e.computeTopics(ctx, country)
		if len(topics) > 0 {
			result.Countries[country] = topics
		}
	}

	if e.kv == nil {
		return result
	}
	e.cacheSnapshot(ctx, "trending:global", core.TrendingSnapshot{
		Topics:    result.Global,
		UpdatedAt: result.UpdatedAt,
	})
	for country, topics := range result.Countries {
		e.cacheSnapshot(ctx, "trending:"+country, core.TrendingSnapshot{
			Topics:    topics,
			UpdatedAt: result.UpdatedAt,
		})
	}
	return result
}

// Get returns the trending snapshot for a country ("" for global),
// reading through the KV cache and computing live on a miss.
func (e *Engine) Get(ctx context.Context, countryID string) core.TrendingSnapshot {
	key := "trending:global"
	if countryID != "" {
		key = "trending:" + countryID
	}

	if e.kv != nil {
		if cached, err := e.kv.Get(ctx, key); err == nil && cached != "" {
			var snapshot core.TrendingSnapshot
			if err := json.Unmarshal([]byte(cached), &snapshot); err == nil {
				return snapshot
			}
			logger.Warn("discarding unreadable trending snapshot", "key", key)
		}
	}

	return core.TrendingSnapshot{
		Topics:    e.computeTopics(ctx, countryID),
		UpdatedAt: core.NowISO(),
	}
}

func (e *Engine) cacheSnapshot(ctx context.Context, key string, snapshot core.TrendingSnapshot) {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := e.kv.Set(ctx, key, string(encoded), cacheTTL); err != nil {
		logger.Warn("trending cache write failed", "key", key, "error", err)
	}
}

type topicAccumulator struct {
	keywordID    string
	articleCount int
	views        int
	likes        int
	bookmarks    int
}

// computeTopics aggregates keyword links over the last 24 hours of
// articles. weighted_score is article_count * (1 + log10(engagement+1))
// so breadth of coverage dominates and viral outliers saturate. Any
// store failure yields an empty list rather than an error.
func (e *Engine) computeTopics(ctx context.Context, countryID string) []core.TrendingTopic {
	filter := docstore.M{"published_at": docstore.M{"$gte": core.HoursAgoISO(windowHours)}}
	if countryID != "" {
		filter["country_id"] = countryID
	}

	raw, err := e.store.Find(ctx, docstore.Articles, docstore.Query{Filter: filter, Limit: maxArticles})
	if err != nil {
		logger.Warn("trending article load failed", "error", err)
		return []core.TrendingTopic{}
	}
	articles, err := docstore.Decode[core.Article](raw)
	if err != nil || len(articles) == 0 {
		return []core.TrendingTopic{}
	}

	byArticle := make(map[string]core.Article, len(articles))
	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		byArticle[a.ID] = a
		ids = append(ids, a.ID)
	}

	raw, err = e.store.Find(ctx, docstore.KeywordLinks, docstore.Query{
		Filter: docstore.M{"article_id": docstore.M{"$in": ids}},
		Limit:  maxLinks,
	})
	if err != nil {
		logger.Warn("trending keyword link load failed", "error", err)
		return []core.TrendingTopic{}
	}
	links, err := docstore.Decode[core.KeywordLink](raw)
	if err != nil || len(links) == 0 {
		return []core.TrendingTopic{}
	}

	// Each link counts its article's engagement once, so a keyword
	// shared by many articles accumulates all of their engagement.
	accumulators := make(map[string]*topicAccumulator)
	for _, link := range links {
		article, ok := byArticle[link.ArticleID]
		if !ok {
			continue
		}
		acc := accumulators[link.KeywordID]
		if acc == nil {
			acc = &topicAccumulator{keywordID: link.KeywordID}
			accumulators[link.KeywordID] = acc
		}
		acc.articleCount++
		acc.views += article.ViewCount
		acc.likes += article.LikeCount
		acc.bookmarks += article.BookmarkCount
	}

	ranked := make([]core.TrendingTopic, 0, len(accumulators))
	keywordIDs := make([]string, 0, len(accumulators))
	byKeywordID := make(map[string]int, len(accumulators))
	for _, acc := range accumulators {
		engagement := core.Engagement(acc.views, acc.likes, acc.bookmarks)
		weighted := float64(acc.articleCount) * (1 + math.Log10(float64(engagement)+1))
		byKeywordID[acc.keywordID] = len(ranked)
		keywordIDs = append(keywordIDs, acc.keywordID)
		ranked = append(ranked, core.TrendingTopic{
			Keyword:         acc.keywordID,
			ArticleCount:    acc.articleCount,
			EngagementScore: round1(float64(engagement)),
			Score:           round2(weighted),
		})
	}

	e.resolveNames(ctx, keywordIDs, byKeywordID, ranked)

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > maxTopics {
		ranked = ranked[:maxTopics]
	}
	return ranked
}

// resolveNames swaps keyword ids for dictionary names where the keyword
// still exists; deleted keywords keep their id as the display value.
func (e *Engine) resolveNames(ctx context.Context, keywordIDs []string, byKeywordID map[string]int, ranked []core.TrendingTopic) {
	if len(keywordIDs) == 0 {
		return
	}
	raw, err := e.store.Find(ctx, docstore.Keywords, docstore.Query{
		Filter: docstore.M{"id": docstore.M{"$in": keywordIDs}},
		Limit:  len(keywordIDs),
	})
	if err != nil {
		logger.Warn("trending keyword name lookup failed", "error", err)
		return
	}
	keywords, err := docstore.Decode[core.Keyword](raw)
	if err != nil {
		return
	}
	for _, k := range keywords {
		if idx, ok := byKeywordID[k.ID]; ok && k.Name != "" {
			ranked[idx].Keyword = k.Name
		}
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
