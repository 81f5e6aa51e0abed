// Package analytics aggregates platform statistics for the frontend:
// article counts with recency windows, trending categories with growth
// rates, and content insights over the last day of publishing.
package analytics

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"baobab/internal/core"
	"baobab/internal/docstore"
)

const (
	statsCategoryLimit = 20
	topArticleLimit    = 10
	productivityLimit  = 15
	insightArticleCap  = 500
)

var countryCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Stats is the platform-wide dashboard summary.
type Stats struct {
	TotalArticles int    `json:"total_articles"`
	ActiveSources int    `json:"active_sources"`
	Categories    int    `json:"categories"`
	TodayArticles int    `json:"today_articles"`
	WeekArticles  int    `json:"week_articles"`
	Timestamp     string `json:"timestamp"`
}

// TrendingCategory is one category ranked by recent output and
// engagement.
type TrendingCategory struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	ArticleCount int     `json:"article_count"`
	GrowthRate   float64 `json:"growth_rate"`
	Engagement   int     `json:"engagement"`
}

// TopArticle is a high-engagement article in the insight window.
type TopArticle struct {
	Title           string `json:"title"`
	Source          string `json:"source"`
	CategoryID      string `json:"category_id,omitempty"`
	CountryID       string `json:"country_id,omitempty"`
	EngagementScore int    `json:"engagement_score"`
	ViewCount       int    `json:"view_count"`
	LikeCount       int    `json:"like_count"`
	PublishedAt     string `json:"published_at,omitempty"`
}

// SourceProductivity summarises one source's last-day output.
type SourceProductivity struct {
	Source        string  `json:"source"`
	ArticleCount  int     `json:"article_count"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// Insights is the content-insight report.
type Insights struct {
	TopArticles        []TopArticle         `json:"top_articles"`
	SourceProductivity []SourceProductivity `json:"source_productivity"`
	CountryID          string               `json:"country_id,omitempty"`
	Timestamp          string               `json:"timestamp"`
}

// Reporter answers analytics queries against the primary store.
type Reporter struct {
	store docstore.Store
}

// New builds a reporter.
func New(store docstore.Store) *Reporter {
	return &Reporter{store: store}
}

// EnhancedStats aggregates the dashboard counters.
func (r *Reporter) EnhancedStats(ctx context.Context) (Stats, error) {
	total, err := r.store.Count(ctx, docstore.Articles, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count articles: %w", err)
	}
	active, err := r.store.Count(ctx, docstore.Sources, docstore.M{"enabled": true})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count sources: %w", err)
	}
	today, err := r.store.Count(ctx, docstore.Articles, docstore.M{
		"published_at": docstore.M{"$gte": core.HoursAgoISO(24)},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count today's articles: %w", err)
	}
	week, err := r.store.Count(ctx, docstore.Articles, docstore.M{
		"published_at": docstore.M{"$gte": core.HoursAgoISO(7 * 24)},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count week's articles: %w", err)
	}

	rows, err := r.store.Aggregate(ctx, docstore.Articles, []docstore.M{
		{"$group": docstore.M{"_id": "$category_id", "count": docstore.M{"$sum": 1}}},
		{"$sort": docstore.M{"count": -1}},
		{"$limit": statsCategoryLimit},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate categories: %w", err)
	}

	return Stats{
		TotalArticles: total,
		ActiveSources: active,
		Categories:    len(rows),
		TodayArticles: today,
		WeekArticles:  week,
		Timestamp:     core.NowISO(),
	}, nil
}

type categoryRow struct {
	ID           string  `json:"id"`
	ArticleCount float64 `json:"article_count"`
	TotalViews   float64 `json:"total_views"`
	TotalLikes   float64 `json:"total_likes"`
}

// TrendingCategories ranks categories by last-day output and engagement,
// with growth relative to the previous day:
// (today - yesterday) / max(yesterday, 1).
func (r *Reporter) TrendingCategories(ctx context.Context, limit int) ([]TrendingCategory, error) {
	if limit <= 0 {
		limit = 8
	}
	dayAgo := core.HoursAgoISO(24)
	twoDaysAgo := core.HoursAgoISO(48)

	raw, err := r.store.Aggregate(ctx, docstore.Articles, []docstore.M{
		{"$match": docstore.M{"published_at": docstore.M{"$gte": dayAgo}}},
		{"$group": docstore.M{
			"_id":           "$category_id",
			"article_count": docstore.M{"$sum": 1},
			"total_views":   docstore.M{"$sum": "$view_count"},
			"total_likes":   docstore.M{"$sum": "$like_count"},
		}},
		{"$sort": docstore.M{"article_count": -1}},
		{"$limit": limit * 2},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate recent categories: %w", err)
	}
	recent, err := docstore.Decode[categoryRow](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode category rows: %w", err)
	}

	raw, err = r.store.Aggregate(ctx, docstore.Articles, []docstore.M{
		{"$match": docstore.M{"published_at": docstore.M{"$gte": twoDaysAgo, "$lt": dayAgo}}},
		{"$group": docstore.M{"_id": "$category_id", "article_count": docstore.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate previous categories: %w", err)
	}
	previous, err := docstore.Decode[categoryRow](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode previous rows: %w", err)
	}
	prevCounts := make(map[string]int, len(previous))
	for _, row := range previous {
		prevCounts[normaliseCategoryID(row.ID)] = int(row.ArticleCount)
	}

	if len(recent) > limit {
		recent = recent[:limit]
	}
	trending := make([]TrendingCategory, 0, len(recent))
	for _, row := range recent {
		id := normaliseCategoryID(row.ID)
		count := int(row.ArticleCount)
		prev := prevCounts[id]
		growth := float64(count-prev) / float64(max(prev, 1))

		trending = append(trending, TrendingCategory{
			ID:           id,
			Name:         CategoryDisplayName(id),
			Slug:         id,
			ArticleCount: count,
			GrowthRate:   round2(growth),
			Engagement:   int(row.TotalViews) + int(row.TotalLikes)*3,
		})
	}

	// Engagement-weighted re-rank: volume times engagement, floor 1.
	sort.SliceStable(trending, func(i, j int) bool {
		return trending[i].ArticleCount*max(trending[i].Engagement, 1) >
			trending[j].ArticleCount*max(trending[j].Engagement, 1)
	})
	if len(trending) > limit {
		trending = trending[:limit]
	}
	return trending, nil
}

// ContentInsights reports top articles by engagement and per-source
// productivity over the last day, optionally scoped to one country.
func (r *Reporter) ContentInsights(ctx context.Context, countryID string) (Insights, error) {
	filter := docstore.M{"published_at": docstore.M{"$gte": core.HoursAgoISO(24)}}
	if countryID != "" && countryCodeRe.MatchString(countryID) {
		filter["country_id"] = countryID
	} else {
		countryID = ""
	}

	raw, err := r.store.Find(ctx, docstore.Articles, docstore.Query{
		Filter: filter,
		Projection: docstore.M{
			"title": 1, "source": 1, "category_id": 1, "country_id": 1,
			"view_count": 1, "like_count": 1, "bookmark_count": 1, "published_at": 1,
		},
		Limit: insightArticleCap,
	})
	if err != nil {
		return Insights{}, fmt.Errorf("failed to load insight articles: %w", err)
	}
	articles, err := docstore.Decode[core.Article](raw)
	if err != nil {
		return Insights{}, fmt.Errorf("failed to decode insight articles: %w", err)
	}

	top := make([]TopArticle, 0, len(articles))
	perSource := make(map[string]*SourceProductivity)
	for _, a := range articles {
		engagement := core.Engagement(a.ViewCount, a.LikeCount, a.BookmarkCount)
		top = append(top, TopArticle{
			Title:           a.Title,
			Source:          a.Source,
			CategoryID:      a.CategoryID,
			CountryID:       a.CountryID,
			EngagementScore: engagement,
			ViewCount:       a.ViewCount,
			LikeCount:       a.LikeCount,
			PublishedAt:     a.PublishedAt,
		})

		prod := perSource[a.Source]
		if prod == nil {
			prod = &SourceProductivity{Source: a.Source}
			perSource[a.Source] = prod
		}
		prod.ArticleCount++
		prod.AvgEngagement += float64(a.ViewCount + a.LikeCount*3)
	}

	sort.SliceStable(top, func(i, j int) bool {
		return top[i].EngagementScore > top[j].EngagementScore
	})
	if len(top) > topArticleLimit {
		top = top[:topArticleLimit]
	}

	productivity := make([]SourceProductivity, 0, len(perSource))
	for _, prod := range perSource {
		prod.AvgEngagement = round2(prod.AvgEngagement / float64(prod.ArticleCount))
		productivity = append(productivity, *prod)
	}
	sort.SliceStable(productivity, func(i, j int) bool {
		if productivity[i].ArticleCount != productivity[j].ArticleCount {
			return productivity[i].ArticleCount > productivity[j].ArticleCount
		}
		return productivity[i].Source < productivity[j].Source
	})
	if len(productivity) > productivityLimit {
		productivity = productivity[:productivityLimit]
	}

	return Insights{
		TopArticles:        top,
		SourceProductivity: productivity,
		CountryID:          countryID,
		Timestamp:          core.NowISO(),
	}, nil
}

// Display names for the fixed category set; anything else is
// title-cased from its id.
var categoryNames = map[string]string{
	"politics":      "Politics",
	"business":      "Business",
	"technology":    "Technology",
	"sports":        "Sports",
	"entertainment": "Entertainment",
	"health":        "Health",
	"science":       "Science",
	"world":         "World",
	"opinion":       "Opinion",
	"lifestyle":     "Lifestyle",
	"education":     "Education",
	"environment":   "Environment",
	"agriculture":   "Agriculture",
	"mining":        "Mining",
}

// CategoryDisplayName maps a category id to its display name.
func CategoryDisplayName(id string) string {
	if name, ok := categoryNames[id]; ok {
		return name
	}
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func normaliseCategoryID(id string) string {
	if id == "" || id == "<nil>" {
		return "uncategorized"
	}
	return id
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
