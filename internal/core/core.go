// Package core defines the domain types shared across the processing
// pipeline: publisher sources, articles, the keyword dictionary, and the
// records exchanged by the ranking, clustering and trending engines.
//
// Timestamps are ISO-8601 UTC strings as stored; identifiers are opaque
// strings. The doc-store adapter normalises `_id` to `id` before these
// types ever see a document.
package core

import (
	"regexp"
	"strings"
	"time"
)

// Health status values for a Source.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthFailing  = "failing"
	HealthCritical = "critical"
)

// Source is a publisher feed registered for collection.
type Source struct {
	ID                  string  `json:"id" db:"id"`
	Name                string  `json:"name" db:"name"`
	URL                 string  `json:"url" db:"url"`
	CountryID           string  `json:"country_id" db:"country_id"`
	Category            string  `json:"category" db:"category"`
	Enabled             bool    `json:"enabled" db:"enabled"`
	ConsecutiveFailures int     `json:"consecutive_failures" db:"consecutive_failures"`
	LastSuccessfulFetch string  `json:"last_successful_fetch,omitempty" db:"last_successful_fetch"`
	LastFetchAt         string  `json:"last_fetch_at,omitempty" db:"last_fetch_at"`
	LastErrorAt         string  `json:"last_error_at,omitempty" db:"last_error_at"`
	LastError           string  `json:"last_error,omitempty" db:"last_error"`
	HealthStatus        string  `json:"health_status,omitempty" db:"health_status"`
	SourceQualityScore  float64 `json:"source_quality_score,omitempty" db:"source_quality_score"`
	AvgArticleQuality   float64 `json:"avg_article_quality,omitempty" db:"avg_article_quality"`
	AvgEngagement       float64 `json:"avg_engagement,omitempty" db:"avg_engagement"`
	ArticleCount7d      int     `json:"article_count_7d,omitempty" db:"article_count_7d"`
}

// Article is a deduplicated, enriched news item.
type Article struct {
	ID                 string  `json:"id,omitempty" db:"id"`
	Title              string  `json:"title" db:"title"`
	Slug               string  `json:"slug" db:"slug"`
	Description        string  `json:"description,omitempty" db:"description"`
	Content            string  `json:"content,omitempty" db:"content"`
	Author             string  `json:"author,omitempty" db:"author"`
	Source             string  `json:"source" db:"source"`
	SourceID           string  `json:"source_id" db:"source_id"`
	CategoryID         string  `json:"category_id,omitempty" db:"category_id"`
	CountryID          string  `json:"country_id,omitempty" db:"country_id"`
	PublishedAt        string  `json:"published_at,omitempty" db:"published_at"`
	ImageURL           string  `json:"image_url,omitempty" db:"image_url"`
	OriginalURL        string  `json:"original_url" db:"original_url"`
	RSSGuid            string  `json:"rss_guid,omitempty" db:"rss_guid"`
	ContentHash        string  `json:"content_hash,omitempty" db:"content_hash"`
	ViewCount          int     `json:"view_count" db:"view_count"`
	LikeCount          int     `json:"like_count" db:"like_count"`
	BookmarkCount      int     `json:"bookmark_count" db:"bookmark_count"`
	QualityScore       float64 `json:"quality_score,omitempty" db:"quality_score"`
	AIProcessed        bool    `json:"ai_processed" db:"ai_processed"`
	CreatedAt          string  `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt          string  `json:"updated_at,omitempty" db:"updated_at"`
	SourceQualityScore float64 `json:"source_quality_score,omitempty" db:"-"`
}

// Keyword is a controlled-vocabulary term. Names are unique
// case-insensitively.
type Keyword struct {
	ID             string  `json:"id,omitempty" db:"id"`
	Name           string  `json:"name" db:"name"`
	CategoryID     string  `json:"category_id,omitempty" db:"category_id"`
	RelevanceScore float64 `json:"relevance_score,omitempty" db:"relevance_score"`
	UsageCount     int     `json:"usage_count" db:"usage_count"`
	Enabled        bool    `json:"enabled" db:"enabled"`
}

// Category is a display grouping for articles and keywords.
type Category struct {
	ID          string `json:"id,omitempty" db:"id"`
	Name        string `json:"name" db:"name"`
	Emoji       string `json:"emoji,omitempty" db:"emoji"`
	Description string `json:"description,omitempty" db:"description"`
	Enabled     bool   `json:"enabled" db:"enabled"`
	Color       string `json:"color,omitempty" db:"color"`
}

// KeywordLink relates an article to a dictionary keyword.
type KeywordLink struct {
	ArticleID      string  `json:"article_id" db:"article_id"`
	KeywordID      string  `json:"keyword_id" db:"keyword_id"`
	RelevanceScore float64 `json:"relevance_score" db:"relevance_score"`
}

// ExtractedKeyword is one keyword-extractor hit for an article.
type ExtractedKeyword struct {
	Keyword    string  `json:"keyword"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category,omitempty"`
}

// TrendingTopic is one entry of a trending snapshot.
type TrendingTopic struct {
	Keyword         string  `json:"keyword"`
	ArticleCount    int     `json:"article_count"`
	EngagementScore float64 `json:"engagement_score"`
	Score           float64 `json:"score"`
}

// TrendingSnapshot is a per-scope ranked topic list cached in KV.
type TrendingSnapshot struct {
	Topics    []TrendingTopic `json:"topics"`
	UpdatedAt string          `json:"updated_at"`
}

// Preferences carries the personalisation inputs to the ranker.
type Preferences struct {
	FollowedSources    []string           `json:"followed_sources"`
	FollowedAuthors    []string           `json:"followed_authors"`
	FollowedCategories []string           `json:"followed_categories"`
	PreferredCountries []string           `json:"preferred_countries"`
	PrimaryCountry     string             `json:"primary_country"`
	CategoryInterests  map[string]float64 `json:"category_interests"`
	RecentlyRead       []string           `json:"recently_read"`
}

// Cluster groups related articles from different sources around a
// primary article.
type Cluster struct {
	ID              string    `json:"id"`
	PrimaryArticle  Article   `json:"primary_article"`
	RelatedArticles []Article `json:"related_articles"`
	ArticleCount    int       `json:"article_count"`
}

// Engagement is the platform-wide engagement weighting:
// views + 3*likes + 2*bookmarks.
func Engagement(views, likes, bookmarks int) int {
	return views + likes*3 + bookmarks*2
}

var (
	slugStripRe    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRe    = regexp.MustCompile(`\s+`)
	slugCollapseRe = regexp.MustCompile(`-{2,}`)
)

// Slugify derives a URL-safe slug from a title: lowercase, non-word
// characters stripped, whitespace collapsed to single dashes, clamped
// to 80 characters with no leading or trailing dash.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugSpaceRe.ReplaceAllString(slug, "-")
	slug = slugCollapseRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = slug[:80]
		slug = strings.TrimRight(slug, "-")
	}
	return slug
}

// NowISO returns the current UTC time in RFC 3339 format, the timestamp
// layout used throughout the stores.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// HoursAgoISO returns the UTC timestamp n hours in the past.
func HoursAgoISO(hours int) string {
	return time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339)
}

// ParseISO parses an ISO-8601 timestamp, tolerating a few publisher
// variants. The zero time is returned when nothing matches.
func ParseISO(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
