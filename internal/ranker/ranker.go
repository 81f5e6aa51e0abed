// Package ranker orders articles for a personalised feed. Eight
// additive signals score each article, then a second pass applies a
// diversity penalty so one category cannot monopolise the top of the
// feed.
package ranker

import (
	"math"
	"sort"
	"time"

	"baobab/internal/core"
)

// Signal weights. Diversity is negative: it is a penalty per extra
// article already ranked in the same category.
const (
	weightFollowedSource   = 50.0
	weightFollowedAuthor   = 40.0
	weightFollowedCategory = 30.0
	weightPrimaryCountry   = 35.0
	weightCategoryInterest = 20.0
	weightRecency          = 25.0
	weightEngagement       = 15.0
	weightSourceQuality    = 20.0
	weightDiversity        = -10.0
)

const recencyHalfLifeHours = 24.0

// Breakdown exposes each signal's contribution to the score.
type Breakdown struct {
	FollowedSource   float64 `json:"followed_source"`
	FollowedAuthor   float64 `json:"followed_author"`
	FollowedCategory float64 `json:"followed_category"`
	PrimaryCountry   float64 `json:"primary_country"`
	CategoryInterest float64 `json:"category_interest"`
	Recency          float64 `json:"recency"`
	Engagement       float64 `json:"engagement"`
	SourceQuality    float64 `json:"source_quality"`
}

// ScoredArticle is an article with its ranking score attached.
type ScoredArticle struct {
	core.Article
	Score          float64   `json:"score"`
	ScoreBreakdown Breakdown `json:"score_breakdown"`
}

// Rank scores and orders articles for the given preferences, highest
// score first.
func Rank(articles []core.Article, prefs core.Preferences) []ScoredArticle {
	return rankAt(articles, prefs, time.Now().UTC())
}

func rankAt(articles []core.Article, prefs core.Preferences, now time.Time) []ScoredArticle {
	if len(articles) == 0 {
		return []ScoredArticle{}
	}

	followedSources := toSet(prefs.FollowedSources)
	followedAuthors := toSet(prefs.FollowedAuthors)
	followedCategories := toSet(prefs.FollowedCategories)

	scored := make([]ScoredArticle, len(articles))
	for i, article := range articles {
		b := Breakdown{}

		if followedSources[article.SourceID] || followedSources[article.Source] {
			b.FollowedSource = weightFollowedSource
		}
		if article.Author != "" && followedAuthors[article.Author] {
			b.FollowedAuthor = weightFollowedAuthor
		}
		if article.CategoryID != "" && followedCategories[article.CategoryID] {
			b.FollowedCategory = weightFollowedCategory
		}
		if prefs.PrimaryCountry != "" && article.CountryID == prefs.PrimaryCountry {
			b.PrimaryCountry = weightPrimaryCountry
		}
		if interest, ok := prefs.CategoryInterests[article.CategoryID]; ok {
			b.CategoryInterest = round2(interest * weightCategoryInterest)
		}
		b.Recency = round2(recencyScore(article.PublishedAt, now) * weightRecency)
		b.Engagement = round2(engagementScore(article) * weightEngagement)

		sourceQuality := article.SourceQualityScore
		if sourceQuality == 0 {
			sourceQuality = 0.5
		}
		b.SourceQuality = round2(sourceQuality * weightSourceQuality)

		total := b.FollowedSource + b.FollowedAuthor + b.FollowedCategory +
			b.PrimaryCountry + b.CategoryInterest + b.Recency + b.Engagement + b.SourceQuality

		scored[i] = ScoredArticle{
			Article:        article,
			Score:          round2(total),
			ScoreBreakdown: b,
		}
	}

	// Diversity second pass: walk the provisional ranking and charge
	// each article for the same-category articles above it.
	sortByScore(scored)
	categoryCounts := make(map[string]int)
	for i := range scored {
		cat := scored[i].CategoryID
		if cat == "" {
			cat = "unknown"
		}
		if n := categoryCounts[cat]; n > 0 {
			scored[i].Score = round2(scored[i].Score + weightDiversity*float64(n))
		}
		categoryCounts[cat]++
	}
	sortByScore(scored)

	return scored
}

func sortByScore(scored []ScoredArticle) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}

// recencyScore decays exponentially with a 24-hour half-life. Articles
// with unknown dates get a flat low score rather than zero.
func recencyScore(publishedAt string, now time.Time) float64 {
	if publishedAt == "" {
		return 0.3
	}
	pub := core.ParseISO(publishedAt)
	if pub.IsZero() {
		return 0.3
	}
	hoursOld := now.Sub(pub).Hours()
	return math.Exp(-hoursOld * math.Ln2 / recencyHalfLifeHours)
}

// engagementScore is logarithmic so viral outliers do not dominate.
func engagementScore(article core.Article) float64 {
	raw := core.Engagement(article.ViewCount, article.LikeCount, article.BookmarkCount) + 1
	if raw < 1 {
		raw = 1
	}
	return math.Log10(float64(raw)) / 3
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
