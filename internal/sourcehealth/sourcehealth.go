// Package sourcehealth tracks publisher feed health and schedules
// fetches adaptively: healthy sources poll every 15 minutes, degraded
// every 30, failing hourly, and critical sources are skipped until the
// audit or a manual reset revives them.
package sourcehealth

import (
	"context"
	"fmt"
	"math"
	"time"

	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/logger"
)

// Fetch intervals in minutes by health status. Critical has no interval;
// those sources are not fetched.
var fetchIntervals = map[string]int{
	core.HealthHealthy:  15,
	core.HealthDegraded: 30,
	core.HealthFailing:  60,
}

var healthRank = map[string]int{
	core.HealthHealthy:  0,
	core.HealthDegraded: 1,
	core.HealthFailing:  2,
	core.HealthCritical: 3,
}

// Classify maps consecutive failures to a health status.
func Classify(consecutiveFailures int) string {
	switch {
	case consecutiveFailures >= 8:
		return core.HealthCritical
	case consecutiveFailures >= 4:
		return core.HealthFailing
	case consecutiveFailures >= 1:
		return core.HealthDegraded
	default:
		return core.HealthHealthy
	}
}

// ShouldFetch reports whether a source is due for collection, based on
// its health interval and last fetch time. Sources never fetched are
// always due; critical sources never are.
func ShouldFetch(source core.Source, now time.Time) bool {
	health := Classify(source.ConsecutiveFailures)
	interval, ok := fetchIntervals[health]
	if !ok {
		return false
	}

	lastFetch := source.LastSuccessfulFetch
	if lastFetch == "" {
		lastFetch = source.LastFetchAt
	}
	if lastFetch == "" {
		return true
	}

	last := core.ParseISO(lastFetch)
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= time.Duration(interval)*time.Minute
}

// Alert records a source whose health worsened since the last audit.
type Alert struct {
	SourceID            string  `json:"source_id"`
	SourceName          string  `json:"source_name"`
	Previous            string  `json:"previous"`
	Current             string  `json:"current"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	QualityScore        float64 `json:"quality_score"`
}

// AuditResult summarises one health audit run.
type AuditResult struct {
	Sources  int     `json:"sources"`
	Alerts   []Alert `json:"alerts"`
	Healthy  int     `json:"healthy"`
	Degraded int     `json:"degraded"`
	Failing  int     `json:"failing"`
	Critical int     `json:"critical"`
}

// Monitor runs health audits and serves health summaries.
type Monitor struct {
	store docstore.Store
}

// NewMonitor builds a monitor over the primary store.
func NewMonitor(store docstore.Store) *Monitor {
	return &Monitor{store: store}
}

// Audit evaluates every enabled source: reclassifies health, recomputes
// the composite quality score from the last week of articles, persists
// both, and reports sources whose health worsened.
func (m *Monitor) Audit(ctx context.Context) (AuditResult, error) {
	raw, err := m.store.Find(ctx, docstore.Sources, docstore.Query{
		Filter: docstore.M{"enabled": true},
		Limit:  500,
	})
	if err != nil {
		return AuditResult{}, fmt.Errorf("failed to load sources: %w", err)
	}
	sources, err := docstore.Decode[core.Source](raw)
	if err != nil {
		return AuditResult{}, fmt.Errorf("failed to decode sources: %w", err)
	}

	result := AuditResult{Sources: len(sources), Alerts: []Alert{}}

	for _, source := range sources {
		health := Classify(source.ConsecutiveFailures)
		switch health {
		case core.HealthHealthy:
			result.Healthy++
		case core.HealthDegraded:
			result.Degraded++
		case core.HealthFailing:
			result.Failing++
		case core.HealthCritical:
			result.Critical++
		}

		prev := source.HealthStatus
		if prev == "" {
			prev = core.HealthHealthy
		}

		metrics := m.computeQuality(ctx, source.ID)

		err := m.store.UpdateOne(ctx, docstore.Sources,
			docstore.M{"id": source.ID},
			docstore.M{"$set": docstore.M{
				"health_status":        health,
				"source_quality_score": metrics.Score,
				"avg_article_quality":  metrics.AvgQuality,
				"avg_engagement":       metrics.AvgEngagement,
				"article_count_7d":     metrics.ArticleCount,
			}},
		)
		if err != nil {
			logger.Warn("source health update failed", "source_id", source.ID, "error", err)
		}

		if health != prev && healthRank[health] > healthRank[prev] {
			result.Alerts = append(result.Alerts, Alert{
				SourceID:            source.ID,
				SourceName:          source.Name,
				Previous:            prev,
				Current:             health,
				ConsecutiveFailures: source.ConsecutiveFailures,
				QualityScore:        metrics.Score,
			})
		}
	}
	return result, nil
}

// HealthSummary lists enabled sources ordered worst health first, best
// quality first within a status.
func (m *Monitor) HealthSummary(ctx context.Context) ([]core.Source, error) {
	raw, err := m.store.Find(ctx, docstore.Sources, docstore.Query{
		Filter: docstore.M{"enabled": true},
		Projection: docstore.M{
			"name": 1, "url": 1, "country_id": 1,
			"health_status": 1, "consecutive_failures": 1,
			"source_quality_score": 1, "last_successful_fetch": 1,
		},
		Sort:  docstore.Sort{{Key: "health_status", Dir: 1}, {Key: "source_quality_score", Dir: -1}},
		Limit: 500,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load source health: %w", err)
	}
	return docstore.Decode[core.Source](raw)
}

type qualityMetrics struct {
	Score         float64
	AvgQuality    float64
	AvgEngagement float64
	ArticleCount  int
}

type qualityRow struct {
	AvgQuality   float64 `json:"avg_quality"`
	AvgViews     float64 `json:"avg_views"`
	AvgLikes     float64 `json:"avg_likes"`
	AvgBookmarks float64 `json:"avg_bookmarks"`
	Count        float64 `json:"count"`
}

// computeQuality aggregates the source's last 7 days of articles into a
// composite score: 60% article quality, 30% engagement, 10% volume.
func (m *Monitor) computeQuality(ctx context.Context, sourceID string) qualityMetrics {
	fallback := qualityMetrics{Score: 0.5, AvgQuality: 0.5}

	pipeline := []docstore.M{
		{"$match": docstore.M{
			"source_id":    sourceID,
			"published_at": docstore.M{"$gte": core.HoursAgoISO(7 * 24)},
		}},
		{"$group": docstore.M{
			"_id":           nil,
			"avg_quality":   docstore.M{"$avg": "$quality_score"},
			"avg_views":     docstore.M{"$avg": "$view_count"},
			"avg_likes":     docstore.M{"$avg": "$like_count"},
			"avg_bookmarks": docstore.M{"$avg": "$bookmark_count"},
			"count":         docstore.M{"$sum": 1},
		}},
	}

	raw, err := m.store.Aggregate(ctx, docstore.Articles, pipeline)
	if err != nil {
		logger.Warn("source quality aggregation failed", "source_id", sourceID, "error", err)
		return fallback
	}
	rows, err := docstore.Decode[qualityRow](raw)
	if err != nil || len(rows) == 0 || rows[0].Count == 0 {
		return fallback
	}
	r := rows[0]

	avgQuality := r.AvgQuality
	if avgQuality == 0 {
		avgQuality = 0.5
	}
	avgEngagement := r.AvgViews + r.AvgLikes*3 + r.AvgBookmarks*2

	engScore := math.Min(math.Log10(math.Max(avgEngagement, 1)+1)/3, 1.0)
	volScore := math.Min(r.Count/50, 1.0)
	score := round2(avgQuality*0.6 + engScore*0.3 + volScore*0.1)

	return qualityMetrics{
		Score:         score,
		AvgQuality:    round2(avgQuality),
		AvgEngagement: math.Round(avgEngagement*10) / 10,
		ArticleCount:  int(r.Count),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
