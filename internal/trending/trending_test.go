package trending

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/kvstore"
)

func seedTrendingStore(t *testing.T) *docstore.Memory {
	t.Helper()
	store := docstore.NewMemory()

	err := store.Seed(docstore.Articles, []core.Article{
		{ID: "a1", Title: "Election results announced", CountryID: "ZW",
			PublishedAt: core.HoursAgoISO(1), ViewCount: 100, LikeCount: 10, BookmarkCount: 5},
		{ID: "a2", Title: "Election observers arrive", CountryID: "ZW",
			PublishedAt: core.HoursAgoISO(2)},
		{ID: "a3", Title: "Election coverage from last month", CountryID: "ZW",
			PublishedAt: core.HoursAgoISO(30), ViewCount: 9999},
	})
	if err != nil {
		t.Fatalf("seed articles: %v", err)
	}

	err = store.Seed(docstore.KeywordLinks, []core.KeywordLink{
		{ArticleID: "a1", KeywordID: "k1", RelevanceScore: 0.9},
		{ArticleID: "a2", KeywordID: "k1", RelevanceScore: 0.8},
		{ArticleID: "a1", KeywordID: "k2", RelevanceScore: 0.7},
		{ArticleID: "a3", KeywordID: "k1", RelevanceScore: 0.9},
	})
	if err != nil {
		t.Fatalf("seed links: %v", err)
	}

	err = store.Seed(docstore.Keywords, []core.Keyword{
		{ID: "k1", Name: "elections", Enabled: true, UsageCount: 40},
		{ID: "k2", Name: "economy", Enabled: true, UsageCount: 12},
	})
	if err != nil {
		t.Fatalf("seed keywords: %v", err)
	}
	return store
}

func TestRefreshRanksByWeightedScore(t *testing.T) {
	engine := New(seedTrendingStore(t), nil)

	result := engine.Refresh(context.Background())
	if len(result.Global) != 2 {
		t.Fatalf("topics = %+v, want 2", result.Global)
	}

	top := result.Global[0]
	if top.Keyword != "elections" {
		t.Errorf("top keyword = %q", top.Keyword)
	}
	// Two in-window articles link k1; the 30h-old one must not count.
	if top.ArticleCount != 2 {
		t.Errorf("article count = %d, want 2", top.ArticleCount)
	}
	// Engagement 100 + 3*10 + 2*5 = 140; 2 * (1 + log10(141)) = 6.30
	if top.EngagementScore != 140 {
		t.Errorf("engagement = %v, want 140", top.EngagementScore)
	}
	if top.Score != 6.3 {
		t.Errorf("score = %v, want 6.3", top.Score)
	}

	second := result.Global[1]
	if second.Keyword != "economy" || second.ArticleCount != 1 {
		t.Errorf("second topic = %+v", second)
	}
	if second.Score != 3.15 {
		t.Errorf("second score = %v, want 3.15", second.Score)
	}
}

func TestRefreshCachesSnapshots(t *testing.T) {
	kv := kvstore.NewMemory()
	engine := New(seedTrendingStore(t), kv)

	result := engine.Refresh(context.Background())
	if _, ok := result.Countries["ZW"]; !ok {
		t.Fatalf("countries = %+v, want ZW snapshot", result.Countries)
	}
	if _, ok := result.Countries["KE"]; ok {
		t.Error("KE has no articles and should have no snapshot")
	}

	cached, err := kv.Get(context.Background(), "trending:global")
	if err != nil || cached == "" {
		t.Fatalf("global snapshot not cached: %v %q", err, cached)
	}
	if !strings.Contains(cached, "elections") {
		t.Errorf("cached snapshot = %s", cached)
	}
	if zw, _ := kv.Get(context.Background(), "trending:ZW"); zw == "" {
		t.Error("ZW snapshot not cached")
	}
	if ke, _ := kv.Get(context.Background(), "trending:KE"); ke != "" {
		t.Errorf("unexpected KE snapshot: %s", ke)
	}
}

func TestGetReadsThroughCache(t *testing.T) {
	kv := kvstore.NewMemory()
	canned := core.TrendingSnapshot{
		Topics:    []core.TrendingTopic{{Keyword: "cached-topic", ArticleCount: 3, Score: 9.9}},
		UpdatedAt: "2024-08-19T12:00:00Z",
	}
	encoded, _ := json.Marshal(canned)
	if err := kv.Set(context.Background(), "trending:ZW", string(encoded), 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	// Empty store proves the cached copy is served without recomputing.
	engine := New(docstore.NewMemory(), kv)
	snapshot := engine.Get(context.Background(), "ZW")
	if len(snapshot.Topics) != 1 || snapshot.Topics[0].Keyword != "cached-topic" {
		t.Errorf("snapshot = %+v, want cached copy", snapshot)
	}
}

func TestGetComputesOnCacheMiss(t *testing.T) {
	engine := New(seedTrendingStore(t), kvstore.NewMemory())

	snapshot := engine.Get(context.Background(), "")
	if len(snapshot.Topics) != 2 {
		t.Fatalf("topics = %+v", snapshot.Topics)
	}
	if snapshot.Topics[0].Keyword != "elections" {
		t.Errorf("top keyword = %q", snapshot.Topics[0].Keyword)
	}
	if snapshot.UpdatedAt == "" {
		t.Error("snapshot has no timestamp")
	}
}

func TestGetKeepsKeywordIDWhenDictionaryEntryMissing(t *testing.T) {
	store := docstore.NewMemory()
	if err := store.Seed(docstore.Articles, []core.Article{
		{ID: "a1", Title: "Story", PublishedAt: core.HoursAgoISO(1), ViewCount: 10},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Seed(docstore.KeywordLinks, []core.KeywordLink{
		{ArticleID: "a1", KeywordID: "ghost-keyword"},
	}); err != nil {
		t.Fatal(err)
	}

	snapshot := New(store, nil).Get(context.Background(), "")
	if len(snapshot.Topics) != 1 || snapshot.Topics[0].Keyword != "ghost-keyword" {
		t.Errorf("topics = %+v, want keyword id passthrough", snapshot.Topics)
	}
}

func TestTrendingEmptyStore(t *testing.T) {
	snapshot := New(docstore.NewMemory(), nil).Get(context.Background(), "")
	if len(snapshot.Topics) != 0 {
		t.Errorf("topics = %+v, want none", snapshot.Topics)
	}
}
