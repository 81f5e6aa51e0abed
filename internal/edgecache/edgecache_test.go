package edgecache

import (
	"context"
	"strings"
	"testing"

	"baobab/internal/core"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open edge cache: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedArticles(t *testing.T, db *DB) {
	t.Helper()
	articles := []core.Article{
		{
			ID: "a1", Title: "Flood damage across Harare suburbs",
			Description: "Heavy rains left thousands displaced",
			Source:      "Daily Herald", CategoryID: "general",
			CountryID: "ZW", PublishedAt: "2026-08-24T08:00:00Z",
		},
		{
			ID: "a2", Title: "Central bank holds interest rates",
			Description: "Policy committee cites inflation outlook",
			Source:      "Business Wire", CategoryID: "business",
			CountryID: "ZW", PublishedAt: "2026-08-24T10:00:00Z",
		},
		{
			ID: "a3", Title: "Chiefs win derby in Nairobi",
			Description: "Late goal settles the rain-delayed match",
			Source:      "Sports Desk", CategoryID: "sports",
			CountryID: "KE", PublishedAt: "2026-08-23T18:00:00Z",
		},
	}
	for _, a := range articles {
		if err := db.UpsertArticle(context.Background(), a); err != nil {
			t.Fatalf("failed to upsert %s: %v", a.ID, err)
		}
	}
}

func TestSearchArticlesMatchesTitleAndDescription(t *testing.T) {
	db := newTestDB(t)
	seedArticles(t, db)
	ctx := context.Background()

	byTitle, err := db.SearchArticles(ctx, "flood", Filter{}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(byTitle) != 1 || byTitle[0].ID != "a1" {
		t.Fatalf("expected a1 for title match, got %+v", byTitle)
	}

	byDescription, err := db.SearchArticles(ctx, "inflation", Filter{}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(byDescription) != 1 || byDescription[0].ID != "a2" {
		t.Fatalf("expected a2 for description match, got %+v", byDescription)
	}
}

func TestSearchArticlesOrdersNewestFirst(t *testing.T) {
	db := newTestDB(t)
	seedArticles(t, db)

	// "rain" hits a1's description and a3's description.
	results, err := db.SearchArticles(context.Background(), "rain", Filter{}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a1" || results[1].ID != "a3" {
		t.Errorf("expected [a1 a3] newest first, got [%s %s]", results[0].ID, results[1].ID)
	}
}

func TestSearchArticlesAppliesFilters(t *testing.T) {
	db := newTestDB(t)
	seedArticles(t, db)
	ctx := context.Background()

	results, err := db.SearchArticles(ctx, "the", Filter{Category: "sports"}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, a := range results {
		if a.CategoryID != "sports" {
			t.Errorf("category filter leaked article %s (%s)", a.ID, a.CategoryID)
		}
	}

	results, err = db.SearchArticles(ctx, "", Filter{DateFrom: "2026-08-24T00:00:00Z"}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 articles on or after the cutoff, got %d", len(results))
	}
}

func TestArticlesByIDs(t *testing.T) {
	db := newTestDB(t)
	seedArticles(t, db)
	ctx := context.Background()

	articles, err := db.ArticlesByIDs(ctx, []string{"a1", "a3", "missing"}, Filter{})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	filtered, err := db.ArticlesByIDs(ctx, []string{"a1", "a3"}, Filter{Source: "Sports Desk"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "a3" {
		t.Fatalf("expected only a3 after source filter, got %+v", filtered)
	}

	empty, err := db.ArticlesByIDs(ctx, nil, Filter{})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no results for empty id list, got %d", len(empty))
	}
}

func TestUpsertArticleReplacesAndTruncates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	long := strings.Repeat("x", 600)
	a := core.Article{ID: "a1", Title: "First", Source: "Wire", Description: long}
	if err := db.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	a.Title = "Second"
	if err := db.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := db.ArticlesByIDs(ctx, []string{"a1"}, Filter{})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single row after replace, got %d", len(got))
	}
	if got[0].Title != "Second" {
		t.Errorf("expected replaced title, got %q", got[0].Title)
	}
	if len(got[0].Description) != 500 {
		t.Errorf("expected description truncated to 500, got %d", len(got[0].Description))
	}
}

func TestUpsertRejectsMissingID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.UpsertArticle(ctx, core.Article{Title: "no id"}); err == nil {
		t.Error("expected error for article without id")
	}
	if err := db.UpsertKeyword(ctx, core.Keyword{Name: "no id"}); err == nil {
		t.Error("expected error for keyword without id")
	}
	if err := db.UpsertCategory(ctx, core.Category{Name: "no id"}); err == nil {
		t.Error("expected error for category without id")
	}
}

func TestTopKeywordsSkipsDisabledAndOrdersByUsage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seed := []core.Keyword{
		{ID: "k1", Name: "elections", UsageCount: 5, RelevanceScore: 0.9, Enabled: true},
		{ID: "k2", Name: "economy", UsageCount: 12, RelevanceScore: 0.4, Enabled: true},
		{ID: "k3", Name: "spam", UsageCount: 99, Enabled: false},
	}
	for _, k := range seed {
		if err := db.UpsertKeyword(ctx, k); err != nil {
			t.Fatalf("failed to upsert %s: %v", k.ID, err)
		}
	}

	keywords, err := db.TopKeywords(ctx, 10)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(keywords) != 2 {
		t.Fatalf("expected 2 enabled keywords, got %d", len(keywords))
	}
	if keywords[0].ID != "k2" || keywords[1].ID != "k1" {
		t.Errorf("expected usage-count order [k2 k1], got [%s %s]", keywords[0].ID, keywords[1].ID)
	}
}

func TestCategoriesOrderedByName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, c := range []core.Category{
		{ID: "c2", Name: "Sports", Enabled: true},
		{ID: "c1", Name: "Business", Emoji: "💼", Enabled: true},
	} {
		if err := db.UpsertCategory(ctx, c); err != nil {
			t.Fatalf("failed to upsert %s: %v", c.ID, err)
		}
	}

	categories, err := db.Categories(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}
	if categories[0].Name != "Business" || categories[1].Name != "Sports" {
		t.Errorf("expected name order [Business Sports], got [%s %s]", categories[0].Name, categories[1].Name)
	}
	if categories[0].Emoji != "💼" {
		t.Errorf("emoji not round-tripped, got %q", categories[0].Emoji)
	}
}
