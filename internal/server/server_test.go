package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"baobab/internal/analytics"
	"baobab/internal/config"
	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/fetch"
	"baobab/internal/trending"
)

func newTestServer(t *testing.T, components Components) *Server {
	t.Helper()
	return New(components, config.Server{Host: "127.0.0.1", Port: 0})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return decoded
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, Components{})
	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["status"] != "ok" || body["service"] != "baobab-news-api" {
		t.Errorf("body = %v", body)
	}
}

func TestNotFoundReturnsJSON(t *testing.T) {
	s := newTestServer(t, Components{})
	rec := doRequest(t, s, http.MethodGet, "/no/such/route", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body["error"] != "Not found" || body["path"] != "/no/such/route" {
		t.Errorf("body = %v", body)
	}
}

func TestQualityScoreEndpoint(t *testing.T) {
	s := newTestServer(t, Components{})
	payload := `{"title": "Short note", "content": "Too short to score well."}`
	rec := doRequest(t, s, http.MethodPost, "/quality/score", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["quality_score"] != 0.3 {
		t.Errorf("quality_score = %v, want 0.3 for short content", body["quality_score"])
	}
}

func TestCleanContentEndpoint(t *testing.T) {
	s := newTestServer(t, Components{})
	payload := `{"html": "<article><script>evil()</script><p>` +
		strings.Repeat("Clean paragraph text here. ", 10) + `</p></article>"}`
	rec := doRequest(t, s, http.MethodPost, "/content/clean", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeResponse(t, rec)
	cleaned, _ := body["cleaned_content"].(string)
	if strings.Contains(cleaned, "evil()") {
		t.Errorf("script content survived: %q", cleaned)
	}
	if !strings.Contains(cleaned, "Clean paragraph text here.") {
		t.Errorf("cleaned = %q", cleaned)
	}
}

func TestParseFeedRejectsEmptyXML(t *testing.T) {
	s := newTestServer(t, Components{})
	rec := doRequest(t, s, http.MethodPost, "/rss/parse", `{"xml": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeResponse(t, rec); body["error"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestMalformedJSONBody(t *testing.T) {
	s := newTestServer(t, Components{})
	rec := doRequest(t, s, http.MethodPost, "/quality/score", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestScrapeEndpoint(t *testing.T) {
	page := `<html><head><title>Mining Boom | Daily Herald</title></head><body>
		<article><p>` + strings.Repeat("The mining sector grew again this quarter. ", 10) + `</p></article>
		</body></html>`
	fetcher := &fetch.Static{Responses: map[string][]byte{
		"https://example.com/story": []byte(page),
	}}
	s := newTestServer(t, Components{Fetcher: fetcher})

	rec := doRequest(t, s, http.MethodPost, "/content/scrape", `{"url": "https://example.com/story"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["title"] != "Mining Boom" {
		t.Errorf("title = %v", body["title"])
	}
	if body["url"] != "https://example.com/story" {
		t.Errorf("url = %v", body["url"])
	}
}

func TestScrapeRejectsRelativeURL(t *testing.T) {
	s := newTestServer(t, Components{Fetcher: &fetch.Static{}})
	rec := doRequest(t, s, http.MethodPost, "/content/scrape", `{"url": "/relative/path"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestScrapeFetchFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t, Components{Fetcher: &fetch.Static{}})
	rec := doRequest(t, s, http.MethodPost, "/content/scrape", `{"url": "https://down.example.com/x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestRankFeedEndpoint(t *testing.T) {
	s := newTestServer(t, Components{})
	payload := `{
		"articles": [
			{"id": "1", "title": "A", "source": "Herald", "source_id": "s1", "original_url": "https://a"},
			{"id": "2", "title": "B", "source": "Nation", "source_id": "s2", "original_url": "https://b"}
		],
		"preferences": {"followed_sources": ["s2"]}
	}`
	rec := doRequest(t, s, http.MethodPost, "/feed/rank", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["count"] != float64(2) {
		t.Fatalf("count = %v", body["count"])
	}
	articles, _ := body["articles"].([]any)
	first, _ := articles[0].(map[string]any)
	if first["id"] != "2" {
		t.Errorf("followed source should rank first, got %v", first["id"])
	}
}

func TestUnconfiguredComponentIs503(t *testing.T) {
	s := newTestServer(t, Components{})
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/search/query"},
		{http.MethodPost, "/feed/collect"},
		{http.MethodPost, "/cache/sync"},
		{http.MethodPost, "/content/process"},
		{http.MethodGet, "/trending"},
		{http.MethodGet, "/sources/health"},
		{http.MethodGet, "/analytics/stats"},
	} {
		rec := doRequest(t, s, route.method, route.path, "{}")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want 503", route.method, route.path, rec.Code)
		}
	}
}

func seedTrendingStore(t *testing.T) *docstore.Memory {
	t.Helper()
	store := docstore.NewMemory()
	if err := store.Seed(docstore.Articles, []core.Article{
		{ID: "a1", Title: "Election update", CountryID: "ZW", PublishedAt: core.HoursAgoISO(1), ViewCount: 50},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Seed(docstore.KeywordLinks, []core.KeywordLink{
		{ArticleID: "a1", KeywordID: "k1"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Seed(docstore.Keywords, []core.Keyword{
		{ID: "k1", Name: "elections", Enabled: true},
	}); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestTrendingEndpoint(t *testing.T) {
	s := newTestServer(t, Components{Trending: trending.New(seedTrendingStore(t), nil)})
	rec := doRequest(t, s, http.MethodGet, "/trending/zw", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "elections") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSearchTrendingEndpoint(t *testing.T) {
	s := newTestServer(t, Components{Trending: trending.New(seedTrendingStore(t), nil)})
	rec := doRequest(t, s, http.MethodGet, "/search/trending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	topics, ok := body["topics"].([]any)
	if !ok || len(topics) != 1 {
		t.Fatalf("topics = %v", body["topics"])
	}
	first, _ := topics[0].(map[string]any)
	if first["keyword"] != "elections" {
		t.Errorf("keyword = %v", first["keyword"])
	}
	if updated, _ := body["updated_at"].(string); updated == "" {
		t.Errorf("updated_at missing, body = %v", body)
	}
}

func TestAnalyticsStatsEndpoint(t *testing.T) {
	store := docstore.NewMemory()
	if err := store.Seed(docstore.Articles, []core.Article{
		{ID: "a1", Title: "One", CategoryID: "news", PublishedAt: core.HoursAgoISO(1)},
	}); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(t, Components{Analytics: analytics.New(store)})
	rec := doRequest(t, s, http.MethodGet, "/analytics/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if body["total_articles"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}
