package clusterer

import (
	"context"
	"testing"

	"baobab/internal/core"
	"baobab/internal/llm"
)

func TestClusterEmptyInput(t *testing.T) {
	result := New(nil).Cluster(context.Background(), nil, Config{})
	if result.Method != "none" {
		t.Errorf("method = %q, want none", result.Method)
	}
	if len(result.Clusters) != 0 {
		t.Errorf("clusters = %+v", result.Clusters)
	}
}

func TestClusterJaccardGroupsSimilarTitles(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Zimbabwe currency reform announced by central bank", Source: "Herald"},
		{ID: "2", Title: "Central bank announces Zimbabwe currency reform", Source: "NewsDay"},
		{ID: "3", Title: "Kenya wins athletics gold medal in Paris", Source: "Nation"},
	}

	result := New(nil).Cluster(context.Background(), articles, Config{})
	if result.Method != "jaccard" {
		t.Fatalf("method = %q, want jaccard without embeddings", result.Method)
	}
	if len(result.Clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(result.Clusters))
	}

	first := result.Clusters[0]
	if first.PrimaryArticle.ID != "1" {
		t.Errorf("primary = %q", first.PrimaryArticle.ID)
	}
	if first.ArticleCount != 2 || len(first.RelatedArticles) != 1 || first.RelatedArticles[0].ID != "2" {
		t.Errorf("cluster = %+v", first)
	}
	if result.Clusters[1].ArticleCount != 1 {
		t.Errorf("unrelated article should stand alone: %+v", result.Clusters[1])
	}
}

func TestClusterRequiresDifferentSources(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Zimbabwe currency reform announced by central bank", Source: "Herald"},
		{ID: "2", Title: "Central bank announces Zimbabwe currency reform", Source: "Herald"},
	}

	result := New(nil).Cluster(context.Background(), articles, Config{})
	if len(result.Clusters) != 2 {
		t.Errorf("same-source articles must not cluster: %+v", result.Clusters)
	}
}

func TestClusterSemanticWithEmbeddings(t *testing.T) {
	ai := &llm.Fake{Embeddings: map[string][]float32{
		"Floods displace thousands in coastal region": {1, 0, 0},
		"Thousands flee rising floodwaters on coast":  {0.95, 0.05, 0},
		"Stock exchange posts record quarterly gains": {0, 1, 0},
	}}

	articles := []core.Article{
		{ID: "1", Title: "Floods displace thousands in coastal region", Source: "Herald"},
		{ID: "2", Title: "Thousands flee rising floodwaters on coast", Source: "Nation"},
		{ID: "3", Title: "Stock exchange posts record quarterly gains", Source: "NewsDay"},
	}

	result := New(ai).Cluster(context.Background(), articles, Config{})
	if result.Method != "semantic" {
		t.Fatalf("method = %q, want semantic", result.Method)
	}
	if len(result.Clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(result.Clusters))
	}
	if result.Clusters[0].ArticleCount != 2 {
		t.Errorf("flood stories should cluster: %+v", result.Clusters[0])
	}
}

func TestClusterFallsBackWhenEmbeddingFails(t *testing.T) {
	ai := &llm.Fake{Embeddings: map[string][]float32{}} // no embeddings configured

	articles := []core.Article{
		{ID: "1", Title: "Zimbabwe currency reform announced by central bank", Source: "Herald"},
		{ID: "2", Title: "Central bank announces Zimbabwe currency reform", Source: "NewsDay"},
	}

	result := New(ai).Cluster(context.Background(), articles, Config{})
	if result.Method != "jaccard" {
		t.Errorf("method = %q, want jaccard fallback", result.Method)
	}
	if len(result.Clusters) != 1 {
		t.Errorf("clusters = %+v", result.Clusters)
	}
}

func TestClusterHonoursMaxClusters(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Completely unique story about mining output", Source: "A"},
		{ID: "2", Title: "Another different tale regarding fishing quotas", Source: "B"},
		{ID: "3", Title: "Third unrelated piece covering telecom prices", Source: "C"},
	}

	result := New(nil).Cluster(context.Background(), articles, Config{MaxClusters: 2})
	if len(result.Clusters) != 2 {
		t.Errorf("clusters = %d, want capped at 2", len(result.Clusters))
	}
}

func TestNormaliseTitle(t *testing.T) {
	words := NormaliseTitle("The President Says New Mining Deal Will Boost the Economy!")
	want := map[string]bool{"president": true, "mining": true, "deal": true, "boost": true, "economy": true}
	if len(words) != len(want) {
		t.Fatalf("words = %v", words)
	}
	for _, w := range words {
		if !want[w] {
			t.Errorf("unexpected word %q in %v", w, words)
		}
	}
}

func TestJaccardSimilarity(t *testing.T) {
	a := []string{"currency", "reform", "zimbabwe"}
	b := []string{"currency", "reform", "kenya"}
	got := JaccardSimilarity(a, b)
	if got < 0.49 || got > 0.51 {
		t.Errorf("similarity = %v, want 0.5", got)
	}
	if JaccardSimilarity(nil, b) != 0 {
		t.Error("empty set should score 0")
	}
	if JaccardSimilarity(a, a) != 1 {
		t.Error("identical sets should score 1")
	}
}
