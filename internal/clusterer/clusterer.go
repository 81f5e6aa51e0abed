// Package clusterer groups articles covering the same story. Semantic
// clustering over title embeddings is preferred; Jaccard similarity on
// normalised title words is the fallback when embeddings are not
// available. Clusters always span different sources.
package clusterer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"baobab/internal/core"
	"baobab/internal/llm"
	"baobab/internal/logger"
	"baobab/internal/vectorindex"
)

// Multilingual stopwords: English, Shona, Swahili, French, Portuguese
// and Arabic, matching the platform's coverage areas.
var stopWords = buildStopWords(
	// English
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "by", "from", "up", "about", "into", "through", "during",
	"before", "after", "above", "below", "between", "under", "again",
	"further", "then", "once", "here", "there", "when", "where", "why",
	"how", "all", "each", "few", "more", "most", "other", "some", "such",
	"only", "own", "same", "than", "too", "very", "just", "also", "now",
	"says", "said", "will", "would", "could", "should", "have", "has",
	"had", "been", "being", "this", "that", "these", "those", "what",
	"which", "while", "news", "report", "reports", "breaking", "update",
	"latest", "today", "yesterday", "new", "first", "last", "over",
	// Shona
	"ndi", "iri", "ari", "ane", "kuti", "kana", "asi", "zvino", "iyi",
	"uyu", "ichi", "icho", "pano", "apa", "kuno",
	// Swahili
	"na", "ya", "wa", "kwa", "ni", "la", "za", "katika", "kama",
	"hii", "hiyo", "hayo", "sasa", "pia", "lakini",
	// French
	"le", "la", "les", "de", "du", "des", "un", "une", "et", "est",
	"dans", "pour", "que", "qui", "sur", "avec", "plus", "pas",
	// Portuguese
	"um", "uma", "os", "as", "do", "da", "dos", "das", "em", "no",
	"na", "por", "para", "com", "que", "se",
	// Arabic
	"في", "من", "إلى", "على", "عن", "مع", "هذا", "هذه", "التي",
	"الذي", "كان", "قال", "بعد",
)

const (
	semanticThreshold = 0.75
	maxTitleLength    = 500
	maxWords          = 50
)

var titleStripRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Config tunes clustering.
type Config struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxRelated          int     `json:"max_related"`
	MaxClusters         int     `json:"max_clusters"`
}

// Result is the clustered output.
type Result struct {
	Clusters []core.Cluster `json:"clusters"`
	Method   string         `json:"method"`
}

// Clusterer groups articles by story.
type Clusterer struct {
	ai llm.Gateway
}

// New builds a clusterer. ai may be nil; Jaccard is then always used.
func New(ai llm.Gateway) *Clusterer {
	return &Clusterer{ai: ai}
}

// Cluster groups the articles. Method reports which similarity was used:
// "semantic", "jaccard", or "none" when there was nothing to cluster.
func (c *Clusterer) Cluster(ctx context.Context, articles []core.Article, cfg Config) Result {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.35
	}
	if cfg.MaxRelated <= 0 {
		cfg.MaxRelated = 4
	}
	if cfg.MaxClusters <= 0 {
		cfg.MaxClusters = 10
	}

	if len(articles) == 0 {
		return Result{Clusters: []core.Cluster{}, Method: "none"}
	}

	if c.ai != nil && len(articles) >= 2 {
		if sim, err := c.semanticMatrix(ctx, articles); err == nil {
			clusters := buildClusters(articles, sim, semanticThreshold, cfg.MaxRelated, cfg.MaxClusters)
			return Result{Clusters: clusters, Method: "semantic"}
		} else {
			logger.Warn("semantic clustering unavailable, using jaccard", "error", err)
		}
	}

	sim := jaccardMatrix(articles)
	clusters := buildClusters(articles, sim, cfg.SimilarityThreshold, cfg.MaxRelated, cfg.MaxClusters)
	return Result{Clusters: clusters, Method: "jaccard"}
}

// semanticMatrix embeds every title and computes pairwise cosine
// similarity. All titles must embed; one failure falls the whole batch
// back to Jaccard.
func (c *Clusterer) semanticMatrix(ctx context.Context, articles []core.Article) ([][]float64, error) {
	embeddings := make([][]float32, len(articles))
	for i, article := range articles {
		emb, err := c.ai.Embed(ctx, article.Title)
		if err != nil {
			return nil, fmt.Errorf("embedding title %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	n := len(articles)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := vectorindex.Cosine(embeddings[i], embeddings[j])
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	return sim, nil
}

// buildClusters assigns articles greedily: each unassigned article
// seeds a cluster and pulls in similar articles from other sources.
func buildClusters(articles []core.Article, sim [][]float64, threshold float64, maxRelated, maxClusters int) []core.Cluster {
	clusters := []core.Cluster{}
	assigned := make([]bool, len(articles))

	for i := range articles {
		if assigned[i] {
			continue
		}

		clusterID := articles[i].ID
		if clusterID == "" {
			clusterID = fmt.Sprintf("%d", i)
		}
		cluster := core.Cluster{
			ID:              "cluster-" + clusterID,
			PrimaryArticle:  articles[i],
			RelatedArticles: []core.Article{},
			ArticleCount:    1,
		}
		assigned[i] = true

		for j := i + 1; j < len(articles); j++ {
			if assigned[j] {
				continue
			}
			// A cluster is only meaningful across sources
			if articles[i].Source == articles[j].Source {
				continue
			}
			if sim[i][j] >= threshold {
				cluster.RelatedArticles = append(cluster.RelatedArticles, articles[j])
				cluster.ArticleCount++
				assigned[j] = true
				if len(cluster.RelatedArticles) >= maxRelated {
					break
				}
			}
		}

		clusters = append(clusters, cluster)
		if len(clusters) >= maxClusters {
			break
		}
	}
	return clusters
}

func jaccardMatrix(articles []core.Article) [][]float64 {
	words := make([][]string, len(articles))
	for i, a := range articles {
		words[i] = NormaliseTitle(a.Title)
	}

	n := len(articles)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := JaccardSimilarity(words[i], words[j])
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	return sim
}

// NormaliseTitle lowercases, strips punctuation, and drops stopwords and
// short tokens, keeping at most the first 50 significant words.
func NormaliseTitle(title string) []string {
	if title == "" {
		return nil
	}
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}
	cleaned := titleStripRe.ReplaceAllString(strings.ToLower(title), "")

	var words []string
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) <= 3 || stopWords[w] {
			continue
		}
		words = append(words, w)
		if len(words) >= maxWords {
			break
		}
	}
	return words
}

// JaccardSimilarity is intersection over union of the two word sets.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, w := range a {
		setA[w] = true
	}
	setB := make(map[string]bool, len(b))
	for _, w := range b {
		setB[w] = true
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func buildStopWords(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
