// Package enrich runs the per-article processing pipeline: clean the
// HTML, tag keywords, score quality, derive the dedup hash, and embed
// the article for semantic search. Keyword and embedding failures are
// soft; cleaning and scoring always succeed.
package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"baobab/internal/cleaner"
	"baobab/internal/core"
	"baobab/internal/keywords"
	"baobab/internal/llm"
	"baobab/internal/logger"
	"baobab/internal/quality"
	"baobab/internal/vectorindex"
)

// Request is one article to process.
type Request struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
	Country  string `json:"country_id,omitempty"`
}

// Result is the processed article.
type Result struct {
	CleanedContent   string                  `json:"cleaned_content"`
	ExtractedImages  []string                `json:"extracted_images"`
	Keywords         []core.ExtractedKeyword `json:"keywords"`
	QualityScore     float64                 `json:"quality_score"`
	QualityDetails   quality.Result          `json:"quality_details"`
	ContentHash      string                  `json:"content_hash"`
	EmbeddingID      string                  `json:"embedding_id,omitempty"`
	ProcessingTimeMS int64                   `json:"processing_time_ms"`
}

// Pipeline wires the enrichment stages together.
type Pipeline struct {
	keywords *keywords.Extractor
	ai       llm.Gateway
	vectors  vectorindex.Index
}

// NewPipeline builds the pipeline. ai and vectors may be nil; embedding
// is then skipped.
func NewPipeline(kw *keywords.Extractor, ai llm.Gateway, vectors vectorindex.Index) *Pipeline {
	return &Pipeline{keywords: kw, ai: ai, vectors: vectors}
}

// Process runs the full pipeline for one article.
func (p *Pipeline) Process(ctx context.Context, req Request) Result {
	start := time.Now()

	cleaned := cleaner.Clean(req.Content, cleaner.Options{})

	var extracted []core.ExtractedKeyword
	if p.keywords != nil {
		extracted = p.keywords.Extract(ctx, keywords.Request{
			Title:     req.Title,
			Content:   cleaned.CleanedContent,
			Category:  req.Category,
			CountryID: req.Country,
		})
	}
	if extracted == nil {
		extracted = []core.ExtractedKeyword{}
	}

	scored := quality.Score(cleaned.CleanedContent, req.Title)

	result := Result{
		CleanedContent:  cleaned.CleanedContent,
		ExtractedImages: cleaned.ExtractedImages,
		Keywords:        extracted,
		QualityScore:    scored.QualityScore,
		QualityDetails:  scored,
		ContentHash:     ContentHash(req.Title, cleaned.CleanedContent),
	}

	result.EmbeddingID = p.embed(ctx, req, cleaned.CleanedContent)
	result.ProcessingTimeMS = time.Since(start).Milliseconds()
	return result
}

// embed generates and stores the article vector. Any failure logs and
// returns an empty id; enrichment carries on without the vector.
func (p *Pipeline) embed(ctx context.Context, req Request, cleaned string) string {
	if p.ai == nil || req.ID == "" || len(cleaned) <= 50 {
		return ""
	}

	text := embeddingText(req.Title, cleaned)
	embedding, err := p.ai.Embed(ctx, text)
	if err != nil {
		logger.Warn("embedding failed", "article_id", req.ID, "error", err)
		return ""
	}

	embeddingID := fmt.Sprintf("article_%s", req.ID)
	if p.vectors != nil {
		err := p.vectors.Upsert(ctx, []vectorindex.Vector{{
			ID:     embeddingID,
			Values: embedding,
			Metadata: map[string]any{
				"title":    req.Title,
				"category": req.Category,
			},
		}})
		if err != nil {
			logger.Warn("vector upsert failed", "article_id", req.ID, "error", err)
		}
	}
	return embeddingID
}

// ContentHash derives the dedup hash: the first 16 hex characters of
// SHA-256 over title plus cleaned content.
func ContentHash(title, cleaned string) string {
	sum := sha256.Sum256([]byte(title + cleaned))
	return hex.EncodeToString(sum[:])[:16]
}

func embeddingText(title, cleaned string) string {
	if len(cleaned) > 500 {
		cleaned = cleaned[:500]
	}
	return title + "\n" + cleaned
}
