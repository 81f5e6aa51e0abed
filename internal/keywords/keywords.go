// Package keywords tags articles against the curated keyword
// dictionary. An LLM proposes matches with country and language context;
// plain substring matching covers the LLM being unavailable. Extraction
// never fails an article: any error degrades to an empty keyword list.
package keywords

import (
	"context"
	"fmt"
	"strings"

	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/edgecache"
	"baobab/internal/llm"
	"baobab/internal/logger"
)

// Country names used for prompt context.
var countryNames = map[string]string{
	"ZW": "Zimbabwe", "ZA": "South Africa", "KE": "Kenya", "NG": "Nigeria",
	"GH": "Ghana", "TZ": "Tanzania", "UG": "Uganda", "RW": "Rwanda",
	"ET": "Ethiopia", "BW": "Botswana", "ZM": "Zambia", "MW": "Malawi",
	"EG": "Egypt", "MA": "Morocco", "NA": "Namibia", "MZ": "Mozambique",
}

// Language hints for countries where coverage is not primarily English.
var languageHints = map[string]string{
	"ZW": "Content may include Shona or Ndebele terms.",
	"TZ": "Content may include Swahili terms.",
	"KE": "Content may include Swahili terms.",
	"MZ": "Content may be in Portuguese.",
	"EG": "Content may include Arabic terms.",
	"MA": "Content may include Arabic or French terms.",
	"GH": "Content may include Twi/Akan terms.",
	"RW": "Content may include Kinyarwanda or French terms.",
	"ET": "Content may include Amharic terms.",
}

const (
	maxKeywords    = 8
	dictionarySize = 200
	promptContent  = 1500
)

// Extractor tags articles against the keyword dictionary.
type Extractor struct {
	store docstore.Store
	cache edgecache.Cache
	ai    llm.Gateway
}

// NewExtractor builds an extractor. cache may be nil when no edge cache
// is available; ai may be nil to force text matching.
func NewExtractor(store docstore.Store, cache edgecache.Cache, ai llm.Gateway) *Extractor {
	return &Extractor{store: store, cache: cache, ai: ai}
}

// Request carries one article through extraction.
type Request struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Category  string `json:"existing_category,omitempty"`
	CountryID string `json:"country_id,omitempty"`
}

// Extract returns up to 8 dictionary keywords matching the article.
// Content under 50 characters yields no keywords.
func (e *Extractor) Extract(ctx context.Context, req Request) []core.ExtractedKeyword {
	if len(req.Content) < 50 {
		return []core.ExtractedKeyword{}
	}

	dictionary := e.loadDictionary(ctx)
	if len(dictionary) == 0 {
		return []core.ExtractedKeyword{}
	}

	extracted := e.extractWithAI(ctx, req, dictionary)

	if len(extracted) == 0 {
		extracted = matchByText(req.Title, req.Content, dictionary)
	}

	if len(extracted) > maxKeywords {
		extracted = extracted[:maxKeywords]
	}
	e.recordUsage(ctx, extracted)
	return extracted
}

// loadDictionary reads enabled keywords by usage, preferring the
// primary store and falling back to the edge cache.
func (e *Extractor) loadDictionary(ctx context.Context) []core.Keyword {
	raw, err := e.store.Find(ctx, docstore.Keywords, docstore.Query{
		Filter: docstore.M{"enabled": true},
		Sort:   docstore.Sort{{Key: "usage_count", Dir: -1}},
		Limit:  dictionarySize,
	})
	if err == nil {
		if dictionary, derr := docstore.Decode[core.Keyword](raw); derr == nil && len(dictionary) > 0 {
			return dictionary
		}
	} else {
		logger.Warn("keyword dictionary load failed, trying edge cache", "error", err)
	}

	if e.cache == nil {
		return nil
	}
	dictionary, err := e.cache.TopKeywords(ctx, dictionarySize)
	if err != nil {
		logger.Warn("edge cache keyword load failed", "error", err)
		return nil
	}
	return dictionary
}

type aiKeyword struct {
	Keyword    string  `json:"keyword"`
	Confidence float64 `json:"confidence"`
}

type aiResponse struct {
	Keywords []aiKeyword `json:"keywords"`
}

func (e *Extractor) extractWithAI(ctx context.Context, req Request, dictionary []core.Keyword) []core.ExtractedKeyword {
	if e.ai == nil {
		return nil
	}

	prompt := buildPrompt(req, dictionary)
	raw, err := e.ai.Complete(ctx, prompt, 500)
	if err != nil {
		logger.Warn("keyword extraction call failed", "error", err)
		return nil
	}
	var parsed aiResponse
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		logger.Warn("keyword extraction returned unparseable output", "error", err)
		return nil
	}

	var extracted []core.ExtractedKeyword
	for _, kw := range parsed.Keywords {
		match := findDictionaryEntry(kw.Keyword, dictionary)
		if match == nil || kw.Confidence <= 0.5 {
			continue
		}
		extracted = append(extracted, core.ExtractedKeyword{
			Keyword:    kw.Keyword,
			Confidence: kw.Confidence,
			Category:   match.CategoryID,
		})
	}
	return extracted
}

func buildPrompt(req Request, dictionary []core.Keyword) string {
	names := make([]string, 0, len(dictionary))
	for _, kw := range dictionary {
		names = append(names, kw.Name)
	}

	countryName := "Africa"
	countryLabel := "Pan-African"
	languageHint := ""
	if req.CountryID != "" {
		if name, ok := countryNames[req.CountryID]; ok {
			countryName = name
		}
		countryLabel = req.CountryID
		languageHint = languageHints[req.CountryID]
	}

	content := req.Content
	if len(content) > promptContent {
		content = content[:promptContent]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this news article and extract relevant keywords.\n\n")
	fmt.Fprintf(&b, "Article Title: %s\n", req.Title)
	fmt.Fprintf(&b, "Article Content: %s\n", content)
	fmt.Fprintf(&b, "Country: %s (%s)\n", countryName, countryLabel)
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	if languageHint != "" {
		fmt.Fprintf(&b, "%s\n", languageHint)
	}
	fmt.Fprintf(&b, "\nAvailable Keywords: %s\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Instructions:\n")
	fmt.Fprintf(&b, "1. Identify the most relevant keywords from the available list that match this article\n")
	fmt.Fprintf(&b, "2. Consider the %s context - local politics, economy, culture\n", countryName)
	fmt.Fprintf(&b, "3. Return max 8 keywords\n")
	fmt.Fprintf(&b, "4. Rate confidence 0.0-1.0 for each keyword\n\n")
	fmt.Fprintf(&b, `Return JSON only, no explanation:%s{"keywords": [{"keyword": "example", "confidence": 0.9}]}`, "\n")
	return b.String()
}

// matchByText is the no-AI fallback: substring match the most used
// dictionary entries against title and content.
func matchByText(title, content string, dictionary []core.Keyword) []core.ExtractedKeyword {
	haystack := strings.ToLower(title + " " + content)
	limit := len(dictionary)
	if limit > 20 {
		limit = 20
	}

	var extracted []core.ExtractedKeyword
	for _, kw := range dictionary[:limit] {
		if kw.Name == "" || !strings.Contains(haystack, strings.ToLower(kw.Name)) {
			continue
		}
		extracted = append(extracted, core.ExtractedKeyword{
			Keyword:    kw.Name,
			Confidence: 0.7,
			Category:   kw.CategoryID,
		})
		if len(extracted) >= maxKeywords {
			break
		}
	}
	return extracted
}

func findDictionaryEntry(name string, dictionary []core.Keyword) *core.Keyword {
	lower := strings.ToLower(name)
	for i := range dictionary {
		if strings.ToLower(dictionary[i].Name) == lower {
			return &dictionary[i]
		}
	}
	return nil
}

func (e *Extractor) recordUsage(ctx context.Context, extracted []core.ExtractedKeyword) {
	for _, kw := range extracted {
		if kw.Keyword == "" {
			continue
		}
		err := e.store.UpdateOne(ctx, docstore.Keywords,
			docstore.M{"name": kw.Keyword},
			docstore.M{"$inc": docstore.M{"usage_count": 1}},
		)
		if err != nil {
			logger.Warn("keyword usage update failed", "keyword", kw.Keyword, "error", err)
		}
	}
}
