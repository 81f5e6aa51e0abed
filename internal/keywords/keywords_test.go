package keywords

import (
	"context"
	"errors"
	"strings"
	"testing"

	"baobab/internal/core"
	"baobab/internal/docstore"
	"baobab/internal/llm"
)

func seedDictionary(t *testing.T, store *docstore.Memory) {
	t.Helper()
	err := store.Seed(docstore.Keywords, []core.Keyword{
		{ID: "kw-1", Name: "elections", CategoryID: "politics", UsageCount: 50, Enabled: true},
		{ID: "kw-2", Name: "inflation", CategoryID: "business", UsageCount: 40, Enabled: true},
		{ID: "kw-3", Name: "mining", CategoryID: "business", UsageCount: 30, Enabled: true},
		{ID: "kw-4", Name: "drought", CategoryID: "climate", UsageCount: 20, Enabled: true},
		{ID: "kw-5", Name: "retired-term", CategoryID: "misc", UsageCount: 99, Enabled: false},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

const articleContent = `Inflation pressures eased slightly in July as food prices stabilised ` +
	`across major urban markets, the statistics agency reported on Tuesday.`

func TestExtractAcceptsDictionaryMatches(t *testing.T) {
	store := docstore.NewMemory()
	seedDictionary(t, store)
	ai := &llm.Fake{Completions: []string{
		`{"keywords": [
			{"keyword": "inflation", "confidence": 0.9},
			{"keyword": "bitcoin", "confidence": 0.95},
			{"keyword": "mining", "confidence": 0.4}
		]}`,
	}}

	e := NewExtractor(store, nil, ai)
	got := e.Extract(context.Background(), Request{
		Title:     "Inflation Eases in July",
		Content:   articleContent,
		CountryID: "ZW",
	})

	if len(got) != 1 {
		t.Fatalf("keywords = %+v, want only the confident dictionary match", got)
	}
	if got[0].Keyword != "inflation" || got[0].Category != "business" {
		t.Errorf("keyword = %+v", got[0])
	}
	if got[0].Confidence != 0.9 {
		t.Errorf("confidence = %v", got[0].Confidence)
	}
}

func TestExtractPromptCarriesCountryContext(t *testing.T) {
	store := docstore.NewMemory()
	seedDictionary(t, store)
	ai := &llm.Fake{Completions: []string{`{"keywords": []}`}}

	e := NewExtractor(store, nil, ai)
	e.Extract(context.Background(), Request{
		Title:     "Harvest Update",
		Content:   articleContent,
		Category:  "business",
		CountryID: "ZW",
	})

	if len(ai.Prompts) != 1 {
		t.Fatalf("prompts = %d", len(ai.Prompts))
	}
	prompt := ai.Prompts[0]
	if !strings.Contains(prompt, "Zimbabwe (ZW)") {
		t.Errorf("prompt missing country context:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Shona or Ndebele") {
		t.Errorf("prompt missing language hint:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Category: business") {
		t.Errorf("prompt missing category:\n%s", prompt)
	}
	if !strings.Contains(prompt, "elections, inflation, mining, drought") {
		t.Errorf("prompt missing dictionary (by usage, enabled only):\n%s", prompt)
	}
	if strings.Contains(prompt, "retired-term") {
		t.Errorf("disabled keyword leaked into prompt:\n%s", prompt)
	}
}

func TestExtractFallsBackToTextMatching(t *testing.T) {
	store := docstore.NewMemory()
	seedDictionary(t, store)
	ai := &llm.Fake{Err: errors.New("gateway down")}

	e := NewExtractor(store, nil, ai)
	got := e.Extract(context.Background(), Request{
		Title:   "Mining Sector Update",
		Content: articleContent,
	})

	keywordSet := make(map[string]float64)
	for _, kw := range got {
		keywordSet[kw.Keyword] = kw.Confidence
	}
	if keywordSet["inflation"] != 0.7 {
		t.Errorf("expected inflation at 0.7 from text match, got %+v", got)
	}
	if keywordSet["mining"] != 0.7 {
		t.Errorf("expected mining matched from title, got %+v", got)
	}
	if _, ok := keywordSet["elections"]; ok {
		t.Errorf("elections not in text but extracted: %+v", got)
	}
}

func TestExtractShortContent(t *testing.T) {
	store := docstore.NewMemory()
	seedDictionary(t, store)
	e := NewExtractor(store, nil, &llm.Fake{})

	got := e.Extract(context.Background(), Request{Title: "T", Content: "too short"})
	if len(got) != 0 {
		t.Errorf("keywords = %+v, want none for short content", got)
	}
}

func TestExtractSoftFailsOnGarbageOutput(t *testing.T) {
	store := docstore.NewMemory()
	// Dictionary whose terms do not appear in the article, so the text
	// fallback also yields nothing
	err := store.Seed(docstore.Keywords, []core.Keyword{
		{ID: "kw-1", Name: "quantum", CategoryID: "science", UsageCount: 5, Enabled: true},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	ai := &llm.Fake{Completions: []string{"I could not find any keywords, sorry!"}}

	e := NewExtractor(store, nil, ai)
	got := e.Extract(context.Background(), Request{Title: "Update", Content: articleContent})
	if len(got) != 0 {
		t.Errorf("keywords = %+v, want empty on unparseable output", got)
	}
}

func TestExtractIncrementsUsage(t *testing.T) {
	store := docstore.NewMemory()
	seedDictionary(t, store)
	ai := &llm.Fake{Completions: []string{
		`{"keywords": [{"keyword": "inflation", "confidence": 0.9}]}`,
	}}

	e := NewExtractor(store, nil, ai)
	e.Extract(context.Background(), Request{Title: "Prices", Content: articleContent})

	raw, err := store.FindOne(context.Background(), docstore.Keywords, docstore.M{"name": "inflation"})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	kw, err := docstore.DecodeOne[core.Keyword](raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if kw.UsageCount != 41 {
		t.Errorf("usage_count = %d, want 41", kw.UsageCount)
	}
}
