// Package quality scores article text with deterministic heuristics.
// The same article always gets the same score, so scores are comparable
// across sources and over time.
package quality

import (
	"math"
	"strings"
	"unicode"
)

// Breakdown holds the per-signal scores behind a quality score.
type Breakdown struct {
	LengthScore      float64 `json:"length_score"`
	ReadabilityScore float64 `json:"readability_score"`
	TitleScore       float64 `json:"title_score"`
	StructureScore   float64 `json:"structure_score"`
}

// Result is the scored article.
type Result struct {
	QualityScore float64   `json:"quality_score"`
	WordCount    int       `json:"word_count"`
	Breakdown    Breakdown `json:"breakdown"`
}

// Score rates content on a 0..1 scale from length, readability, title
// shape and structural signals. Content under 100 characters scores a
// flat 0.3.
func Score(content, title string) Result {
	if len(content) < 100 {
		return Result{
			QualityScore: 0.3,
			WordCount:    len(strings.Fields(content)),
		}
	}

	words := strings.Fields(content)
	wordCount := len(words)
	sentenceCount := strings.Count(content, ".") + strings.Count(content, "!") + strings.Count(content, "?")

	lengthScore := math.Min(float64(wordCount)/500, 1.0)

	// Good news writing runs 15-25 words per sentence
	avgSentenceLen := float64(wordCount) / math.Max(float64(sentenceCount), 1)
	var readabilityScore float64
	switch {
	case avgSentenceLen >= 10 && avgSentenceLen <= 30:
		readabilityScore = 0.8
	case avgSentenceLen < 10:
		readabilityScore = 0.5
	default:
		readabilityScore = 0.4
	}

	titleWords := len(strings.Fields(title))
	var titleScore float64
	switch {
	case titleWords >= 5 && titleWords <= 15:
		titleScore = 1.0
	case titleWords >= 3 && titleWords <= 20:
		titleScore = 0.7
	default:
		titleScore = 0.4
	}

	// Quotes, paragraphs and proper nouns mark real reporting
	structureScore := 0.5
	if sentenceCount >= 3 {
		structureScore += 0.1
	}
	if strings.ContainsAny(content, "\"“") {
		structureScore += 0.1
	}
	if strings.Count(content, "\n") >= 2 {
		structureScore += 0.1
	}
	if capitalisedWords(words, 200) > 5 {
		structureScore += 0.1
	}
	structureScore = math.Min(structureScore, 1.0)

	score := lengthScore*0.30 + readabilityScore*0.30 + titleScore*0.15 + structureScore*0.25
	score = round2(math.Min(math.Max(score, 0), 1))

	return Result{
		QualityScore: score,
		WordCount:    wordCount,
		Breakdown: Breakdown{
			LengthScore:      round2(lengthScore),
			ReadabilityScore: round2(readabilityScore),
			TitleScore:       round2(titleScore),
			StructureScore:   round2(structureScore),
		},
	}
}

func capitalisedWords(words []string, limit int) int {
	if len(words) > limit {
		words = words[:limit]
	}
	n := 0
	for _, w := range words {
		runes := []rune(w)
		if len(runes) > 1 && unicode.IsUpper(runes[0]) {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
