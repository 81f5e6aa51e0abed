package quality

import (
	"strings"
	"testing"
)

const goodArticle = `The Reserve Bank of Zimbabwe announced new monetary measures on Monday. ` +
	`Governor John Mushayavanhu said the measures would stabilise the local currency. ` +
	`"We are committed to price stability," he told reporters in Harare. ` + "\n\n" +
	`Economists welcomed the move. The Confederation of Zimbabwe Industries said manufacturers ` +
	`had struggled with exchange rate volatility for months. Analysts at three regional banks ` +
	`predicted inflation would ease before the end of the year.`

func TestScoreShortContent(t *testing.T) {
	result := Score("Too short to score.", "A Title Here For This")

	if result.QualityScore != 0.3 {
		t.Errorf("score = %v, want 0.3", result.QualityScore)
	}
	if result.Breakdown != (Breakdown{}) {
		t.Errorf("breakdown should be zero for short content: %+v", result.Breakdown)
	}
	if result.WordCount != 4 {
		t.Errorf("word count = %d, want 4", result.WordCount)
	}
}

func TestScoreEmptyContent(t *testing.T) {
	result := Score("", "")
	if result.QualityScore != 0.3 {
		t.Errorf("score = %v, want 0.3", result.QualityScore)
	}
	if result.WordCount != 0 {
		t.Errorf("word count = %d, want 0", result.WordCount)
	}
}

func TestScoreWellFormedArticle(t *testing.T) {
	result := Score(goodArticle, "Reserve Bank Announces New Monetary Measures")

	if result.QualityScore <= 0.3 {
		t.Errorf("score = %v, expected above the short-content floor", result.QualityScore)
	}
	if result.QualityScore > 1.0 {
		t.Errorf("score = %v, exceeds 1.0", result.QualityScore)
	}
	if result.Breakdown.ReadabilityScore != 0.8 {
		t.Errorf("readability = %v, want 0.8 for normal sentence length", result.Breakdown.ReadabilityScore)
	}
	if result.Breakdown.TitleScore != 1.0 {
		t.Errorf("title score = %v, want 1.0 for a 6-word title", result.Breakdown.TitleScore)
	}
	// Quotes, paragraphs?, sentences and proper nouns all present
	if result.Breakdown.StructureScore < 0.8 {
		t.Errorf("structure = %v, want >= 0.8", result.Breakdown.StructureScore)
	}
}

func TestScoreDeterministic(t *testing.T) {
	title := "Drought Response Plan Unveiled In Gaborone"
	a := Score(goodArticle, title)
	b := Score(goodArticle, title)
	if a != b {
		t.Errorf("same input produced different scores: %+v vs %+v", a, b)
	}
}

func TestScoreTitleBands(t *testing.T) {
	cases := []struct {
		title string
		want  float64
	}{
		{"Five Word Title Right Here", 1.0},
		{"Three Word Title", 0.7},
		{"Short", 0.4},
		{"", 0.4},
	}
	for _, tc := range cases {
		result := Score(goodArticle, tc.title)
		if result.Breakdown.TitleScore != tc.want {
			t.Errorf("title %q: score = %v, want %v", tc.title, result.Breakdown.TitleScore, tc.want)
		}
	}
}

func TestScoreChoppySentences(t *testing.T) {
	choppy := strings.Repeat("Short one. ", 40)
	result := Score(choppy, "A Reasonable Five Word Title")
	if result.Breakdown.ReadabilityScore != 0.5 {
		t.Errorf("readability = %v, want 0.5 for choppy text", result.Breakdown.ReadabilityScore)
	}
}

func TestScoreDenseSentences(t *testing.T) {
	dense := strings.Repeat("word ", 400) + "."
	result := Score(dense, "A Reasonable Five Word Title")
	if result.Breakdown.ReadabilityScore != 0.4 {
		t.Errorf("readability = %v, want 0.4 for dense text", result.Breakdown.ReadabilityScore)
	}
}

func TestScoreLengthSaturates(t *testing.T) {
	long := strings.Repeat("The committee reviewed the annual report in detail today. ", 100)
	result := Score(long, "Committee Reviews Annual Report Findings")
	if result.Breakdown.LengthScore != 1.0 {
		t.Errorf("length = %v, want 1.0 for 900+ words", result.Breakdown.LengthScore)
	}
}
