package llm

import "testing"

type keywordPayload struct {
	Keywords []struct {
		Keyword    string  `json:"keyword"`
		Confidence float64 `json:"confidence"`
	} `json:"keywords"`
}

func TestDecodeJSONPlain(t *testing.T) {
	var out keywordPayload
	err := DecodeJSON(`{"keywords":[{"keyword":"elections","confidence":0.9}]}`, &out)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out.Keywords) != 1 || out.Keywords[0].Keyword != "elections" {
		t.Errorf("unexpected payload: %+v", out)
	}
}

func TestDecodeJSONFencedBlock(t *testing.T) {
	text := "Here are the keywords:\n```json\n{\"keywords\":[{\"keyword\":\"drought\",\"confidence\":0.8}]}\n```\nLet me know if you need more."
	var out keywordPayload
	if err := DecodeJSON(text, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out.Keywords) != 1 || out.Keywords[0].Confidence != 0.8 {
		t.Errorf("unexpected payload: %+v", out)
	}
}

func TestDecodeJSONUnlabelledFence(t *testing.T) {
	text := "```\n{\"keywords\":[{\"keyword\":\"mining\",\"confidence\":0.7}]}\n```"
	var out keywordPayload
	if err := DecodeJSON(text, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out.Keywords) != 1 || out.Keywords[0].Keyword != "mining" {
		t.Errorf("unexpected payload: %+v", out)
	}
}

func TestDecodeJSONFirstBraceSubstring(t *testing.T) {
	text := `Sure. The result is {"keywords":[{"keyword":"cholera","confidence":0.95}]} as requested.`
	var out keywordPayload
	if err := DecodeJSON(text, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out.Keywords) != 1 || out.Keywords[0].Keyword != "cholera" {
		t.Errorf("unexpected payload: %+v", out)
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	var out keywordPayload
	if err := DecodeJSON("I could not produce any keywords for this article.", &out); err == nil {
		t.Error("expected error for response without JSON")
	}
	if err := DecodeJSON("   ", &out); err == nil {
		t.Error("expected error for empty response")
	}
}
