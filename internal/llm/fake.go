package llm

import (
	"context"
	"fmt"
)

// Fake is an in-memory Gateway for tests. Completions are served in
// order; embeddings come from the Embeddings map keyed by input text.
type Fake struct {
	Completions []string
	Embeddings  map[string][]float32
	Err         error

	Prompts []string
	calls   int
}

// Complete returns the next canned completion.
func (f *Fake) Complete(_ context.Context, prompt string, _ int) (string, error) {
	f.Prompts = append(f.Prompts, prompt)
	if f.Err != nil {
		return "", f.Err
	}
	if f.calls >= len(f.Completions) {
		return "", fmt.Errorf("no completion configured for call %d", f.calls+1)
	}
	text := f.Completions[f.calls]
	f.calls++
	return text, nil
}

// ExtractJSON completes and decodes like the real client.
func (f *Fake) ExtractJSON(ctx context.Context, prompt string, maxTokens int, out any) error {
	text, err := f.Complete(ctx, prompt, maxTokens)
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}

// Embed returns the canned embedding for the text.
func (f *Fake) Embed(_ context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if emb, ok := f.Embeddings[text]; ok {
		return emb, nil
	}
	return nil, fmt.Errorf("no embedding configured for %q", text)
}
