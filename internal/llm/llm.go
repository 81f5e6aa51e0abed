// Package llm is the adapter for the external LLM gateway. Requests use
// the gateway's Messages-style JSON envelope; responses are parsed
// tolerantly (plain JSON, fenced ```json blocks, or the first {...}
// substring) because model output is not guaranteed to be clean.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"baobab/internal/config"
	"baobab/internal/logger"
)

const anthropicVersion = "2023-06-01"

// Gateway is the capability interface consumed by the keyword extractor,
// search insights and the enrichment pipeline.
type Gateway interface {
	// Complete sends a prompt and returns the text response.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
	// ExtractJSON sends a prompt and decodes the JSON in the response
	// into out.
	ExtractJSON(ctx context.Context, prompt string, maxTokens int, out any) error
	// Embed returns a vector embedding for the text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client talks to the AI gateway over HTTP.
type Client struct {
	gatewayURL   string
	gatewayID    string
	apiKey       string
	model        string
	maxRetries   int
	embeddingURL string
	http         *http.Client
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.AI) *Client {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	return &Client{
		gatewayURL:   strings.TrimRight(cfg.GatewayURL, "/"),
		gatewayID:    cfg.GatewayID,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		maxRetries:   retries,
		embeddingURL: cfg.EmbeddingURL,
		http:         &http.Client{Timeout: 60 * time.Second},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type gatewayRequest struct {
	Provider string            `json:"provider"`
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers"`
	Query    struct {
		Model     string    `json:"model"`
		MaxTokens int       `json:"max_tokens"`
		Messages  []message `json:"messages"`
	} `json:"query"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends a prompt through the gateway and returns the text of
// the first content block. Attempts are bounded by the configured retry
// budget.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	reqBody := gatewayRequest{
		Provider: "anthropic",
		Endpoint: "messages",
		Headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": anthropicVersion,
		},
	}
	reqBody.Query.Model = c.model
	reqBody.Query.MaxTokens = maxTokens
	reqBody.Query.Messages = []message{{Role: "user", Content: prompt}}

	payload, err := json.Marshal([]gatewayRequest{reqBody})
	if err != nil {
		return "", fmt.Errorf("failed to encode gateway request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.gatewayURL, c.gatewayID)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		text, err := c.post(ctx, url, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		logger.Warn("LLM call failed", "attempt", attempt+1, "error", err.Error())
	}
	return "", fmt.Errorf("llm call failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, url string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var decoded messagesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if len(decoded.Content) == 0 {
		return "", fmt.Errorf("gateway response had no content blocks")
	}
	return decoded.Content[0].Text, nil
}

// ExtractJSON completes the prompt and decodes the JSON it finds in the
// response into out.
func (c *Client) ExtractJSON(ctx context.Context, prompt string, maxTokens int, out any) error {
	text, err := c.Complete(ctx, prompt, maxTokens)
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}

// DecodeJSON parses JSON out of model text. It tries a direct parse,
// then fenced code blocks, then the first {...} substring.
func DecodeJSON(text string, out any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty response")
	}

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), out); err == nil {
				return nil
			}
		}
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), out); err == nil {
				return nil
			}
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no parseable JSON in response: %s", truncate(text, 200))
}

type embeddingResponse struct {
	Data [][]float32 `json:"data"`
}

// Embed requests a vector embedding from the embedding endpoint.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embeddingURL == "" {
		return nil, fmt.Errorf("embedding endpoint not configured")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.embeddingURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned status %d", resp.StatusCode)
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0]) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return decoded.Data[0], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
