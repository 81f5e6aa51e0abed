// Package vectorindex is the adapter for the external vector index used
// by semantic search. Vectors are keyed by logical ids of the form
// "article_<id>"; upserts are best-effort.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"baobab/internal/config"
)

// Match is one nearest-neighbour hit.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Vector is an entry to upsert.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Index is the capability interface over the vector store.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, vectors []Vector) error
}

// Client implements Index over the index's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds an index client from configuration.
func NewClient(cfg config.Vector) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.IndexURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type queryRequest struct {
	Vector         []float32 `json:"vector"`
	TopK           int       `json:"topK"`
	ReturnMetadata bool      `json:"returnMetadata"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

// Query returns the topK nearest matches for the vector.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	payload, err := json.Marshal(queryRequest{Vector: vector, TopK: topK, ReturnMetadata: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	var decoded queryResponse
	if err := c.post(ctx, "/query", payload, &decoded); err != nil {
		return nil, err
	}
	return decoded.Matches, nil
}

// Upsert writes vectors into the index.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	payload, err := json.Marshal(map[string]any{"vectors": vectors})
	if err != nil {
		return fmt.Errorf("failed to encode upsert: %w", err)
	}
	return c.post(ctx, "/upsert", payload, nil)
}

func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vector index request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vector index returned status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode vector index response: %w", err)
		}
	}
	return nil
}

// Memory is an in-process Index ranking by cosine similarity, for tests.
type Memory struct {
	mu      sync.Mutex
	vectors map[string]Vector
	Err     error
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{vectors: make(map[string]Vector)}
}

// Upsert stores the vectors.
func (m *Memory) Upsert(_ context.Context, vectors []Vector) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		m.vectors[v.ID] = v
	}
	return nil
}

// Query ranks stored vectors by cosine similarity to the query vector.
func (m *Memory) Query(_ context.Context, vector []float32, topK int) ([]Match, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	matches := make([]Match, 0, len(m.vectors))
	for id, v := range m.vectors {
		matches = append(matches, Match{
			ID:       id,
			Score:    Cosine(vector, v.Values),
			Metadata: v.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Cosine computes the cosine similarity between two vectors. Zero norms
// count as 1 so degenerate vectors score 0 rather than dividing by zero.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	na = math.Sqrt(na)
	nb = math.Sqrt(nb)
	if na == 0 {
		na = 1
	}
	if nb == 0 {
		nb = 1
	}
	return dot / (na * nb)
}
