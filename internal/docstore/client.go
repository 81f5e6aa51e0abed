package docstore

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
)

// Client implements Store over the doc-store RPC proxy.
type Client struct {
	baseURL  string
	secret   string
	database string
	http     *http.Client
}

// NewClient builds a proxy client from configuration.
func NewClient(cfg config.Mongo) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.ProxyURL, "/"),
		secret:   cfg.ProxySecret,
		database: cfg.Database,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

type rpcRequest struct {
	Action     string          `json:"action"`
	Collection string          `json:"collection"`
	Filter     M               `json:"filter,omitempty"`
	Projection M               `json:"projection,omitempty"`
	Sort       Sort            `json:"sort,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Skip       int             `json:"skip,omitempty"`
	Pipeline   []M             `json:"pipeline,omitempty"`
	Documents  json.RawMessage `json:"documents,omitempty"`
	Update     M               `json:"update,omitempty"`
}

type rpcResponse struct {
	Documents []json.RawMessage `json:"documents"`
	Document  json.RawMessage   `json:"document"`
	Total     int               `json:"total"`
	Error     string            `json:"error"`
}

// Find returns raw documents matching the query.
func (c *Client) Find(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	resp, err := c.call(ctx, rpcRequest{
		Action:     "find",
		Collection: collection,
		Filter:     orEmpty(q.Filter),
		Projection: q.Projection,
		Sort:       q.Sort,
		Limit:      limit,
		Skip:       q.Skip,
	})
	if err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// FindOne returns the first document matching the filter, or nil.
func (c *Client) FindOne(ctx context.Context, collection string, filter M) (json.RawMessage, error) {
	resp, err := c.call(ctx, rpcRequest{
		Action:     "findOne",
		Collection: collection,
		Filter:     orEmpty(filter),
	})
	if err != nil {
		return nil, err
	}
	return resp.Document, nil
}

// Count returns the number of documents matching the filter.
func (c *Client) Count(ctx context.Context, collection string, filter M) (int, error) {
	resp, err := c.call(ctx, rpcRequest{
		Action:     "count",
		Collection: collection,
		Filter:     orEmpty(filter),
	})
	if err != nil {
		return 0, err
	}
	return resp.Total, nil
}

// Aggregate runs an aggregation pipeline on the proxy.
func (c *Client) Aggregate(ctx context.Context, collection string, pipeline []M) ([]json.RawMessage, error) {
	resp, err := c.call(ctx, rpcRequest{
		Action:     "aggregate",
		Collection: collection,
		Pipeline:   pipeline,
	})
	if err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// InsertMany writes a batch of documents. The batch is treated
// atomically by the proxy; there are no partial-visibility guarantees
// across batches.
func (c *Client) InsertMany(ctx context.Context, collection string, docs any) error {
	encoded, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode documents: %w", err)
	}
	_, err = c.call(ctx, rpcRequest{
		Action:     "insertMany",
		Collection: collection,
		Documents:  encoded,
	})
	return err
}

// UpdateOne applies an update document to the first match.
func (c *Client) UpdateOne(ctx context.Context, collection string, filter, update M) error {
	_, err := c.call(ctx, rpcRequest{
		Action:     "updateOne",
		Collection: collection,
		Filter:     orEmpty(filter),
		Update:     update,
	})
	return err
}

func (c *Client) call(ctx context.Context, body rpcRequest) (*rpcResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", body.Action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
	if c.database != "" {
		req.Header.Set("X-Database", c.database)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doc-store %s failed: %w", body.Action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", body.Action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doc-store %s returned status %d: %s", body.Action, resp.StatusCode, truncate(string(raw), 200))
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", body.Action, err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("doc-store %s error: %s", body.Action, decoded.Error)
	}
	return &decoded, nil
}

func orEmpty(filter M) M {
	if filter == nil {
		return M{}
	}
	return filter
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
