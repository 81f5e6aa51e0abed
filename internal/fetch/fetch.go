// Package fetch provides the outbound HTTP fetcher used for feed and
// page retrieval. Everything that pulls bytes from a publisher goes
// through the Fetcher interface so tests can swap in canned responses.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "Baobab News Collector/1.0"

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client is the production Fetcher backed by net/http. Redirects are
// followed by default.
type Client struct {
	http *http.Client
}

// NewClient creates a fetcher with a per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch performs a GET and returns the response body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}
	return body, nil
}

// Static is a test fetcher serving fixed bodies by URL.
type Static struct {
	Responses map[string][]byte
	Err       error
}

// Fetch returns the canned body for the URL, or the configured error.
func (s *Static) Fetch(_ context.Context, url string) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	body, ok := s.Responses[url]
	if !ok {
		return nil, fmt.Errorf("no response configured for %s", url)
	}
	return body, nil
}
