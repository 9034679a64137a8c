// Package search implements the "search" toolbox (spec §4.3's ToolName
// enum, §4.12 of the expanded spec): a single search_web callable backed
// by a pluggable Engine capability, wrapping a configurable HTTP search
// API over the standard library net/http.
//
// No ecosystem search-client library appears anywhere in the retrieval
// pack (see DESIGN.md's justification for this package's stdlib HTTP
// use), so this toolbox is grounded structurally on
// internal/toolsys/mcp/transport_http.go's request/decode shape rather
// than on a teacher search package.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is one search hit returned by an Engine.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Engine is the pluggable capability a Toolbox dispatches search_web
// calls to (spec §9's capability-set list: "SearchEngine").
type Engine interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// HTTPEngine implements Engine against a configurable search API
// endpoint that accepts {"q": query, "max_results": n} and returns
// {"results": [{"title", "url", "snippet"}]}.
type HTTPEngine struct {
	Endpoint string
	APIKey   string
	client   *http.Client
}

// NewHTTPEngine builds an HTTPEngine with a bounded request timeout.
func NewHTTPEngine(endpoint, apiKey string) *HTTPEngine {
	return &HTTPEngine{
		Endpoint: endpoint,
		APIKey:   apiKey,
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

type searchRequest struct {
	Query      string `json:"q"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search posts query to the configured endpoint and returns at most
// maxResults hits.
func (e *HTTPEngine) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if e.Endpoint == "" {
		return nil, fmt.Errorf("search: no endpoint configured")
	}
	body, err := json.Marshal(searchRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("search: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search: endpoint returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}
	if maxResults > 0 && len(parsed.Results) > maxResults {
		parsed.Results = parsed.Results[:maxResults]
	}
	return parsed.Results, nil
}
