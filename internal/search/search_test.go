package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEngineSearchTruncatesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "weather today" {
			t.Errorf("unexpected query: %q", req.Query)
		}
		_ = json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "a", URL: "https://a", Snippet: "..."},
			{Title: "b", URL: "https://b", Snippet: "..."},
			{Title: "c", URL: "https://c", Snippet: "..."},
		}})
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, "")
	results, err := engine.Search(context.Background(), "weather today", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected truncation to 2 results, got %d", len(results))
	}
}

func TestHTTPEngineSearchRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, "")
	if _, err := engine.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}

func TestHTTPEngineSearchRequiresEndpoint(t *testing.T) {
	engine := NewHTTPEngine("", "")
	if _, err := engine.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected an error with no endpoint configured")
	}
}
