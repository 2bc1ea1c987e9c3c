package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func searchInput(t *testing.T, query string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(WebSearchInput{Query: query})
	if err != nil {
		t.Fatalf("Marshal input failed: %v", err)
	}
	return raw
}

func TestWebSearch_ReturnsResults(t *testing.T) {
	var gotReq searchAPIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("Failed to decode search request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"title":"Go","url":"https://go.dev","content":"The Go programming language"},
			{"title":"Docs","url":"https://go.dev/doc","content":"Documentation"}
		]}`))
	}))
	defer srv.Close()

	s := NewWebSearch("key-123", 5*time.Second)
	s.SetEndpoint(srv.URL)

	res := s.Call(context.Background(), searchInput(t, "golang"))
	if res.Failure != nil {
		t.Fatalf("Expected success, got %+v", res.Failure)
	}
	if gotReq.Query != "golang" || gotReq.APIKey != "key-123" {
		t.Errorf("Unexpected upstream request: %+v", gotReq)
	}
	if gotReq.MaxResults != searchMaxResults {
		t.Errorf("Expected max_results %d, got %d", searchMaxResults, gotReq.MaxResults)
	}

	var results []map[string]string
	if err := json.Unmarshal([]byte(res.Output), &results); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if len(results) != 2 || results[0]["title"] != "Go" {
		t.Errorf("Unexpected results: %+v", results)
	}
}

func TestWebSearch_EmptyQuery(t *testing.T) {
	s := NewWebSearch("key", time.Second)
	res := s.Call(context.Background(), searchInput(t, ""))
	if res.Failure == nil || res.Failure.Kind != FailureMalformedInput {
		t.Errorf("Expected malformed_input, got %+v", res)
	}
}

func TestWebSearch_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewWebSearch("bad-key", time.Second)
	s.SetEndpoint(srv.URL)

	res := s.Call(context.Background(), searchInput(t, "anything"))
	if res.Failure == nil || res.Failure.Kind != FailureAccessDenied {
		t.Errorf("Expected access_denied, got %+v", res)
	}
}

func TestWebSearch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebSearch("key", time.Second)
	s.SetEndpoint(srv.URL)

	res := s.Call(context.Background(), searchInput(t, "anything"))
	if res.Failure == nil || res.Failure.Kind != FailureUpstreamError {
		t.Errorf("Expected upstream_error, got %+v", res)
	}
}
