package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fetchInput(t *testing.T, url string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(URLFetcherInput{URL: url})
	if err != nil {
		t.Fatalf("Marshal input failed: %v", err)
	}
	return raw
}

func TestURLFetcher_ExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Test Page</title></head><body>
			<nav>menu stuff</nav>
			<script>var x = 1;</script>
			<p>Actual article body.</p>
			<footer>copyright</footer>
		</body></html>`)
	}))
	defer srv.Close()

	f := NewURLFetcher(5 * time.Second)
	res := f.Call(context.Background(), fetchInput(t, srv.URL))
	if res.Failure != nil {
		t.Fatalf("Expected success, got %+v", res.Failure)
	}

	var out struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(res.Output), &out); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if out.Title != "Test Page" {
		t.Errorf("Expected title %q, got %q", "Test Page", out.Title)
	}
	if !strings.Contains(out.Content, "Actual article body.") {
		t.Errorf("Expected article text, got %q", out.Content)
	}
	if strings.Contains(out.Content, "menu stuff") || strings.Contains(out.Content, "var x") || strings.Contains(out.Content, "copyright") {
		t.Errorf("Expected chrome and scripts stripped, got %q", out.Content)
	}
}

func TestURLFetcher_TruncatesLongContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", strings.Repeat("word ", 5000))
	}))
	defer srv.Close()

	f := NewURLFetcher(5 * time.Second)
	res := f.Call(context.Background(), fetchInput(t, srv.URL))
	if res.Failure != nil {
		t.Fatalf("Expected success, got %+v", res.Failure)
	}

	var out struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(res.Output), &out); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if !strings.HasSuffix(out.Content, truncationMarker) {
		t.Errorf("Expected truncation marker suffix, got tail %q", out.Content[len(out.Content)-60:])
	}
	if len(out.Content) > maxFetchedContentLen+len(truncationMarker) {
		t.Errorf("Content too long: %d", len(out.Content))
	}
}

func TestURLFetcher_RejectsNonHTTPSchemes(t *testing.T) {
	f := NewURLFetcher(time.Second)
	for _, url := range []string{"ftp://example.com", "file:///etc/passwd", "not a url"} {
		res := f.Call(context.Background(), fetchInput(t, url))
		if res.Failure == nil || res.Failure.Kind != FailureMalformedInput {
			t.Errorf("Expected malformed_input for %q, got %+v", url, res)
		}
	}
}

func TestURLFetcher_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewURLFetcher(time.Second)
	res := f.Call(context.Background(), fetchInput(t, srv.URL))
	if res.Failure == nil || res.Failure.Kind != FailureAccessDenied {
		t.Errorf("Expected access_denied, got %+v", res)
	}
}

func TestURLFetcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewURLFetcher(time.Second)
	res := f.Call(context.Background(), fetchInput(t, srv.URL))
	if res.Failure == nil || res.Failure.Kind != FailureUpstreamError {
		t.Errorf("Expected upstream_error, got %+v", res)
	}
}

func TestURLFetcher_UnknownHost(t *testing.T) {
	f := NewURLFetcher(2 * time.Second)
	res := f.Call(context.Background(), fetchInput(t, "http://definitely-not-a-real-host.invalid/"))
	if res.Failure == nil || res.Failure.Kind != FailureNetworkUnreachable {
		t.Errorf("Expected network_unreachable, got %+v", res)
	}
}

func TestClassifyTransportError_GenericFailure(t *testing.T) {
	res := classifyTransportError(errors.New("tls: handshake failure"))
	if res.Failure == nil || res.Failure.Kind != FailureNetworkUnreachable {
		t.Fatalf("Expected network_unreachable, got %+v", res)
	}
	want := "failed to fetch URL: tls: handshake failure"
	if res.Failure.Message != want {
		t.Errorf("Expected message %q, got %q", want, res.Failure.Message)
	}
}

func TestURLFetcher_MalformedInputJSON(t *testing.T) {
	f := NewURLFetcher(time.Second)
	res := f.Call(context.Background(), json.RawMessage(`{"url": 42}`))
	if res.Failure == nil || res.Failure.Kind != FailureMalformedInput {
		t.Errorf("Expected malformed_input, got %+v", res)
	}
}
