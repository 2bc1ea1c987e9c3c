package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/invopop/jsonschema"
)

const (
	urlFetcherName = "url_fetcher"

	// maxFetchedContentLen caps extracted page text before it is handed to
	// the model.
	maxFetchedContentLen = 10000
	truncationMarker     = "...\n[Content truncated due to length]"
)

// URLFetcherInput is the declared input for the url_fetcher tool.
type URLFetcherInput struct {
	URL string `json:"url" jsonschema:"required,description=The complete URL to fetch (must start with http:// or https://)"`
}

// URLFetcher fetches a web page and extracts its readable text content.
type URLFetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewURLFetcher creates the url_fetcher tool with the given hard timeout.
func NewURLFetcher(timeout time.Duration) *URLFetcher {
	return &URLFetcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Name implements Tool.
func (f *URLFetcher) Name() string { return urlFetcherName }

// Description implements Tool.
func (f *URLFetcher) Description() string {
	return "Fetches and extracts text content from a given URL. Use this when the user " +
		"provides a direct link or asks you to read or summarize a specific webpage. " +
		"Input must be a valid HTTP/HTTPS URL."
}

// InputSchema implements Tool.
func (f *URLFetcher) InputSchema() *jsonschema.Schema {
	return ReflectSchema[URLFetcherInput]()
}

// Timeout implements Tool.
func (f *URLFetcher) Timeout() time.Duration { return f.timeout }

// Call implements Tool. Only http and https URLs are permitted; extracted
// text is capped and marked when truncated.
func (f *URLFetcher) Call(ctx context.Context, input json.RawMessage) Result {
	var params URLFetcherInput
	if err := json.Unmarshal(input, &params); err != nil {
		return Fail(FailureMalformedInput, "invalid url_fetcher input: %v", err)
	}

	parsed, err := url.Parse(params.URL)
	if err != nil {
		return Fail(FailureMalformedInput, "invalid URL: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Fail(FailureMalformedInput, "invalid URL protocol, only HTTP and HTTPS are supported")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return Fail(FailureMalformedInput, "invalid URL: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LoomFetcher/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return Fail(FailureAccessDenied, "access denied, the website blocked our request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Fail(FailureUpstreamError, "failed to fetch URL: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Fail(FailureUpstreamError, "failed to parse page: %v", err)
	}

	doc.Find("script, style, nav, header, footer, aside, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").Text())
	if title == "" {
		title = "No title"
	}

	content := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(content) > maxFetchedContentLen {
		content = content[:maxFetchedContentLen] + truncationMarker
	}

	out, err := json.Marshal(map[string]any{
		"url":     params.URL,
		"title":   title,
		"content": content,
		"length":  len(content),
	})
	if err != nil {
		return Fail(FailureUpstreamError, "failed to encode page content: %v", err)
	}
	return Success(string(out))
}

func classifyTransportError(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return Fail(FailureTimeout, "request timed out, the website was too slow to respond")
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Fail(FailureNetworkUnreachable, "URL not found, the domain does not exist")
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Fail(FailureNetworkUnreachable, "connection refused, the server is not accepting connections")
	}

	return Fail(FailureNetworkUnreachable, "failed to fetch URL: %v", err)
}
