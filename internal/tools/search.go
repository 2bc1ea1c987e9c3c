package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/invopop/jsonschema"
)

const (
	webSearchName = "web_search"

	defaultSearchEndpoint = "https://api.tavily.com/search"
	searchMaxResults      = 3
)

// WebSearchInput is the declared input for the web_search tool.
type WebSearchInput struct {
	Query string `json:"query" jsonschema:"required,description=The search query to look up on the web"`
}

// WebSearch queries the Tavily search API.
type WebSearch struct {
	apiKey   string
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// NewWebSearch creates the web_search tool with the given hard timeout.
func NewWebSearch(apiKey string, timeout time.Duration) *WebSearch {
	return &WebSearch{
		apiKey:   apiKey,
		endpoint: defaultSearchEndpoint,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
	}
}

// SetEndpoint overrides the search API endpoint. Used by tests.
func (s *WebSearch) SetEndpoint(endpoint string) { s.endpoint = endpoint }

// Name implements Tool.
func (s *WebSearch) Name() string { return webSearchName }

// Description implements Tool.
func (s *WebSearch) Description() string {
	return "Searches the web for current information. Use this for questions about " +
		"recent events or anything outside your knowledge."
}

// InputSchema implements Tool.
func (s *WebSearch) InputSchema() *jsonschema.Schema {
	return ReflectSchema[WebSearchInput]()
}

// Timeout implements Tool.
func (s *WebSearch) Timeout() time.Duration { return s.timeout }

type searchAPIRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchAPIResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Call implements Tool.
func (s *WebSearch) Call(ctx context.Context, input json.RawMessage) Result {
	var params WebSearchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return Fail(FailureMalformedInput, "invalid web_search input: %v", err)
	}
	if params.Query == "" {
		return Fail(FailureMalformedInput, "search query is required")
	}

	body, err := json.Marshal(searchAPIRequest{
		APIKey:     s.apiKey,
		Query:      params.Query,
		MaxResults: searchMaxResults,
	})
	if err != nil {
		return Fail(FailureMalformedInput, "failed to encode search request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Fail(FailureMalformedInput, "failed to build search request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Fail(FailureAccessDenied, "search API rejected the request: HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Fail(FailureUpstreamError, "search API failed: HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Fail(FailureUpstreamError, "failed to read search response: %v", err)
	}

	var parsed searchAPIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Fail(FailureUpstreamError, "failed to decode search response: %v", err)
	}

	out, err := json.Marshal(parsed.Results)
	if err != nil {
		return Fail(FailureUpstreamError, "failed to encode search results: %v", err)
	}
	return Success(string(out))
}
