package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"research-agent/internal/core"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

const depthCostPerQuery = 0.008

// DepthBackend queries Tavily, an authoritative/academic-leaning search
// API, paid per call. Uses the same rate-limited http.Client + url.Values
// request shape as the other backends, swapped to Tavily's POST/JSON
// contract and core.SearchResult output.
type DepthBackend struct {
	client   *http.Client
	governor *govern.Governor
	apiKey   string
	baseURL  string
}

// NewDepthBackend reads its API key from TAVILY_API_KEY.
func NewDepthBackend(g *govern.Governor) *DepthBackend {
	return &DepthBackend{
		client:   &http.Client{Timeout: 20 * time.Second},
		governor: g,
		apiKey:   os.Getenv("TAVILY_API_KEY"),
		baseURL:  "https://api.tavily.com/search",
	}
}

func (b *DepthBackend) Name() core.SearchBackend   { return core.BackendTavily }
func (b *DepthBackend) Horizon() core.Horizon      { return core.HorizonDepth }
func (b *DepthBackend) CostPerQuery() float64      { return depthCostPerQuery }
func (b *DepthBackend) SupportsCitations() bool    { return true }

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search absorbs every failure mode (missing key, network error,
// non-200, decode error) and returns nil, matching the uniform backend
// contract; a BackendError is logged for each.
func (b *DepthBackend) Search(ctx context.Context, query string, maxResults int) []core.SearchResult {
	if b.apiKey == "" {
		b.logFailure(query, "config", "TAVILY_API_KEY not set")
		return nil
	}
	if err := b.governor.Acquire(ctx, "web"); err != nil {
		b.logFailure(query, "rate_limit", err.Error())
		return nil
	}

	results, ok := govern.WithTimeout(ctx, govern.DefaultFeedDiscoveryTimeout, "web", func(ctx context.Context) ([]core.SearchResult, error) {
		return b.doSearch(ctx, query, maxResults)
	})
	if !ok {
		b.logFailure(query, "timeout_or_error", "request did not complete")
		return nil
	}
	return results
}

func (b *DepthBackend) doSearch(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error) {
	payload, err := json.Marshal(tavilyRequest{
		APIKey:        b.apiKey,
		Query:         query,
		SearchDepth:   "advanced",
		MaxResults:    maxResults,
		IncludeAnswer: false,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]core.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, core.SearchResult{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
			Backend: core.BackendTavily,
			Score:   r.Score,
			Domain:  extractDomain(r.URL),
		})
	}
	return results, nil
}

func (b *DepthBackend) HealthCheck(ctx context.Context) core.HealthStatus {
	if b.apiKey == "" {
		return core.HealthFailed
	}
	return core.HealthOK
}

func (b *DepthBackend) logFailure(query, kind, detail string) {
	err := &BackendError{Query: query, Kind: kind, Detail: detail}
	logger.Warn("depth backend absorbed failure", "query", query, "kind", kind, "detail", detail, "error", err.Error())
}

func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
