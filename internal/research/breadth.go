package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"research-agent/internal/core"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

// BreadthBackend queries a self-hosted SearXNG metasearch instance: free,
// aggregating many underlying engines. Uses a rate-limited http.Client
// hitting a public JSON search endpoint; SearXNG's JSON format lets this
// adapter skip HTML scraping entirely.
type BreadthBackend struct {
	client   *http.Client
	governor *govern.Governor
	baseURL  string

	// lastEngines records, per call, which underlying engines contributed
	// at least one result -- "tracks which engines responded".
	lastEngines []string
}

// NewBreadthBackend targets the given SearXNG instance base URL.
func NewBreadthBackend(g *govern.Governor, baseURL string) *BreadthBackend {
	return &BreadthBackend{
		client:   &http.Client{Timeout: 15 * time.Second},
		governor: g,
		baseURL:  baseURL,
	}
}

func (b *BreadthBackend) Name() core.SearchBackend { return core.BackendSearXNG }
func (b *BreadthBackend) Horizon() core.Horizon    { return core.HorizonBreadth }
func (b *BreadthBackend) CostPerQuery() float64    { return 0 }
func (b *BreadthBackend) SupportsCitations() bool  { return false }

type searxngResponse struct {
	Results []struct {
		Title   string   `json:"title"`
		URL     string   `json:"url"`
		Content string   `json:"content"`
		Engines []string `json:"engines"`
	} `json:"results"`
}

func (b *BreadthBackend) Search(ctx context.Context, query string, maxResults int) []core.SearchResult {
	if b.baseURL == "" {
		b.logFailure(query, "config", "searxng base url not set")
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

func (b *BreadthBackend) doSearch(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	endpoint := b.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "research-agent/1.0")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Query: query, Kind: "http_status", Detail: resp.Status}
	}

	var parsed searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	engineSet := make(map[string]bool)
	results := make([]core.SearchResult, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		if i >= maxResults {
			break
		}
		for _, e := range r.Engines {
			engineSet[e] = true
		}
		results = append(results, core.SearchResult{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
			Backend: core.BackendSearXNG,
			Domain:  extractDomain(r.URL),
		})
	}

	b.lastEngines = make([]string, 0, len(engineSet))
	for e := range engineSet {
		b.lastEngines = append(b.lastEngines, e)
	}

	return results, nil
}

// RespondingEngines returns the underlying search engines that
// contributed to the most recent Search call.
func (b *BreadthBackend) RespondingEngines() []string {
	return b.lastEngines
}

func (b *BreadthBackend) HealthCheck(ctx context.Context) core.HealthStatus {
	if b.baseURL == "" {
		return core.HealthFailed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/healthz", nil)
	if err != nil {
		return core.HealthDegraded
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return core.HealthDegraded
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return core.HealthDegraded
	}
	return core.HealthOK
}

func (b *BreadthBackend) logFailure(query, kind, detail string) {
	err := &BackendError{Query: query, Kind: kind, Detail: detail}
	logger.Warn("breadth backend absorbed failure", "query", query, "kind", kind, "detail", detail, "error", err.Error())
}
