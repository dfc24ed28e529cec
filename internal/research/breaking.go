package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"research-agent/internal/core"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

const breakingCostPerQuery = 0.0

// BreakingBackend queries TheNewsAPI's real-time news endpoint with a
// date-window filter, mirroring internal/collectors.NewsAPICollector but
// emitting core.SearchResult instead of core.Document.
type BreakingBackend struct {
	client       *http.Client
	governor     *govern.Governor
	apiKey       string
	baseURL      string
	windowHours  int
}

// NewBreakingBackend reads its API key from THENEWSAPI_TOKEN, the same
// environment variable internal/collectors.NewsAPICollector uses.
func NewBreakingBackend(g *govern.Governor, windowHours int) *BreakingBackend {
	if windowHours <= 0 {
		windowHours = 24
	}
	return &BreakingBackend{
		client:      &http.Client{Timeout: 15 * time.Second},
		governor:    g,
		apiKey:      os.Getenv("THENEWSAPI_TOKEN"),
		baseURL:     "https://api.thenewsapi.com/v1/news/all",
		windowHours: windowHours,
	}
}

func (b *BreakingBackend) Name() core.SearchBackend { return core.BackendTheNewsAPI }
func (b *BreakingBackend) Horizon() core.Horizon    { return core.HorizonBreaking }
func (b *BreakingBackend) CostPerQuery() float64    { return breakingCostPerQuery }
func (b *BreakingBackend) SupportsCitations() bool  { return true }

type breakingAPIResponse struct {
	Data []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Snippet     string `json:"snippet"`
		URL         string `json:"url"`
		PublishedAt string `json:"published_at"`
		Source      string `json:"source"`
	} `json:"data"`
}

func (b *BreakingBackend) Search(ctx context.Context, query string, maxResults int) []core.SearchResult {
	if b.apiKey == "" {
		b.logFailure(query, "config", "THENEWSAPI_TOKEN not set")
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

func (b *BreakingBackend) doSearch(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error) {
	since := time.Now().UTC().Add(-time.Duration(b.windowHours) * time.Hour)

	q := url.Values{}
	q.Set("api_token", b.apiKey)
	q.Set("search", query)
	q.Set("published_after", since.Format("2006-01-02T15:04:05"))
	q.Set("limit", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thenewsapi returned status %d", resp.StatusCode)
	}

	var parsed breakingAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]core.SearchResult, 0, len(parsed.Data))
	for _, a := range parsed.Data {
		snippet := a.Snippet
		if snippet == "" {
			snippet = a.Description
		}
		published := parseRFC3339Loose(a.PublishedAt)
		results = append(results, core.SearchResult{
			URL:           a.URL,
			Title:         a.Title,
			Snippet:       snippet,
			PublishedDate: published,
			Backend:       core.BackendTheNewsAPI,
			Domain:        a.Source,
		})
	}
	return results, nil
}

func parseRFC3339Loose(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	formats := []string{time.RFC3339, "2006-01-02T15:04:05.000000Z", "2006-01-02T15:04:05Z"}
	for _, f := range formats {
		if t, err := time.Parse(f, raw); err == nil {
			return &t
		}
	}
	return nil
}

func (b *BreakingBackend) HealthCheck(ctx context.Context) core.HealthStatus {
	if b.apiKey == "" {
		return core.HealthFailed
	}
	return core.HealthOK
}

func (b *BreakingBackend) logFailure(query, kind, detail string) {
	err := &BackendError{Query: query, Kind: kind, Detail: detail}
	logger.Warn("breaking backend absorbed failure", "query", query, "kind", kind, "detail", detail, "error", err.Error())
}
