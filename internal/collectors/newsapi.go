package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/dedup"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

// NewsAPICollector queries TheNewsAPI news aggregator with seed keywords,
// language, and a rolling breaking-news window (News-API
// collector), mapping each article to a Document.
type NewsAPICollector struct {
	client   *http.Client
	governor *govern.Governor
	health   *HealthTracker
	apiKey   string

	// baseURL is overridable for tests.
	baseURL string
}

// NewNewsAPICollector reads its API key from THENEWSAPI_TOKEN.
func NewNewsAPICollector(g *govern.Governor, h *HealthTracker) *NewsAPICollector {
	return &NewsAPICollector{
		client:   &http.Client{Timeout: 15 * time.Second},
		governor: g,
		health:   h,
		apiKey:   os.Getenv("THENEWSAPI_TOKEN"),
		baseURL:  "https://api.thenewsapi.com/v1/news/all",
	}
}

func (c *NewsAPICollector) Name() string { return "news_api" }

type newsAPIResponse struct {
	Data []newsAPIArticle `json:"data"`
}

type newsAPIArticle struct {
	UUID        string `json:"uuid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Snippet     string `json:"snippet"`
	URL         string `json:"url"`
	Language    string `json:"language"`
	PublishedAt string `json:"published_at"`
	Source      string `json:"source"`
}

// Collect queries the breaking-news window (default 24h) for each seed
// keyword and emits one Document per article returned.
func (c *NewsAPICollector) Collect(ctx context.Context, cfg *config.MarketConfig) []core.Document {
	if !cfg.Collectors.NewsAPIEnabled || c.apiKey == "" {
		return nil
	}

	windowHours := cfg.Collectors.BreakingWindowHours
	if windowHours <= 0 {
		windowHours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)

	var docs []core.Document
	for _, seed := range cfg.SeedKeywords {
		if c.health.ShouldSkip("news_api:" + seed) {
			continue
		}
		if err := c.governor.Acquire(ctx, "web"); err != nil {
			continue
		}

		articles, err := c.fetchArticles(ctx, seed, since, cfg)
		if err != nil {
			c.health.RecordFailure("news_api:" + seed)
			logger.Warn("news_api collector failed", "seed", seed, "error", err.Error())
			continue
		}
		c.health.RecordSuccess("news_api:" + seed)

		for _, a := range articles {
			docs = append(docs, c.toDocument(a, seed, cfg))
		}
	}
	return docs
}

func (c *NewsAPICollector) fetchArticles(ctx context.Context, seed string, since time.Time, cfg *config.MarketConfig) ([]newsAPIArticle, error) {
	_, language, _ := cfg.EffectiveMarket()

	q := url.Values{}
	q.Set("api_token", c.apiKey)
	q.Set("search", seed)
	q.Set("published_after", since.Format("2006-01-02T15:04:05"))
	if language != "" {
		q.Set("language", language)
	}

	endpoint := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch news_api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news_api returned status %d", resp.StatusCode)
	}

	var parsed newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode news_api response: %w", err)
	}
	return parsed.Data, nil
}

func (c *NewsAPICollector) toDocument(a newsAPIArticle, seed string, cfg *config.MarketConfig) core.Document {
	market, language, domain := cfg.EffectiveMarket()
	canonical := dedup.CanonicalURL(a.URL)
	content := a.Snippet
	if content == "" {
		content = a.Description
	}
	published := parseFeedDate(a.PublishedAt)

	return core.Document{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String(),
		Source:       "news_api_" + a.Source,
		SourceURL:    a.URL,
		CanonicalURL: canonical,
		Title:        a.Title,
		Content:      content,
		Summary:      a.Description,
		Language:     language,
		Domain:       domain,
		Market:       market,
		Vertical:     cfg.Vertical,
		ContentHash:  dedup.ComputeContentHash(a.Title + content),
		Keywords:     []string{seed},
		PublishedAt:  published,
		FetchedAt:    time.Now().UTC(),
		Status:       core.DocumentStatusNew,
	}
}
