package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/dedup"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

// alphabet, questionPrefixes, and prepositions are the three expansion
// strategies of : 26 + 6 + 6 = 38 queries per seed keyword at most.
var alphabet = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z"}

var questionPrefixes = []string{"what", "how", "why", "when", "where", "who"}

var prepositions = []string{"for", "with", "without", "near", "vs", "versus"}

const autocompleteCacheTTL = 30 * 24 * time.Hour

type autocompleteCacheEntry struct {
	suggestions []string
	cachedAt    time.Time
}

// AutocompleteCollector expands each seed keyword via the three strategies
// against a Google-style suggest endpoint, deduplicating across strategies
// and caching responses for 30 days.
type AutocompleteCollector struct {
	client   *http.Client
	governor *govern.Governor
	health   *HealthTracker

	cache map[string]autocompleteCacheEntry
}

// NewAutocompleteCollector constructs a collector with an empty cache.
func NewAutocompleteCollector(g *govern.Governor, h *HealthTracker) *AutocompleteCollector {
	return &AutocompleteCollector{
		client:   &http.Client{Timeout: 8 * time.Second},
		governor: g,
		health:   h,
		cache:    make(map[string]autocompleteCacheEntry),
	}
}

func (c *AutocompleteCollector) Name() string { return "autocomplete" }

// Collect expands every seed keyword and emits one Document per unique
// suggestion (deduplicated across the three strategies, per 
// "<=38 unique suggestions per seed keyword").
func (c *AutocompleteCollector) Collect(ctx context.Context, cfg *config.MarketConfig) []core.Document {
	if !cfg.Collectors.AutocompleteEnabled {
		return nil
	}

	var docs []core.Document
	for _, seed := range cfg.SeedKeywords {
		suggestions := c.expand(ctx, seed, cfg.Language)
		for i, s := range suggestions {
			docs = append(docs, c.toDocument(s, seed, i+1, cfg))
		}
	}
	return docs
}

func (c *AutocompleteCollector) expand(ctx context.Context, seed, language string) []string {
	if cached, ok := c.cache[seed]; ok && time.Since(cached.cachedAt) < autocompleteCacheTTL {
		return cached.suggestions
	}

	seen := make(map[string]bool)
	var unique []string

	add := func(results []string) {
		for _, r := range results {
			if !seen[r] {
				seen[r] = true
				unique = append(unique, r)
			}
		}
	}

	for _, letter := range alphabet {
		add(c.suggest(ctx, fmt.Sprintf("%s %s", seed, letter), language))
	}
	for _, prefix := range questionPrefixes {
		add(c.suggest(ctx, fmt.Sprintf("%s %s", prefix, seed), language))
	}
	for _, prep := range prepositions {
		add(c.suggest(ctx, fmt.Sprintf("%s %s", seed, prep), language))
	}

	c.cache[seed] = autocompleteCacheEntry{suggestions: unique, cachedAt: time.Now().UTC()}
	return unique
}

// suggest queries a Google-suggest-shaped endpoint. Failures are absorbed
// and return nil, per the uniform collector contract.
func (c *AutocompleteCollector) suggest(ctx context.Context, query, language string) []string {
	if c.health.ShouldSkip("autocomplete") {
		return nil
	}
	if err := c.governor.Acquire(ctx, "autocomplete"); err != nil {
		return nil
	}

	endpoint := "https://suggestqueries.google.com/complete/search?client=firefox&hl=" +
		url.QueryEscape(language) + "&q=" + url.QueryEscape(query)

	results, ok := govern.WithTimeout(ctx, govern.DefaultFeedDiscoveryTimeout, "autocomplete", func(ctx context.Context) ([]string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("suggest endpoint returned status %d", resp.StatusCode)
		}

		var payload []json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || len(payload) < 2 {
			return nil, fmt.Errorf("unexpected suggest response shape")
		}
		var suggestions []string
		if err := json.Unmarshal(payload[1], &suggestions); err != nil {
			return nil, err
		}
		return suggestions, nil
	})

	if !ok {
		c.health.RecordFailure("autocomplete")
		logger.Warn("autocomplete suggest failed", "query", query)
		return nil
	}
	c.health.RecordSuccess("autocomplete")
	return results
}

func (c *AutocompleteCollector) toDocument(suggestion, seed string, rank int, cfg *config.MarketConfig) core.Document {
	market, language, domain := cfg.EffectiveMarket()
	syntheticURL := "autocomplete://" + url.QueryEscape(suggestion)
	canonical := dedup.CanonicalURL(syntheticURL)

	return core.Document{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String(),
		Source:       "autocomplete",
		SourceURL:    syntheticURL,
		CanonicalURL: canonical,
		Title:        suggestion,
		Content:      suggestion,
		Language:     language,
		Domain:       domain,
		Market:       market,
		Vertical:     cfg.Vertical,
		ContentHash:  dedup.ComputeContentHash(suggestion),
		Keywords:     []string{seed},
		FetchedAt:    time.Now().UTC(),
		Status:       core.DocumentStatusNew,
		Rank:         rank,
	}
}
