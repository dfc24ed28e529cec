package research

import (
	"context"
	"strings"
	"time"

	"research-agent/internal/collectors"
	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/logger"
)

// CuratedBackend turns a fixed list of RSS feeds into SearchResult-shaped
// records: it fetches every configured feed (reusing the collector
// layer's RSSCollector, not a re-implementation of feed parsing) and
// keeps entries whose title or summary overlaps the query's tokens.
type CuratedBackend struct {
	rss   *collectors.RSSCollector
	feeds []string
	cfg   *config.MarketConfig
}

// NewCuratedBackend shares the RSSCollector instance (and its conditional
// GET cache, health tracker, and governor) with the RSS collector used
// during the collection phase, so a feed already fetched for collection
// is not re-fetched here.
func NewCuratedBackend(rss *collectors.RSSCollector, feeds []string, cfg *config.MarketConfig) *CuratedBackend {
	return &CuratedBackend{rss: rss, feeds: feeds, cfg: cfg}
}

func (b *CuratedBackend) Name() core.SearchBackend { return core.BackendRSS }
func (b *CuratedBackend) Horizon() core.Horizon    { return core.HorizonCurated }
func (b *CuratedBackend) CostPerQuery() float64    { return 0 }
func (b *CuratedBackend) SupportsCitations() bool  { return true }

func (b *CuratedBackend) Search(ctx context.Context, query string, maxResults int) []core.SearchResult {
	if len(b.feeds) == 0 {
		b.logFailure(query, "config", "no curated feeds configured")
		return nil
	}

	docs := b.rss.CollectFeeds(ctx, b.feeds, b.cfg)
	if docs == nil {
		b.logFailure(query, "fetch_failed", "no documents returned from curated feeds")
		return nil
	}

	tokens := queryTokens(query)
	var matches []core.SearchResult
	for _, d := range docs {
		if !matchesTokens(d.Title+" "+d.Summary, tokens) {
			continue
		}
		matches = append(matches, core.SearchResult{
			URL:           d.SourceURL,
			Title:         d.Title,
			Snippet:       d.Summary,
			Content:       d.Content,
			PublishedDate: timeOrNil(d.PublishedAt),
			Backend:       core.BackendRSS,
			Domain:        d.Domain,
		})
		if len(matches) >= maxResults {
			break
		}
	}
	return matches
}

func (b *CuratedBackend) HealthCheck(ctx context.Context) core.HealthStatus {
	if len(b.feeds) == 0 {
		return core.HealthFailed
	}
	return core.HealthOK
}

func (b *CuratedBackend) logFailure(query, kind, detail string) {
	err := &BackendError{Query: query, Kind: kind, Detail: detail}
	logger.Warn("curated backend absorbed failure", "query", query, "kind", kind, "detail", detail, "error", err.Error())
}

func queryTokens(query string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		trimmed := strings.Trim(tok, ".,!?;:\"'()[]{}")
		if trimmed != "" {
			set[trimmed] = true
		}
	}
	return set
}

func matchesTokens(text string, tokens map[string]bool) bool {
	lower := strings.ToLower(text)
	for tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
