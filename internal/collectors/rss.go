package collectors

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/dedup"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

// rssCacheEntry is one entry of the 30-day conditional-GET cache (RSS
// collector): the LastModified/ETag response headers of a feed, stored
// under the feed URL.
type rssCacheEntry struct {
	lastModified string
	etag         string
	cachedAt     time.Time
}

const rssCacheTTL = 30 * 24 * time.Hour

// rssStruct and atomStruct are the raw XML decoding shapes for the two feed
// formats; only the downstream conversion differs between them.
type rssStruct struct {
	XMLName xml.Name    `xml:"rss"`
	Channel rssChannel  `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

type atomStruct struct {
	XMLName xml.Name     `xml:"feed"`
	Title   string       `xml:"title"`
	Entries []atomEntry  `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Link      []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	ID        string     `xml:"id"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// RSSCollector discovers Documents from a fixed list of RSS/Atom feed URLs.
type RSSCollector struct {
	client   *http.Client
	governor *govern.Governor
	health   *HealthTracker

	mu    sync.Mutex
	cache map[string]rssCacheEntry
}

// NewRSSCollector constructs an RSS/Atom collector sharing the given
// governor and health tracker with sibling collectors in a run.
func NewRSSCollector(g *govern.Governor, h *HealthTracker) *RSSCollector {
	return &RSSCollector{
		client:   &http.Client{Timeout: 30 * time.Second},
		governor: g,
		health:   h,
		cache:    make(map[string]rssCacheEntry),
	}
}

func (c *RSSCollector) Name() string { return "rss" }

// Collect fetches every feed URL in cfg.Collectors.CustomFeeds (discovered
// feeds are fetched by FeedDiscoveryCollector through CollectFeeds, not
// here), parses RSS/Atom, and emits Documents. Feed-level
// failures are absorbed: a bad feed is logged and skipped.
func (c *RSSCollector) Collect(ctx context.Context, cfg *config.MarketConfig) []core.Document {
	if !cfg.Collectors.RSSEnabled {
		return nil
	}
	return c.CollectFeeds(ctx, cfg.Collectors.CustomFeeds, cfg)
}

// CollectFeeds fetches an explicit list of feed URLs, independent of
// cfg.Collectors.CustomFeeds. Shared with FeedDiscoveryCollector, which
// hands it OPML-loaded and LLM-discovered feed URLs (Feed
// discovery stage two).
func (c *RSSCollector) CollectFeeds(ctx context.Context, feedURLs []string, cfg *config.MarketConfig) []core.Document {
	var docs []core.Document
	for _, feedURL := range feedURLs {
		if c.health.ShouldSkip(feedURL) {
			logger.Warn("skipping feed after repeated failures", "feed", feedURL)
			continue
		}
		if err := c.governor.Acquire(ctx, "web"); err != nil {
			continue
		}

		items, err := c.fetchOne(ctx, feedURL)
		if err != nil {
			c.health.RecordFailure(feedURL)
			logger.Warn("rss collector failed", "feed", feedURL, "error", err.Error())
			continue
		}
		c.health.RecordSuccess(feedURL)

		host := hostOf(feedURL)
		for _, item := range items {
			item.fullText = c.fetchFullText(ctx, item.link)
			docs = append(docs, c.toDocument(item, host, cfg))
		}
	}
	return docs
}

type parsedItem struct {
	title, link, summary, fullText string
	published                      time.Time
}

func (c *RSSCollector) fetchOne(ctx context.Context, feedURL string) ([]parsedItem, error) {
	c.mu.Lock()
	cached, hasCached := c.cache[feedURL]
	fresh := hasCached && time.Since(cached.cachedAt) < rssCacheTTL
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if fresh {
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
	}
	req.Header.Set("User-Agent", "research-agent/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body := new(strings.Builder)
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	raw := body.String()

	c.mu.Lock()
	c.cache[feedURL] = rssCacheEntry{
		lastModified: resp.Header.Get("Last-Modified"),
		etag:         resp.Header.Get("ETag"),
		cachedAt:     time.Now().UTC(),
	}
	c.mu.Unlock()

	var rss rssStruct
	if err := xml.Unmarshal([]byte(raw), &rss); err == nil && rss.Channel.Title != "" {
		return itemsFromRSS(rss), nil
	}

	var atom atomStruct
	if err := xml.Unmarshal([]byte(raw), &atom); err == nil && atom.Title != "" {
		return itemsFromAtom(atom), nil
	}

	return nil, fmt.Errorf("unable to parse as RSS or Atom feed")
}

// fetchFullText best-effort fetches the article page and extracts its main
// content; an empty return lets the caller fall back to the feed summary
// ("on extraction failure, falls back to the feed's summary").
func (c *RSSCollector) fetchFullText(ctx context.Context, articleURL string) string {
	if articleURL == "" {
		return ""
	}
	text, ok := govern.WithTimeout(ctx, govern.DefaultFeedDiscoveryTimeout, "web", func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", "research-agent/1.0")
		resp, err := c.client.Do(req)
		if err != nil {
			return "", err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("article fetch returned status %d", resp.StatusCode)
		}
		body := new(strings.Builder)
		if _, err := body.ReadFrom(resp.Body); err != nil {
			return "", err
		}
		return ExtractArticleText(body.String()), nil
	})
	if !ok {
		return ""
	}
	return text
}

func itemsFromRSS(rss rssStruct) []parsedItem {
	items := make([]parsedItem, 0, len(rss.Channel.Items))
	for _, it := range rss.Channel.Items {
		items = append(items, parsedItem{
			title: it.Title, link: it.Link, summary: it.Description,
			published: parseFeedDate(it.PubDate),
		})
	}
	return items
}

func itemsFromAtom(atom atomStruct) []parsedItem {
	items := make([]parsedItem, 0, len(atom.Entries))
	for _, e := range atom.Entries {
		var link string
		for _, l := range e.Link {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		published := parseFeedDate(e.Published)
		if published.IsZero() {
			published = parseFeedDate(e.Updated)
		}
		items = append(items, parsedItem{
			title: e.Title, link: link, summary: e.Summary, published: published,
		})
	}
	return items
}

func parseFeedDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	formats := []string{
		time.RFC1123Z, time.RFC1123, time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700", "2006-01-02T15:04:05Z", "2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (c *RSSCollector) toDocument(item parsedItem, host string, cfg *config.MarketConfig) core.Document {
	market, language, domain := cfg.EffectiveMarket()
	canonical := dedup.CanonicalURL(item.link)

	content := item.fullText
	if content == "" {
		content = item.summary
	}

	return core.Document{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String(),
		Source:       "rss_" + host,
		SourceURL:    item.link,
		CanonicalURL: canonical,
		Title:        item.title,
		Content:      content,
		Summary:      item.summary,
		Language:     language,
		Domain:       domain,
		Market:       market,
		Vertical:     cfg.Vertical,
		ContentHash:  dedup.ComputeContentHash(content),
		PublishedAt:  item.published,
		FetchedAt:    time.Now().UTC(),
		Status:       core.DocumentStatusNew,
	}
}

func hostOf(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	trimmed = strings.TrimPrefix(trimmed, "www.")
	if idx := strings.IndexAny(trimmed, "/?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	trimmed = strings.ReplaceAll(trimmed, ".", "_")
	return trimmed
}
