package collectors

import (
	"context"
	"encoding/xml"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

// opmlFileReader reads an OPML file from disk; a var so tests can stub it.
var opmlFileReader = os.ReadFile

// FeedDiscoveryCollector implements 's two-stage feed discovery:
// (1) load OPML/static feeds from config, (2) expand seed keywords via LLM
// and probe each resulting host for a feed auto-discovery link, under a
// hard per-host timeout. Discovered feeds are fetched through the shared
// RSSCollector so conditional-GET caching and extraction stay uniform.
type FeedDiscoveryCollector struct {
	rss       *RSSCollector
	generator TextGenerator
	client    *http.Client
	governor  *govern.Governor
	health    *HealthTracker
}

// NewFeedDiscoveryCollector builds a discovery collector sharing an
// RSSCollector (and therefore its conditional-GET cache) with the plain
// RSS collector in the same run.
func NewFeedDiscoveryCollector(rss *RSSCollector, generator TextGenerator, g *govern.Governor, h *HealthTracker) *FeedDiscoveryCollector {
	return &FeedDiscoveryCollector{
		rss:       rss,
		generator: generator,
		client:    &http.Client{Timeout: 10 * time.Second},
		governor:  g,
		health:    h,
	}
}

func (c *FeedDiscoveryCollector) Name() string { return "feed_discovery" }

// Collect runs both discovery stages and fetches every resulting feed
// through the shared RSSCollector.
func (c *FeedDiscoveryCollector) Collect(ctx context.Context, cfg *config.MarketConfig) []core.Document {
	if !cfg.Collectors.FeedDiscoveryEnabled {
		return nil
	}

	feedURLs := parseOPML(cfg.Collectors.OPMLFeeds)

	if c.generator != nil {
		for _, seed := range cfg.SeedKeywords {
			hosts := c.expandSeedToHosts(ctx, seed, cfg)
			for _, host := range hosts {
				if feed := c.probeHost(ctx, host); feed != "" {
					feedURLs = append(feedURLs, feed)
				}
			}
		}
	}

	feedURLs = dedupeStrings(feedURLs)
	return c.rss.CollectFeeds(ctx, feedURLs, cfg)
}

// parseOPML reads a flat list of OPML file paths and returns their
// xmlUrl outline attributes; a missing or unparsable file is skipped.
func parseOPML(paths []string) []string {
	var feeds []string
	for _, path := range paths {
		body, err := opmlFileReader(path)
		if err != nil {
			continue
		}
		var doc opmlDocument
		if err := xml.Unmarshal(body, &doc); err != nil {
			continue
		}
		for _, outline := range doc.Body.Outlines {
			if outline.XMLURL != "" {
				feeds = append(feeds, outline.XMLURL)
			}
			for _, nested := range outline.Outlines {
				if nested.XMLURL != "" {
					feeds = append(feeds, nested.XMLURL)
				}
			}
		}
	}
	return feeds
}

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Body    opmlBody `xml:"body"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	XMLURL   string        `xml:"xmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

// expandSeedToHosts asks the LLM backend for candidate hosts likely to
// carry a feed relevant to seed (: `"<keyword>" rss OR feed`
// search-engine queries, here delegated to the grounded LLM backend
// rather than a dedicated search API).
func (c *FeedDiscoveryCollector) expandSeedToHosts(ctx context.Context, seed string, cfg *config.MarketConfig) []string {
	if c.health.ShouldSkip("feed_discovery:" + seed) {
		return nil
	}
	if err := c.governor.Acquire(ctx, "web"); err != nil {
		return nil
	}

	_, language, domain := cfg.EffectiveMarket()
	prompt := "List up to 5 website homepages (bare domains, one per line, no scheme) " +
		"likely to publish an RSS or Atom feed about \"" + seed + "\" in the " + domain +
		" domain, " + language + " language. No commentary."

	hosts, ok := govern.WithTimeout(ctx, govern.DefaultLLMTimeout, "web", func(ctx context.Context) ([]string, error) {
		response, err := c.generator.Generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return parseTrendPhrases(response), nil
	})
	if !ok {
		c.health.RecordFailure("feed_discovery:" + seed)
		return nil
	}
	c.health.RecordSuccess("feed_discovery:" + seed)
	return hosts
}

// probeHost fetches a host's homepage and looks for a feed auto-discovery
// <link rel="alternate"> tag, under a hard 10s per-host timeout. Returns
// "" on any failure.
func (c *FeedDiscoveryCollector) probeHost(ctx context.Context, host string) string {
	feedURL, ok := govern.WithTimeout(ctx, govern.DefaultFeedDiscoveryTimeout, "web", func(ctx context.Context) (string, error) {
		pageURL := "https://" + strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
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
			return "", nil
		}
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return "", err
		}
		href, _ := doc.Find(
			`link[rel="alternate"][type="application/rss+xml"], link[rel="alternate"][type="application/atom+xml"]`,
		).First().Attr("href")
		return href, nil
	})
	if !ok || feedURL == "" {
		logger.Debug("feed discovery probe found no feed", "host", host)
		return ""
	}
	return feedURL
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
