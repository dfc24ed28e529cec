package runner

import (
	"os"

	"research-agent/internal/collectors"
	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/govern"
	"research-agent/internal/llmclient"
	"research-agent/internal/research"
)

// buildBackends wires the five research backends onto the shared
// governor/LLM client. Every backend absorbs its own missing-credential
// failure, so all five are always fanned out to; a backend with no API
// key configured simply contributes nothing and is recorded as a
// BackendFailure rather than aborting the run.
func buildBackends(cfg *config.MarketConfig, g *govern.Governor, llm *llmclient.Client, rss *collectors.RSSCollector) map[core.SearchBackend]research.Backend {
	searxngURL := cfg.Research.SearXNGBaseURL
	if searxngURL == "" {
		searxngURL = "https://searx.be"
	}

	backends := map[core.SearchBackend]research.Backend{
		core.BackendTavily:  research.NewDepthBackend(g),
		core.BackendSearXNG: research.NewBreadthBackend(g, searxngURL),
		core.BackendGemini:  research.NewTrendsBackend(llm, g),
	}

	feeds := cfg.Research.CuratedFeeds
	if len(feeds) == 0 {
		feeds = cfg.Collectors.CustomFeeds
	}
	backends[core.BackendRSS] = research.NewCuratedBackend(rss, feeds, cfg)
	backends[core.BackendTheNewsAPI] = research.NewBreakingBackend(g, cfg.Collectors.BreakingWindowHours)

	return backends
}

func notionAPIKey() string     { return os.Getenv("NOTION_API_KEY") }
func notionDatabaseID() string { return os.Getenv("NOTION_DATABASE_ID") }
