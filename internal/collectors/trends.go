package collectors

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/dedup"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

// TrendsCollector surfaces keyword-trend phrases via a grounded LLM backend
// rather than scraping a trends site ("no scraping").
type TrendsCollector struct {
	generator TextGenerator
	governor  *govern.Governor
	health    *HealthTracker
}

// NewTrendsCollector constructs a Trends collector around an LLM generator.
func NewTrendsCollector(generator TextGenerator, g *govern.Governor, h *HealthTracker) *TrendsCollector {
	return &TrendsCollector{generator: generator, governor: g, health: h}
}

func (c *TrendsCollector) Name() string { return "trends" }

// Collect asks the grounded LLM backend for trending phrases related to
// each seed keyword and emits one Document per phrase returned.
func (c *TrendsCollector) Collect(ctx context.Context, cfg *config.MarketConfig) []core.Document {
	if !cfg.Collectors.TrendsEnabled || c.generator == nil {
		return nil
	}

	var docs []core.Document
	for _, seed := range cfg.SeedKeywords {
		if c.health.ShouldSkip("trends:" + seed) {
			continue
		}
		if err := c.governor.Acquire(ctx, "web"); err != nil {
			continue
		}

		phrases, ok := govern.WithTimeout(ctx, govern.DefaultLLMTimeout, "web", func(ctx context.Context) ([]string, error) {
			return c.fetchTrendPhrases(ctx, seed, cfg)
		})
		if !ok || len(phrases) == 0 {
			c.health.RecordFailure("trends:" + seed)
			logger.Warn("trends collector returned no phrases", "seed", seed)
			continue
		}
		c.health.RecordSuccess("trends:" + seed)

		for _, phrase := range phrases {
			docs = append(docs, c.toDocument(phrase, seed, cfg))
		}
	}
	return docs
}

func (c *TrendsCollector) fetchTrendPhrases(ctx context.Context, seed string, cfg *config.MarketConfig) ([]string, error) {
	market, language, domain := cfg.EffectiveMarket()
	prompt := "List the current trending search phrases closely related to \"" + seed +
		"\" in the " + domain + " domain for the " + market + " market (" + language +
		" language). Return one phrase per line, no numbering, no commentary."

	response, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseTrendPhrases(response), nil
}

func parseTrendPhrases(response string) []string {
	lines := strings.Split(response, "\n")
	var phrases []string
	seen := make(map[string]bool)
	for _, line := range lines {
		phrase := strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if phrase == "" || seen[phrase] {
			continue
		}
		seen[phrase] = true
		phrases = append(phrases, phrase)
	}
	return phrases
}

func (c *TrendsCollector) toDocument(phrase, seed string, cfg *config.MarketConfig) core.Document {
	market, language, domain := cfg.EffectiveMarket()
	syntheticURL := "trends://" + strings.ReplaceAll(strings.ToLower(phrase), " ", "-")
	canonical := dedup.CanonicalURL(syntheticURL)

	return core.Document{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String(),
		Source:       "trends",
		SourceURL:    syntheticURL,
		CanonicalURL: canonical,
		Title:        phrase,
		Content:      phrase,
		Language:     language,
		Domain:       domain,
		Market:       market,
		Vertical:     cfg.Vertical,
		ContentHash:  dedup.ComputeContentHash(phrase),
		Keywords:     []string{seed},
		PublishedAt:  time.Now().UTC(),
		FetchedAt:    time.Now().UTC(),
		Status:       core.DocumentStatusNew,
	}
}
