package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"research-agent/internal/core"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

const trendsCostPerQuery = 0.002

// TrendsBackend asks a grounded LLM (one whose responses are backed by
// live web search, e.g. Gemini with search grounding) for a
// trending-analysis-shaped answer: a short list of "claim -- source URL"
// lines, which this backend parses into SearchResults. Mirrors
// internal/collectors.TrendsCollector's decoupling from any concrete LLM
// client via a local TextGenerator interface.
type TrendsBackend struct {
	generator TextGenerator
	governor  *govern.Governor
}

// NewTrendsBackend constructs a TRENDS backend around a grounded generator.
func NewTrendsBackend(generator TextGenerator, g *govern.Governor) *TrendsBackend {
	return &TrendsBackend{generator: generator, governor: g}
}

func (b *TrendsBackend) Name() core.SearchBackend { return core.BackendGemini }
func (b *TrendsBackend) Horizon() core.Horizon    { return core.HorizonTrends }
func (b *TrendsBackend) CostPerQuery() float64    { return trendsCostPerQuery }
func (b *TrendsBackend) SupportsCitations() bool  { return true }

func (b *TrendsBackend) Search(ctx context.Context, query string, maxResults int) []core.SearchResult {
	if b.generator == nil {
		b.logFailure(query, "config", "no grounded generator configured")
		return nil
	}
	if err := b.governor.Acquire(ctx, "web"); err != nil {
		b.logFailure(query, "rate_limit", err.Error())
		return nil
	}

	response, ok := govern.WithTimeout(ctx, govern.DefaultLLMTimeout, "web", func(ctx context.Context) (string, error) {
		prompt := fmt.Sprintf(
			"Summarize the most important current trends and developments related to %q. "+
				"Return up to %d findings, one per line, each formatted exactly as:\n"+
				"<one-sentence finding> -- <source URL>\n"+
				"No numbering, no commentary, no markdown.", query, maxResults)
		return b.generator.Generate(ctx, prompt)
	})
	if !ok {
		b.logFailure(query, "timeout_or_error", "grounded generation did not complete")
		return nil
	}

	results := parseTrendFindings(response, maxResults)
	if len(results) == 0 {
		b.logFailure(query, "empty_result", "no parsable findings in grounded response")
		return nil
	}
	return results
}

// parseTrendFindings extracts "<finding> -- <url>" lines into
// SearchResults, skipping any line that doesn't carry a parsable URL.
func parseTrendFindings(response string, maxResults int) []core.SearchResult {
	var results []core.SearchResult
	now := time.Now().UTC()
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" {
			continue
		}
		sep := strings.LastIndex(line, "--")
		if sep < 0 {
			continue
		}
		finding := strings.TrimSpace(line[:sep])
		sourceURL := strings.TrimSpace(line[sep+2:])
		if finding == "" || !strings.HasPrefix(sourceURL, "http") {
			continue
		}

		results = append(results, core.SearchResult{
			URL:           sourceURL,
			Title:         finding,
			Snippet:       finding,
			PublishedDate: &now,
			Backend:       core.BackendGemini,
			Domain:        extractDomain(sourceURL),
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

func (b *TrendsBackend) HealthCheck(ctx context.Context) core.HealthStatus {
	if b.generator == nil {
		return core.HealthFailed
	}
	return core.HealthOK
}

func (b *TrendsBackend) logFailure(query, kind, detail string) {
	err := &BackendError{Query: query, Kind: kind, Detail: detail}
	logger.Warn("trends backend absorbed failure", "query", query, "kind", kind, "detail", detail, "error", err.Error())
}
