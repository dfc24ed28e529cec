// Package synthesize implements the Content Synthesizer: given the
// reranker's kept sources for a topic, it extracts clean article text,
// pre-filters paragraphs by BM25 relevance, asks an LLM to pick the
// strongest passages per source, and prompts for a single cited article
// through a multi-stage passage-selection cascade.
package synthesize

import (
	"context"
	"net/http"
	"time"

	"research-agent/internal/core"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

// Strategy toggles stage 2's passage-selection cost/quality tradeoff.
const (
	StrategyBM25LLM = "bm25_llm"
	StrategyLLMOnly = "llm_only"

	costBM25LLM = 0.0019
	costLLMOnly = 0.0038

	defaultMaxArticleWords = 2000

	paragraphsKeptPerSource   = 10
	passagesSelectedPerSource = 3
)

// LLMClient is the narrow surface the synthesizer needs; satisfied
// structurally by internal/llmclient.Client.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStructured(ctx context.Context, prompt string) (string, error)
}

// Result is the synthesizer's output (step 5).
type Result struct {
	Article   string
	Citations []string // index i -> "[Source i+1]"
	CostUSD   float64
	Durations map[string]time.Duration
}

// Synthesizer is the Content Synthesizer.
type Synthesizer struct {
	llm             LLMClient
	httpClient      *http.Client
	governor        *govern.Governor
	strategy        string
	maxArticleWords int
}

// New constructs a Synthesizer. strategy defaults to StrategyBM25LLM and
// maxArticleWords to 2000 when zero-valued.
func New(llm LLMClient, g *govern.Governor, strategy string, maxArticleWords int) *Synthesizer {
	if strategy != StrategyLLMOnly {
		strategy = StrategyBM25LLM
	}
	if maxArticleWords <= 0 {
		maxArticleWords = defaultMaxArticleWords
	}
	if g == nil {
		g = govern.New()
	}
	return &Synthesizer{
		llm:             llm,
		httpClient:      &http.Client{Timeout: govern.DefaultFeedDiscoveryTimeout},
		governor:        g,
		strategy:        strategy,
		maxArticleWords: maxArticleWords,
	}
}

// Synthesize runs the full C11 pipeline over sources (the reranker's kept
// results) for query. On any stage-3 LLM failure it returns a Result with
// Citations still populated from sources but an empty Article, matching
// the guardrail in : "on failure the topic's research report
// stores the reranker output without synthesized article".
func (s *Synthesizer) Synthesize(ctx context.Context, query string, sources []core.SearchResult) Result {
	durations := make(map[string]time.Duration)
	citations := make([]string, len(sources))
	for i, src := range sources {
		citations[i] = src.URL
	}
	if len(sources) == 0 {
		return Result{Citations: citations, Durations: durations}
	}

	start := time.Now()
	texts := s.extractAll(ctx, sources)
	durations["extract"] = time.Since(start)

	start = time.Now()
	var candidates []sourcePassages
	if s.strategy == StrategyLLMOnly {
		candidates = allParagraphs(texts)
	} else {
		candidates = s.prefilterParagraphs(query, texts)
	}
	durations["stage1_bm25"] = time.Since(start)

	start = time.Now()
	selected := s.selectPassages(ctx, query, sources, candidates)
	durations["stage2_passage_selection"] = time.Since(start)

	start = time.Now()
	article, err := s.synthesizeArticle(ctx, query, sources, selected)
	durations["stage3_synthesis"] = time.Since(start)
	if err != nil {
		logger.Warn("content synthesis failed, falling back to bare reranker output", "error", err.Error())
		return Result{Citations: citations, Durations: durations}
	}

	cost := costBM25LLM
	if s.strategy == StrategyLLMOnly {
		cost = costLLMOnly
	}
	return Result{Article: article, Citations: citations, CostUSD: cost, Durations: durations}
}
