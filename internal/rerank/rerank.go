// Package rerank implements the Cascaded Reranker: three narrowing
// stages over a fused result pool (lexical BM25, lite semantic, full
// semantic plus six weighted SEO metrics). A single-pass relevance/
// authority/recency scorer with domain/type diversity capping, split
// into three independently-thresholded stages and extended with
// novelty, freshness and locality signals.
package rerank

import (
	"context"
	"sort"

	"research-agent/internal/core"
)

// SemanticScorer scores a query against a batch of candidate texts, each
// score in [0,1]. A nil SemanticScorer (no embedding API key configured)
// degrades stage 2/3 to a normalized BM25 proxy rather than failing closed.
type SemanticScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Reranker runs the three-stage cascade over a query's fused result pool.
type Reranker struct {
	semantic         SemanticScorer
	stage1Threshold  float64
	stage2Threshold  float64
	stage3FinalCount int
	market, language string
}

// New builds a Reranker. A nil semantic degrades gracefully (see
// SemanticScorer). market/language feed the locality metric and accept
// whatever config.MarketConfig.EffectiveMarket() already resolved.
func New(semantic SemanticScorer, stage1Threshold, stage2Threshold float64, stage3FinalCount int, market, language string) *Reranker {
	if stage3FinalCount <= 0 {
		stage3FinalCount = 25
	}
	return &Reranker{
		semantic:         semantic,
		stage1Threshold:  stage1Threshold,
		stage2Threshold:  stage2Threshold,
		stage3FinalCount: stage3FinalCount,
		market:           market,
		language:         language,
	}
}

type candidate struct {
	result core.SearchResult
	score  float64
}

// Rerank narrows results through all three stages and returns the final
// ranked pool, each entry's Score set to its stage 3 weighted score.
func (r *Reranker) Rerank(ctx context.Context, query string, results []core.SearchResult) []core.SearchResult {
	if len(results) == 0 {
		return results
	}

	stage1 := r.runStage1(query, results)
	stage2 := r.runStage2(ctx, query, stage1)
	stage3 := r.runStage3(ctx, query, stage2)

	final := make([]core.SearchResult, 0, len(stage3))
	for _, c := range stage3 {
		r := c.result
		r.Score = c.score
		final = append(final, r)
	}
	return final
}

// runStage1 is the lexical BM25 pass: keep items scoring >= stage1Threshold,
// capped at 60 (stage 1).
func (r *Reranker) runStage1(query string, results []core.SearchResult) []candidate {
	queryTokens := Tokenize(query)
	docTokens := make([][]string, len(results))
	for i, res := range results {
		docTokens[i] = Tokenize(res.Title + " " + res.Snippet)
	}
	scores := BM25Score(queryTokens, docTokens)

	candidates := make([]candidate, 0, len(results))
	for i, res := range results {
		if scores[i] >= r.stage1Threshold {
			candidates = append(candidates, candidate{result: res, score: scores[i]})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > stage1MaxKeep {
		candidates = candidates[:stage1MaxKeep]
	}
	return candidates
}

const stage1MaxKeep = 60
