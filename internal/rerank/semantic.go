package rerank

import (
	"context"

	"research-agent/internal/logger"
)

// score runs the configured SemanticScorer over each candidate's
// title+snippet text. With no scorer configured, or on a scorer error, it
// degrades to a min-max normalized BM25 score instead of failing the
// stage closed - an unconfigured embedding API should not silently drop
// every candidate.
func (r *Reranker) score(ctx context.Context, query string, candidates []candidate) []float64 {
	if r.semantic != nil {
		texts := make([]string, len(candidates))
		for i, c := range candidates {
			texts[i] = c.result.Title + " " + c.result.Snippet
		}
		scores, err := r.semantic.Score(ctx, query, texts)
		if err == nil && len(scores) == len(candidates) {
			return scores
		}
		logger.Warn("semantic scorer unavailable, degrading to BM25 proxy", "error", errString(err))
	}
	return normalizeBM25(candidates)
}

func errString(err error) string {
	if err == nil {
		return "no scorer configured"
	}
	return err.Error()
}

// normalizeBM25 min-max normalizes each candidate's stage 1 BM25 score into
// [0,1], used as the degraded semantic proxy.
func normalizeBM25(candidates []candidate) []float64 {
	scores := make([]float64, len(candidates))
	if len(candidates) == 0 {
		return scores
	}
	min, max := candidates[0].score, candidates[0].score
	for _, c := range candidates {
		if c.score < min {
			min = c.score
		}
		if c.score > max {
			max = c.score
		}
	}
	spread := max - min
	for i, c := range candidates {
		if spread == 0 {
			scores[i] = 0.5
			continue
		}
		scores[i] = (c.score - min) / spread
	}
	return scores
}
