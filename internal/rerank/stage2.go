package rerank

import (
	"context"

	"research-agent/internal/logger"
)

const (
	stage2MaxKeep       = 35
	stage2MaxReinjected = 10
)

// runStage2 is the lite semantic pass: score every stage 1 survivor with
// the configured SemanticScorer (or a degraded BM25-normalized proxy if
// none is configured), keep items >= stage2Threshold capped at 35, then
// reinject dropped items whose domain has no representative among the
// kept set, up to stage2MaxReinjected (stage 2 diversity rule).
func (r *Reranker) runStage2(ctx context.Context, query string, stage1 []candidate) []candidate {
	scores := r.score(ctx, query, stage1)

	scored := make([]candidate, len(stage1))
	for i, c := range stage1 {
		scored[i] = candidate{result: c.result, score: scores[i]}
	}

	var kept, dropped []candidate
	for _, c := range scored {
		if c.score >= r.stage2Threshold {
			kept = append(kept, c)
		} else {
			dropped = append(dropped, c)
		}
	}
	sortByScoreDesc(kept)
	sortByScoreDesc(dropped)

	overflow := []candidate(nil)
	if len(kept) > stage2MaxKeep {
		overflow = kept[stage2MaxKeep:]
		kept = kept[:stage2MaxKeep]
	}

	keptDomains := make(map[string]bool, len(kept))
	for _, c := range kept {
		keptDomains[c.result.Domain] = true
	}

	candidatesForReinjection := append(append([]candidate{}, overflow...), dropped...)
	sortByScoreDesc(candidatesForReinjection)

	reinjected := 0
	for _, c := range candidatesForReinjection {
		if reinjected >= stage2MaxReinjected {
			break
		}
		if keptDomains[c.result.Domain] {
			continue
		}
		kept = append(kept, c)
		keptDomains[c.result.Domain] = true
		reinjected++
	}
	if reinjected > 0 {
		logger.Debug("stage2 diversity reinjection", "reinjected", reinjected, "kept_total", len(kept))
	}

	return kept
}

func sortByScoreDesc(c []candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].score > c[j-1].score; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}
