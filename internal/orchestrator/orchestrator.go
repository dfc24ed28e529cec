// Package orchestrator implements the Research Orchestrator: per
// topic, it builds specialized queries, fans every configured backend out
// in parallel, fuses their ranked lists with Reciprocal Rank Fusion,
// drops near-duplicate content, interleaves the survivors for source
// diversity, and refreshes the Source Intelligence cache for everything
// it keeps. Follows a decompose -> search -> fetch -> rank -> synthesize
// pipeline shape, generalized from a single sequential searcher to five independent
// backends fanned out with sourcegraph/conc instead of a for loop.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"research-agent/internal/core"
	"research-agent/internal/logger"
	"research-agent/internal/research"
	"research-agent/internal/store"
)

// DefaultLatencyBudget and DefaultCostBudget are the per-topic caps a run
// applies to the fan-out stage, excluding synthesis.
const (
	DefaultLatencyBudget = 90 * time.Second
	DefaultCostBudget    = 0.02
)

// RRFConstant is the k in rrf_score = sum(1 / (k + rank)).
const RRFConstant = 60

// DuplicateJaccardThreshold is the near-duplicate cutoff applied to
// title+snippet shingles during content dedup.
const DuplicateJaccardThreshold = 0.85

// Result is everything one topic's orchestration run produced.
type Result struct {
	Topic        string
	Results      []core.SearchResult
	BackendStats map[core.SearchBackend]core.BackendStat
	CostUSD      float64
}

// Orchestrator wires backends to the Source Intelligence cache.
type Orchestrator struct {
	backends              map[core.SearchBackend]research.Backend
	store                 *store.Store
	minSuccessfulBackends int
	latencyBudget         time.Duration
	costBudget            float64
}

// New constructs an Orchestrator over the given backends (any subset of
// core.BackendOrder; a backend absent from the map is simply not fanned
// out to). minSuccessfulBackends <= 0 defaults to 1.
func New(backends map[core.SearchBackend]research.Backend, st *store.Store, minSuccessfulBackends int, latencyBudget time.Duration, costBudget float64) *Orchestrator {
	if minSuccessfulBackends <= 0 {
		minSuccessfulBackends = 1
	}
	if latencyBudget <= 0 {
		latencyBudget = DefaultLatencyBudget
	}
	if costBudget <= 0 {
		costBudget = DefaultCostBudget
	}
	return &Orchestrator{
		backends:              backends,
		store:                 st,
		minSuccessfulBackends: minSuccessfulBackends,
		latencyBudget:         latencyBudget,
		costBudget:            costBudget,
	}
}

type backendOutcome struct {
	backend core.SearchBackend
	results []core.SearchResult
	stat    core.BackendStat
	failed  bool
}

// Research runs the full per-topic pipeline: build queries, fan out,
// enforce min_successful_backends, fuse, dedup, diversity-order, persist.
func (o *Orchestrator) Research(ctx context.Context, topic string, maxResultsPerBackend int) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.latencyBudget)
	defer cancel()

	queries := buildQueries(topic)
	spent := 0.0

	p := pool.NewWithResults[backendOutcome]().WithContext(ctx)
	for backendName, backend := range o.backends {
		backendName, backend := backendName, backend
		query := queryFor(queries, backendName)

		cost := backend.CostPerQuery()
		if spent+cost > o.costBudget {
			logger.Warn("skipping backend, would exceed per-topic cost budget", "backend", string(backendName), "cost_so_far", spent, "backend_cost", cost)
			continue
		}
		spent += cost

		p.Go(func(ctx context.Context) (backendOutcome, error) {
			start := time.Now()
			results := backend.Search(ctx, query, maxResultsPerBackend)
			elapsed := time.Since(start)
			return backendOutcome{
				backend: backendName,
				results: results,
				stat: core.BackendStat{
					Requested: maxResultsPerBackend,
					Returned:  len(results),
					LatencyMS: int(elapsed.Milliseconds()),
					Succeeded: len(results) > 0,
				},
				failed: len(results) == 0,
			}, nil
		})
	}

	outcomes, _ := p.Wait()

	stats := make(map[core.SearchBackend]core.BackendStat, len(outcomes))
	var failed []core.SearchBackend
	succeeded := 0
	perBackendResults := make(map[core.SearchBackend][]core.SearchResult, len(outcomes))
	for _, oc := range outcomes {
		stats[oc.backend] = oc.stat
		perBackendResults[oc.backend] = oc.results
		if oc.failed {
			failed = append(failed, oc.backend)
		} else {
			succeeded++
		}
	}

	if succeeded < o.minSuccessfulBackends {
		return nil, &research.AllSourcesFailed{FailedBackends: failed}
	}

	fused := fuseRRF(perBackendResults)
	deduped := dedupContent(fused)
	ordered := diversityOrder(deduped)

	for _, r := range ordered {
		o.persistSource(r)
	}

	return &Result{
		Topic:        topic,
		Results:      ordered,
		BackendStats: stats,
		CostUSD:      spent,
	}, nil
}

// buildQueries produces the three specialized modifiers (depth, breadth,
// trends); curated and breaking backends search on the plain topic.
func buildQueries(topic string) map[core.SearchBackend]string {
	return map[core.SearchBackend]string{
		core.BackendTavily:     fmt.Sprintf("%s (authoritative OR research OR official)", topic),
		core.BackendSearXNG:    fmt.Sprintf("%s (latest OR %d OR analysis)", topic, time.Now().Year()),
		core.BackendGemini:     fmt.Sprintf("%s (emerging OR predicted OR forecast)", topic),
		core.BackendRSS:        topic,
		core.BackendTheNewsAPI: topic,
	}
}

func queryFor(queries map[core.SearchBackend]string, backend core.SearchBackend) string {
	if q, ok := queries[backend]; ok {
		return q
	}
	return ""
}

// persistSource refreshes the Source Intelligence cache for a retained
// URL; a failure here never aborts the run (the cache is best-effort).
func (o *Orchestrator) persistSource(r core.SearchResult) {
	if o.store == nil || r.URL == "" {
		return
	}
	src := core.Source{
		URL:            r.URL,
		Domain:         r.Domain,
		Title:          r.Title,
		ContentPreview: r.Snippet,
		PublishedAt:    r.PublishedDate,
		LastFetchedAt:  time.Now().UTC(),
	}
	if err := o.store.SaveSource(src); err != nil {
		logger.Warn("failed to persist source", "url", r.URL, "error", err.Error())
	}
}
