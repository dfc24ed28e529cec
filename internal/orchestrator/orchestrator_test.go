package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/core"
	"research-agent/internal/research"
)

type fakeBackend struct {
	name        core.SearchBackend
	horizon     core.Horizon
	cost        float64
	citations   bool
	results     []core.SearchResult
	healthState core.HealthStatus
}

func (f *fakeBackend) Name() core.SearchBackend { return f.name }
func (f *fakeBackend) Horizon() core.Horizon    { return f.horizon }
func (f *fakeBackend) CostPerQuery() float64    { return f.cost }
func (f *fakeBackend) SupportsCitations() bool  { return f.citations }
func (f *fakeBackend) Search(ctx context.Context, query string, maxResults int) []core.SearchResult {
	return f.results
}
func (f *fakeBackend) HealthCheck(ctx context.Context) core.HealthStatus { return f.healthState }

func sr(backend core.SearchBackend, url, title string) core.SearchResult {
	return core.SearchResult{URL: url, Title: title, Snippet: title, Backend: backend, Domain: "example.com"}
}

func TestOrchestrator_FusesAcrossBackendsAndOrdersByScore(t *testing.T) {
	backends := map[core.SearchBackend]research.Backend{
		core.BackendTavily: &fakeBackend{
			name: core.BackendTavily, horizon: core.HorizonDepth,
			results: []core.SearchResult{sr(core.BackendTavily, "https://a.example.com", "Shared result A")},
		},
		core.BackendSearXNG: &fakeBackend{
			name: core.BackendSearXNG, horizon: core.HorizonBreadth,
			results: []core.SearchResult{
				sr(core.BackendSearXNG, "https://a.example.com", "Shared result A duplicate title"),
				sr(core.BackendSearXNG, "https://b.example.com", "Unique result B"),
			},
		},
	}

	orch := New(backends, nil, 1, 0, 0)
	result, err := orch.Research(context.Background(), "widgets", 10)
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)

	// a.example.com was returned by two backends, so it must rank first.
	assert.Equal(t, "https://a.example.com", result.Results[0].URL)
	assert.Len(t, result.BackendStats, 2)
}

func TestOrchestrator_AllSourcesFailedWhenBelowMinimum(t *testing.T) {
	backends := map[core.SearchBackend]research.Backend{
		core.BackendTavily: &fakeBackend{name: core.BackendTavily, results: nil},
	}
	orch := New(backends, nil, 1, 0, 0)
	_, err := orch.Research(context.Background(), "widgets", 10)
	require.Error(t, err)
	var asf *research.AllSourcesFailed
	require.ErrorAs(t, err, &asf)
}

func TestOrchestrator_SkipsBackendExceedingCostBudget(t *testing.T) {
	backends := map[core.SearchBackend]research.Backend{
		core.BackendTavily: &fakeBackend{
			name: core.BackendTavily, cost: 1.0,
			results: []core.SearchResult{sr(core.BackendTavily, "https://a.example.com", "expensive")},
		},
		core.BackendSearXNG: &fakeBackend{
			name: core.BackendSearXNG, cost: 0,
			results: []core.SearchResult{sr(core.BackendSearXNG, "https://b.example.com", "free")},
		},
	}
	orch := New(backends, nil, 1, 0, 0.01)
	result, err := orch.Research(context.Background(), "widgets", 10)
	require.NoError(t, err)
	_, hadExpensive := result.BackendStats[core.BackendTavily]
	assert.False(t, hadExpensive, "over-budget backend must not be called")
}

func TestFuseRRF_ScoresByReciprocalRank(t *testing.T) {
	perBackend := map[core.SearchBackend][]core.SearchResult{
		core.BackendTavily:  {sr(core.BackendTavily, "https://x.example.com", "x")},
		core.BackendSearXNG: {sr(core.BackendSearXNG, "https://y.example.com", "y"), sr(core.BackendSearXNG, "https://x.example.com", "x again")},
	}
	fused := fuseRRF(perBackend)
	require.Len(t, fused, 2)
	assert.Equal(t, "https://x.example.com", fused[0].URL)
	assert.ElementsMatch(t, []core.SearchBackend{core.BackendTavily, core.BackendSearXNG}, fused[0].ProvenanceBackends)
}

func TestDedupContent_DropsNearDuplicateTitles(t *testing.T) {
	results := []core.SearchResult{
		{URL: "https://a.example.com", Title: "Electric vehicle battery prices fall sharply this quarter"},
		{URL: "https://b.example.com", Title: "Electric vehicle battery prices fall sharply this quarter!"},
		{URL: "https://c.example.com", Title: "Completely unrelated gardening advice for beginners"},
	}
	deduped := dedupContent(results)
	assert.Len(t, deduped, 2)
}

func TestDiversityOrder_InterleavesByFixedBackendOrder(t *testing.T) {
	results := []core.SearchResult{
		sr(core.BackendRSS, "https://r1.example.com", "r1"),
		sr(core.BackendTavily, "https://t1.example.com", "t1"),
		sr(core.BackendTavily, "https://t2.example.com", "t2"),
		sr(core.BackendSearXNG, "https://s1.example.com", "s1"),
	}
	ordered := diversityOrder(results)
	require.Len(t, ordered, 4)
	assert.Equal(t, core.BackendTavily, ordered[0].Backend)
	assert.Equal(t, core.BackendSearXNG, ordered[1].Backend)
	assert.Equal(t, core.BackendRSS, ordered[2].Backend)
	assert.Equal(t, core.BackendTavily, ordered[3].Backend)
}
