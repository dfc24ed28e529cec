package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/collectors"
	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/crosstopic"
	"research-agent/internal/dedup"
	"research-agent/internal/orchestrator"
	"research-agent/internal/research"
	"research-agent/internal/store"
	"research-agent/internal/validator"
)

func fakeScoredTopic(title string) validator.ScoredTopic {
	return validator.ScoredTopic{
		Cluster: core.TopicCluster{
			ClusterID:           "c-" + title,
			Label:               title + " cluster",
			RepresentativeTitle: title,
			DocumentIDs:         []string{"d1"},
		},
		Metrics: validator.MetricScores{
			Relevance: 0.8,
			Diversity: 0.6,
			Freshness: 0.7,
			Volume:    0.5,
			Novelty:   0.4,
		},
		TotalScore: 0.64,
	}
}

// newTestRunner builds a Runner over an in-memory store with every
// heavyweight dependency left nil; individual tests wire in just the
// fields their scenario exercises.
func newTestRunner(t *testing.T) (*Runner, *store.Store) {
	t.Helper()
	st, err := store.NewMemoryStore()
	require.NoError(t, err)
	return &Runner{
		cfg:   &config.MarketConfig{MarketName: "default", Language: "en", Domain: "example.com"},
		store: st,
	}, st
}

func TestRunResult_Finalize_TalliesPerStatus(t *testing.T) {
	r := NewRunResult()
	r.Topics = []TopicResult{
		{Status: core.TopicStatusResearched},
		{Status: core.TopicStatusResearched},
		{Status: core.TopicStatusResearchFailed},
		{Status: core.TopicStatusSynthesisFailed},
		{Status: core.TopicStatusOK},
	}
	r.finalize()

	assert.Equal(t, 2, r.ResearchedCount)
	assert.Equal(t, 1, r.ResearchFailedCount)
	assert.Equal(t, 1, r.SynthesisFailedCount)
	assert.Equal(t, 1, r.OKCount)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
}

func TestRunResult_DuplicateRate(t *testing.T) {
	r := &RunResult{DocumentsCollected: 3, DuplicatesDropped: 1}
	assert.InDelta(t, 0.25, r.DuplicateRate(), 1e-9)

	empty := &RunResult{}
	assert.Equal(t, 0.0, empty.DuplicateRate())
}

func TestTopicID_DeterministicAcrossCalls(t *testing.T) {
	a := topicID("Electric Vehicle Tax Credits", "example.com", "us")
	b := topicID("Electric Vehicle Tax Credits", "example.com", "us")
	assert.Equal(t, a, b)

	c := topicID("Electric Vehicle Tax Credits", "example.com", "de")
	assert.NotEqual(t, a, c, "a different market must not collide onto the same id")
}

func TestTopicID_SlugifiesTitle(t *testing.T) {
	id := topicID("EV Tax Credits: What's New?", "example.com", "us")
	assert.Contains(t, id, "ev-tax-credits")
}

func TestDominantSource_MajorityWins(t *testing.T) {
	docs := []core.Document{
		{Source: "rss_heise"},
		{Source: "rss_verge"},
		{Source: "reddit_electricvehicles"},
	}
	assert.Equal(t, core.TopicSourceRSS, dominantSource(docs))
}

func TestDominantSource_EmptyDefaultsToManual(t *testing.T) {
	assert.Equal(t, core.TopicSourceManual, dominantSource(nil))
}

func TestSourceTagToTopicSource_UnknownTagDefaultsToManual(t *testing.T) {
	assert.Equal(t, core.TopicSourceManual, sourceTagToTopicSource("something_unrecognized"))
	assert.Equal(t, core.TopicSourceTrends, sourceTagToTopicSource("trends"))
	assert.Equal(t, core.TopicSourceAutocomplete, sourceTagToTopicSource("autocomplete"))
}

func TestValidateClusterCohesion_NeverPanicsOnEmptyInput(t *testing.T) {
	assert.NotPanics(t, func() { validateClusterCohesion(nil, 0) })
	assert.NotPanics(t, func() {
		validateClusterCohesion([]core.TopicCluster{{ClusterID: "c1", DocumentIDs: []string{"d1"}}}, 1)
	})
}

func TestCachedReportIsFresh(t *testing.T) {
	r, st := newTestRunner(t)

	topicNoReport := core.Topic{ID: "t1"}
	assert.False(t, r.cachedReportIsFresh(topicNoReport))

	fresh := core.Topic{
		ID: "t2",
		ResearchReport: &core.ResearchReport{
			Citations: []string{"https://example.com/a"},
		},
	}
	require.NoError(t, st.SaveSource(core.Source{URL: "https://example.com/a", Domain: "example.com", LastFetchedAt: time.Now()}))
	assert.True(t, r.cachedReportIsFresh(fresh))

	stale := core.Topic{
		ID: "t3",
		ResearchReport: &core.ResearchReport{
			Citations: []string{"https://example.com/b"},
		},
	}
	require.NoError(t, st.SaveSource(core.Source{
		URL:           "https://example.com/b",
		Domain:        "example.com",
		LastFetchedAt: time.Now().Add(-30 * 24 * time.Hour),
	}))
	assert.False(t, r.cachedReportIsFresh(stale))

	unknownSource := core.Topic{
		ID: "t4",
		ResearchReport: &core.ResearchReport{
			Citations: []string{"https://example.com/never-fetched"},
		},
	}
	assert.False(t, r.cachedReportIsFresh(unknownSource))
}

func TestBuildTopic_PreservesExistingReportOnRecluster(t *testing.T) {
	r, st := newTestRunner(t)

	scored := fakeScoredTopic("Electric Vehicle Incentives")
	members := []core.Document{{Source: "rss_heise", SourceURL: "https://example.com/a"}}

	first := r.buildTopic(scored, members)
	require.NoError(t, st.UpsertTopic(first))

	existing, err := st.GetTopic(first.ID)
	require.NoError(t, err)
	existing.ResearchReport = &core.ResearchReport{TopicID: first.ID, Query: first.Title}
	require.NoError(t, st.UpsertTopic(*existing))

	second := r.buildTopic(scored, members)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.ResearchReport)
	assert.Equal(t, first.ID, second.ResearchReport.TopicID)
}

func TestBuildTopic_MapsValidatorMetricsOntoTopicScores(t *testing.T) {
	r, _ := newTestRunner(t)
	scored := fakeScoredTopic("Heat Pump Subsidies")
	topic := r.buildTopic(scored, nil)

	assert.Equal(t, scored.Metrics.Diversity, topic.DemandScore)
	assert.Equal(t, scored.Metrics.Relevance, topic.FitScore)
	assert.Equal(t, scored.Metrics.Novelty, topic.NoveltyScore)
	assert.Equal(t, scored.TotalScore, topic.PriorityScore)
	assert.Equal(t, (scored.Metrics.Freshness+scored.Metrics.Volume)/2, topic.OpportunityScore)
	assert.Equal(t, core.PriorityFromScore(scored.TotalScore), topic.Priority)
}

func TestProcessTopic_CacheHitSkipsOrchestrator(t *testing.T) {
	r, st := newTestRunner(t)
	r.crossTopic = crosstopic.New(st)

	require.NoError(t, st.SaveSource(core.Source{URL: "https://example.com/cached", Domain: "example.com", LastFetchedAt: time.Now()}))
	topic := core.Topic{
		ID:    "cached-topic",
		Title: "Cached Topic",
		ResearchReport: &core.ResearchReport{
			Citations: []string{"https://example.com/cached"},
		},
	}
	require.NoError(t, st.UpsertTopic(topic))

	tr := r.processTopic(context.Background(), topic)
	assert.Equal(t, core.TopicStatusOK, tr.Status)
	assert.Empty(t, tr.Error)
	assert.Equal(t, 0.0, tr.CostUSD)
}

// failingBackend always reports zero results, forcing AllSourcesFailed.
type failingBackend struct{}

func (failingBackend) Name() core.SearchBackend   { return core.BackendTavily }
func (failingBackend) Horizon() core.Horizon      { return core.HorizonDepth }
func (failingBackend) CostPerQuery() float64      { return 0 }
func (failingBackend) SupportsCitations() bool    { return false }
func (failingBackend) Search(ctx context.Context, query string, maxResults int) []core.SearchResult {
	return nil
}
func (failingBackend) HealthCheck(ctx context.Context) core.HealthStatus {
	return core.HealthFailed
}

func TestProcessTopic_ResearchFailureRetainsTopicAndQueuesDeadLetter(t *testing.T) {
	r, st := newTestRunner(t)
	r.crossTopic = crosstopic.New(st)
	r.orch = orchestrator.New(map[core.SearchBackend]research.Backend{
		core.BackendTavily: failingBackend{},
	}, st, 1, 0, 0)

	topic := core.Topic{ID: "will-fail", Title: "A Topic With No Sources"}
	require.NoError(t, st.UpsertTopic(topic))

	tr := r.processTopic(context.Background(), topic)
	assert.Equal(t, core.TopicStatusResearchFailed, tr.Status)
	assert.NotEmpty(t, tr.Error)

	due, err := st.DueDeadLetters(time.Now().Add(5 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "research", due[0].Kind)

	persisted, err := st.GetTopic("will-fail")
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Nil(t, persisted.ResearchReport)
}

// fakeCollector returns a fixed document batch, letting collect() be
// exercised without a network-backed collector.
type fakeCollector struct {
	name string
	docs []core.Document
}

func (f fakeCollector) Name() string { return f.name }
func (f fakeCollector) Collect(ctx context.Context, cfg *config.MarketConfig) []core.Document {
	return f.docs
}

func TestCollect_DeduplicatesAndPersists(t *testing.T) {
	r, st := newTestRunner(t)
	r.dedup = dedup.New()
	r.collectorList = []collectors.Collector{
		fakeCollector{name: "a", docs: []core.Document{
			{ID: "1", Source: "rss_a", CanonicalURL: "https://example.com/x", Title: "Same Story", Content: "content"},
		}},
		fakeCollector{name: "b", docs: []core.Document{
			{ID: "2", Source: "rss_b", CanonicalURL: "https://example.com/x-mirror", Title: "Same Story", Content: "content"},
		}},
	}

	docs, dropped, err := r.collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, len(docs))
	assert.Equal(t, 1, dropped)

	_ = st // persistence checked implicitly: InsertDocument errors would surface as a shorter docs slice
}
