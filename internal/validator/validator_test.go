package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/core"
)

func TestFilterTopics_SortsDescendingByTotalScoreAboveThreshold(t *testing.T) {
	now := time.Now().UTC()
	candidates := []Candidate{
		{
			Cluster: core.TopicCluster{ClusterID: "strong", RepresentativeTitle: "electric vehicle battery prices"},
			Documents: []core.Document{
				{Source: "rss_example", PublishedAt: now},
				{Source: "reddit_evs", PublishedAt: now},
				{Source: "trends", PublishedAt: now},
			},
		},
		{
			Cluster: core.TopicCluster{ClusterID: "weak", RepresentativeTitle: "unrelated gardening tips"},
			Documents: []core.Document{
				{Source: "rss_example", PublishedAt: now.Add(-60 * 24 * time.Hour)},
			},
		},
	}

	scored := FilterTopics(candidates, []string{"electric", "vehicle", "battery"}, nil, 0.2, 10)
	require.NotEmpty(t, scored)
	assert.Equal(t, "strong", scored[0].Cluster.ClusterID)

	for i := 1; i < len(scored); i++ {
		assert.GreaterOrEqual(t, scored[i-1].TotalScore, scored[i].TotalScore)
	}
}

func TestFilterTopics_RespectsTopNCap(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, Candidate{
			Cluster:   core.TopicCluster{ClusterID: string(rune('a' + i)), RepresentativeTitle: "widget market trends"},
			Documents: []core.Document{{Source: "trends", PublishedAt: time.Now().UTC()}},
		})
	}

	scored := FilterTopics(candidates, []string{"widget"}, nil, 0.0, 2)
	assert.Len(t, scored, 2)
}

func TestDiversity_CountsUniqueCollectorFamilies(t *testing.T) {
	docs := []core.Document{
		{Source: "rss_heise"},
		{Source: "rss_other"},
		{Source: "reddit_golang"},
	}
	assert.InDelta(t, 2.0/5.0, diversity(docs), 1e-9)
}

func TestFreshness_DecaysWithAge(t *testing.T) {
	fresh := []core.Document{{PublishedAt: time.Now().UTC()}}
	stale := []core.Document{{PublishedAt: time.Now().UTC().Add(-14 * 24 * time.Hour)}}

	assert.InDelta(t, 1.0, freshness(fresh), 0.01)
	assert.InDelta(t, 0.25, freshness(stale), 0.01)
}

func TestVolume_UsesAutocompleteRankWhenPresent(t *testing.T) {
	docs := []core.Document{
		{Source: "autocomplete", Title: "best electric vehicles 2026", Rank: 1},
	}
	v := volume(docs)
	assert.Greater(t, v, 0.5)
}

func TestVolume_DefaultsWhenNoAutocompleteDocument(t *testing.T) {
	docs := []core.Document{{Source: "rss_example"}}
	assert.Equal(t, 0.5, volume(docs))
}

func TestNovelty_FullyNovelWithNoExistingTopics(t *testing.T) {
	assert.Equal(t, 1.0, novelty("brand new topic", nil))
}

func TestNovelty_LowWhenNearIdenticalTitleExists(t *testing.T) {
	n := novelty("electric vehicle battery prices fall sharply", []string{"electric vehicle battery prices fall sharply"})
	assert.Less(t, n, 0.3)
}

func TestRelevance_JaccardOverlapWithSeedKeywords(t *testing.T) {
	seeds := tokenizeAll([]string{"electric vehicle"})
	assert.Greater(t, relevance("electric vehicle news today", seeds), 0.0)
	assert.Equal(t, 0.0, relevance("completely unrelated topic", seeds))
}

func TestWeightsSumToOne(t *testing.T) {
	sum := weightRelevance + weightDiversity + weightFreshness + weightVolume + weightNovelty
	assert.InDelta(t, 1.0, sum, 1e-9)
}
