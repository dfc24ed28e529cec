package crosstopic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/core"
	"research-agent/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLink_ZeroRelatedTopicsReturnsEmptyLists(t *testing.T) {
	st := newTestStore(t)
	s := New(st)

	topic := core.Topic{ID: "t1", Title: "Zebra Migration Patterns", Language: "en"}
	result, err := s.Link(topic, 0)
	require.NoError(t, err)
	assert.Empty(t, result.RelatedTopics)
	assert.Empty(t, result.CommonThemes)
	assert.Empty(t, result.UniqueAngles)
	assert.Empty(t, result.SuggestedInternalLinks)
}

func TestLink_SplitsCommonThemesFromUniqueAngles(t *testing.T) {
	st := newTestStore(t)

	related := core.Topic{
		ID: "t2", Title: "Solar Panel Efficiency Gains in Cold Climates", Language: "en",
		ResearchReport: &core.ResearchReport{
			ArticleMarkdown: "Battery storage costs and efficiency gains dominate solar panel discussions this quarter.",
		},
	}
	require.NoError(t, st.UpsertTopic(related))

	topic := core.Topic{
		ID: "t1", Title: "Solar Panel Efficiency Breakthrough 2026", Language: "en",
		ResearchReport: &core.ResearchReport{
			ArticleMarkdown: "This breakthrough in solar panel efficiency reduces manufacturing costs significantly.",
		},
	}

	s := New(st)
	result, err := s.Link(topic, 3)
	require.NoError(t, err)
	require.Len(t, result.RelatedTopics, 1)
	assert.Equal(t, "t2", result.RelatedTopics[0].ID)
	require.Len(t, result.SuggestedInternalLinks, 1)
	assert.Equal(t, "t2", result.SuggestedInternalLinks[0].TopicID)

	assert.Contains(t, result.CommonThemes, "efficiency")
	assert.Contains(t, result.UniqueAngles, "battery")
	assert.NotContains(t, result.UniqueAngles, "efficiency")
}

func TestTopKeywords_DropsStopWordsAndShortTokens(t *testing.T) {
	kws := topKeywords("The new battery chemistry research is about cost and efficiency of the of the", 5)
	assert.Contains(t, kws, "battery")
	assert.Contains(t, kws, "chemistry")
	assert.NotContains(t, kws, "the")
	assert.NotContains(t, kws, "new")
}

func TestTopKeywords_TiesBrokenAlphabetically(t *testing.T) {
	kws := topKeywords("zeta zeta alpha alpha beta beta", 3)
	assert.Equal(t, []string{"alpha", "beta", "zeta"}, kws)
}
