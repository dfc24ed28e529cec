package rerank

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/core"
)

func sr(url, title, snippet, domain string, published *time.Time) core.SearchResult {
	return core.SearchResult{URL: url, Title: title, Snippet: snippet, Domain: domain, PublishedDate: published}
}

func TestBM25Score_RewardsTermOverlapAndPenalizesLength(t *testing.T) {
	docs := [][]string{
		{"electric", "vehicle", "battery", "prices"},
		{"electric", "vehicle", "battery", "prices", "fell", "sharply", "this", "quarter", "across", "every", "major", "market"},
		{"completely", "unrelated", "gardening", "tips"},
	}
	scores := BM25Score([]string{"electric", "vehicle", "battery"}, docs)
	require.Len(t, scores, 3)
	assert.Greater(t, scores[0], scores[2])
	assert.Greater(t, scores[0], scores[1], "shorter document with same term overlap should score higher")
	assert.Equal(t, 0.0, scores[2])
}

func TestRerank_DropsIrrelevantAndKeepsOnTopic(t *testing.T) {
	now := time.Now()
	results := []core.SearchResult{
		sr("https://a.example.com", "EV battery prices fall sharply", "battery costs down", "a.example.com", &now),
		sr("https://b.gardening.com", "Tips for growing tomatoes", "gardening advice", "b.gardening.com", &now),
	}
	r := New(nil, 0.0, 0.0, 25, "", "")
	out := r.Rerank(context.Background(), "ev battery prices", results)
	require.NotEmpty(t, out)
	assert.Equal(t, "https://a.example.com", out[0].URL)
}

func TestRerank_EmptyInputReturnsEmpty(t *testing.T) {
	r := New(nil, 0.0, 0.3, 25, "", "")
	out := r.Rerank(context.Background(), "anything", nil)
	assert.Empty(t, out)
}

func TestRunStage2_ReinjectsUnderrepresentedDomain(t *testing.T) {
	r := New(nil, 0.0, 0.0, 25, "", "")
	var stage1 []candidate
	for i := 0; i < 40; i++ {
		stage1 = append(stage1, candidate{
			result: core.SearchResult{URL: "https://common.example.com/x", Domain: "common.example.com"},
			score:  1.0 - float64(i)*0.01,
		})
	}
	stage1 = append(stage1, candidate{
		result: core.SearchResult{URL: "https://rare.example.com/y", Domain: "rare.example.com"},
		score:  0.1,
	})

	kept := r.runStage2(context.Background(), "query", stage1)
	var foundRare bool
	for _, c := range kept {
		if c.result.Domain == "rare.example.com" {
			foundRare = true
		}
	}
	assert.True(t, foundRare, "under-represented domain should be reinjected")
}

func TestLocalityScore_MatchesLanguageTLD(t *testing.T) {
	assert.Equal(t, 1.0, localityScore("news.de", "germany", "de"))
	assert.Equal(t, 0.5, localityScore("news.com", "", ""))
	assert.Equal(t, 0.0, localityScore("news.jp", "germany", "de"))
}

func TestRunStage3_NoveltyPenalizesDuplicateContent(t *testing.T) {
	r := New(nil, 0.0, 0.0, 25, "", "")
	stage2 := []candidate{
		{result: sr("https://a.example.com", "EV battery prices fall sharply this quarter", "", "a.example.com", nil), score: 1.0},
		{result: sr("https://b.example.com", "EV battery prices fall sharply this quarter!", "", "b.example.com", nil), score: 1.0},
	}
	final := r.runStage3(context.Background(), "ev battery prices", stage2)
	require.Len(t, final, 2)
	assert.Greater(t, final[0].score, final[1].score, "near-duplicate accepted second should score lower on novelty")
}

func TestNormalizeBM25_DegradesWhenNoScorerConfigured(t *testing.T) {
	r := New(nil, 0.0, 0.0, 25, "", "")
	candidates := []candidate{{score: 1.0}, {score: 0.5}, {score: 0.0}}
	scores := r.score(context.Background(), "q", candidates)
	require.Len(t, scores, 3)
	assert.Equal(t, 1.0, scores[0])
	assert.Equal(t, 0.0, scores[2])
}
