package synthesize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/core"
	"research-agent/internal/govern"
)

type fakeLLM struct {
	generateText       string
	generateErr        error
	structuredResponse string
	structuredErr      error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return f.generateText, f.generateErr
}

func (f *fakeLLM) GenerateStructured(ctx context.Context, prompt string) (string, error) {
	return f.structuredResponse, f.structuredErr
}

func sr(url, title, snippet, domain string) core.SearchResult {
	return core.SearchResult{URL: url, Title: title, Snippet: snippet, Domain: domain}
}

func TestSplitParagraphs_DropsShortFragments(t *testing.T) {
	text := "Short.\n\nThis is a long enough paragraph to survive the forty character cutoff easily.\n\nok"
	paras := splitParagraphs(text)
	require.Len(t, paras, 1)
	assert.Contains(t, paras[0], "long enough paragraph")
}

func TestPrefilterParagraphs_KeepsTopByBM25AndCapsAtTen(t *testing.T) {
	s := New(&fakeLLM{}, govern.New(), StrategyBM25LLM, 0)
	var text string
	for i := 0; i < 15; i++ {
		text += "This paragraph has nothing to do with the query at all whatsoever today.\n\n"
	}
	text += "This paragraph is specifically about electric vehicle battery chemistry research.\n\n"

	out := s.prefilterParagraphs("electric vehicle battery", []string{text})
	require.Len(t, out, 1)
	assert.LessOrEqual(t, len(out[0].paragraphs), paragraphsKeptPerSource)
	assert.Contains(t, out[0].paragraphs[0], "electric vehicle battery chemistry")
}

func TestSelectForSource_ParsesStructuredIndices(t *testing.T) {
	paras := []string{"passage one text here", "passage two text here", "passage three", "passage four", "passage five"}
	s := New(&fakeLLM{structuredResponse: `{"selected_indices": [2, 4, 5]}`}, govern.New(), StrategyBM25LLM, 0)

	got := s.selectForSource(context.Background(), "query", paras)
	require.Len(t, got, 3)
	assert.Equal(t, "passage two text here", got[0])
	assert.Equal(t, "passage four", got[1])
	assert.Equal(t, "passage five", got[2])
}

func TestSelectForSource_FallsBackOnLLMError(t *testing.T) {
	paras := []string{"p1 text here long enough", "p2 text here long enough", "p3", "p4", "p5"}
	s := New(&fakeLLM{structuredErr: errors.New("boom")}, govern.New(), StrategyBM25LLM, 0)

	got := s.selectForSource(context.Background(), "query", paras)
	require.Len(t, got, passagesSelectedPerSource)
	assert.Equal(t, paras[:passagesSelectedPerSource], got)
}

func TestSelectForSource_FewerParasThanQuotaReturnsAll(t *testing.T) {
	paras := []string{"only one passage"}
	s := New(&fakeLLM{}, govern.New(), StrategyBM25LLM, 0)
	got := s.selectForSource(context.Background(), "query", paras)
	assert.Equal(t, paras, got)
}

func TestSynthesize_EmptySourcesReturnsEmptyResult(t *testing.T) {
	s := New(&fakeLLM{}, govern.New(), StrategyBM25LLM, 0)
	result := s.Synthesize(context.Background(), "query", nil)
	assert.Empty(t, result.Article)
	assert.Empty(t, result.Citations)
	assert.Zero(t, result.CostUSD)
}

func TestSynthesize_FallsBackToReRankerOutputOnSynthesisFailure(t *testing.T) {
	s := New(&fakeLLM{generateErr: errors.New("llm down")}, govern.New(), StrategyBM25LLM, 0)
	sources := []core.SearchResult{sr("https://a.example/1", "A", "snippet a", "a.example")}

	result := s.Synthesize(context.Background(), "query", sources)
	assert.Empty(t, result.Article)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "https://a.example/1", result.Citations[0])
	assert.Zero(t, result.CostUSD)
}

func TestSynthesize_SuccessReturnsArticleAndStrategyCost(t *testing.T) {
	s := New(&fakeLLM{generateText: "A cited article [Source 1]."}, govern.New(), StrategyLLMOnly, 0)
	sources := []core.SearchResult{sr("https://a.example/1", "A", "snippet a long enough to stand alone as a passage", "a.example")}

	result := s.Synthesize(context.Background(), "query", sources)
	assert.Equal(t, "A cited article [Source 1].", result.Article)
	assert.Equal(t, costLLMOnly, result.CostUSD)
	require.Len(t, result.Citations, 1)
}

func TestExtractOne_FallsBackToSnippetOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(&fakeLLM{}, govern.New(), StrategyBM25LLM, 0)
	got := s.extractOne(context.Background(), sr(srv.URL, "T", "fallback snippet", "example.com"))
	assert.Equal(t, "fallback snippet", got)
}

func TestExtractOne_ExtractsArticleTextOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article><p>The extracted article body text goes here in full.</p></article></body></html>`))
	}))
	defer srv.Close()

	s := New(&fakeLLM{}, govern.New(), StrategyBM25LLM, 0)
	got := s.extractOne(context.Background(), sr(srv.URL, "T", "fallback snippet", "example.com"))
	assert.Contains(t, got, "extracted article body text")
}

func TestExtractOne_PrefersExistingContentOverFetch(t *testing.T) {
	s := New(&fakeLLM{}, govern.New(), StrategyBM25LLM, 0)
	result := sr("https://unreachable.invalid", "T", "snippet", "example.com")
	result.Content = "already have content"
	got := s.extractOne(context.Background(), result)
	assert.Equal(t, "already have content", got)
}
