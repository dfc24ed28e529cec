package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/core"
	"research-agent/internal/govern"
)

func TestParseTrendFindings_ExtractsFindingAndURL(t *testing.T) {
	response := "1. EV battery costs keep falling -- https://example.com/a\n" +
		"- Solid-state batteries near production -- https://example.com/b\n" +
		"this line has no url, skip it\n"

	results := parseTrendFindings(response, 10)
	require.Len(t, results, 2)
	assert.Equal(t, "EV battery costs keep falling", results[0].Title)
	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, core.BackendGemini, results[0].Backend)
}

func TestParseTrendFindings_RespectsMaxResults(t *testing.T) {
	response := "a -- https://x.com/1\nb -- https://x.com/2\nc -- https://x.com/3\n"
	results := parseTrendFindings(response, 2)
	assert.Len(t, results, 2)
}

type stubGenerator struct {
	response string
	err      error
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func TestTrendsBackend_SearchParsesGeneratorOutput(t *testing.T) {
	gen := stubGenerator{response: "widget demand rising -- https://example.com/widgets"}
	backend := NewTrendsBackend(gen, govern.New())

	results := backend.Search(context.Background(), "widgets", 5)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/widgets", results[0].URL)
}

func TestTrendsBackend_NoGeneratorReturnsNilNotError(t *testing.T) {
	backend := NewTrendsBackend(nil, govern.New())
	results := backend.Search(context.Background(), "widgets", 5)
	assert.Nil(t, results)
	assert.Equal(t, core.HealthFailed, backend.HealthCheck(context.Background()))
}

func TestQueryTokens_MatchesTokens(t *testing.T) {
	tokens := queryTokens("electric vehicle battery")
	assert.True(t, matchesTokens("New Electric Vehicle news today", tokens))
	assert.False(t, matchesTokens("completely unrelated gardening tips", tokens))
}

func TestDepthBackend_MissingAPIKeyReturnsNil(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	backend := NewDepthBackend(govern.New())
	results := backend.Search(context.Background(), "deep topic", 5)
	assert.Nil(t, results)
	assert.Equal(t, core.HealthFailed, backend.HealthCheck(context.Background()))
}

func TestDepthBackend_ParsesTavilyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tavilyResponse{
			Results: []struct {
				Title   string  `json:"title"`
				URL     string  `json:"url"`
				Content string  `json:"content"`
				Score   float64 `json:"score"`
			}{
				{Title: "Deep result", URL: "https://example.com/deep", Content: "authoritative content", Score: 0.9},
			},
		})
	}))
	defer srv.Close()

	t.Setenv("TAVILY_API_KEY", "test-key")
	backend := NewDepthBackend(govern.New())
	backend.baseURL = srv.URL

	results := backend.Search(context.Background(), "deep topic", 5)
	require.Len(t, results, 1)
	assert.Equal(t, "example.com", results[0].Domain)
	assert.Equal(t, core.BackendTavily, results[0].Backend)
}

func TestBreadthBackend_TracksRespondingEngines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(searxngResponse{
			Results: []struct {
				Title   string   `json:"title"`
				URL     string   `json:"url"`
				Content string   `json:"content"`
				Engines []string `json:"engines"`
			}{
				{Title: "Result one", URL: "https://a.example.com/1", Engines: []string{"bing", "brave"}},
				{Title: "Result two", URL: "https://b.example.com/2", Engines: []string{"bing"}},
			},
		})
	}))
	defer srv.Close()

	backend := NewBreadthBackend(govern.New(), srv.URL)
	results := backend.Search(context.Background(), "broad topic", 10)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"bing", "brave"}, backend.RespondingEngines())
}

func TestBreakingBackend_MissingTokenReturnsNil(t *testing.T) {
	t.Setenv("THENEWSAPI_TOKEN", "")
	backend := NewBreakingBackend(govern.New(), 24)
	results := backend.Search(context.Background(), "breaking topic", 5)
	assert.Nil(t, results)
}

func TestParseRFC3339Loose_ParsesKnownFormats(t *testing.T) {
	parsed := parseRFC3339Loose("2026-07-29T10:00:00.000000Z")
	require.NotNil(t, parsed)
	assert.Equal(t, 2026, parsed.Year())
}

func TestParseRFC3339Loose_EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, parseRFC3339Loose(""))
}

func TestBackendError_ErrorMessageIncludesFields(t *testing.T) {
	err := &BackendError{Query: "q", Kind: "timeout", Detail: "deadline exceeded"}
	assert.Contains(t, err.Error(), "q")
	assert.Contains(t, err.Error(), "timeout")
}

func TestAllSourcesFailed_ErrorMessageListsBackends(t *testing.T) {
	err := &AllSourcesFailed{FailedBackends: []core.SearchBackend{core.BackendTavily, core.BackendSearXNG}}
	assert.Contains(t, err.Error(), "tavily")
}
