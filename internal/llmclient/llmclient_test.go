package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/govern"
)

func TestGenerate_MissingAPIKeyReturnsError(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_AI_API_KEY", "")
	c := NewClient("", govern.New())

	_, err := c.Generate(context.Background(), "hello")
	require.Error(t, err)
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, "no_api_key", llmErr.Kind)
}

func TestGenerate_ParsesCandidateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello world"}]}}]}`))
	}))
	defer srv.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	c := NewClient("", govern.New())
	c.baseURL = srv.URL

	text, err := c.Generate(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestGenerateEmbedding_ParsesValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer srv.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	c := NewClient("", govern.New())
	c.baseURL = srv.URL

	vec, err := c.GenerateEmbedding(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 0.0001)
}

func TestStripFences_RemovesMarkdownCodeBlock(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
}

func TestSliceJSONObject_DiscardsSurroundingProse(t *testing.T) {
	got := sliceJSONObject(`Sure, here you go:\n{"a":1}\nLet me know if you need more.`)
	assert.Equal(t, `{"a":1}`, got)
}

func TestGenerateStructured_RepairsProseWrappedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Here is the JSON: {\"result\":42} thanks!"}]}}]}`))
	}))
	defer srv.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	c := NewClient("", govern.New())
	c.baseURL = srv.URL

	out, err := c.GenerateStructured(context.Background(), "give me json")
	require.NoError(t, err)
	assert.Contains(t, out, `"result":42`)
}
