package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/tidwall/gjson"

	"research-agent/internal/govern"
)

type embedRequest struct {
	Content content `json:"content"`
}

// GenerateEmbedding returns the gemini-embedding-001 embedding vector for
// text as the API returns it; no output dimensionality is requested and
// the vector is not truncated.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if c.apiKey == "" {
		return nil, &LLMError{Kind: "no_api_key", Retryable: false, Detail: "GEMINI_API_KEY not configured"}
	}

	vec, ok := govern.WithTimeout(ctx, govern.DefaultLLMTimeout, governClass, func(ctx context.Context) ([]float64, error) {
		return c.doEmbed(ctx, text)
	})
	if !ok {
		return nil, &LLMError{Kind: "timeout", Retryable: true, Detail: "embedContent did not complete within the hard timeout"}
	}
	return vec, nil
}

func (c *Client) doEmbed(ctx context.Context, text string) ([]float64, error) {
	reqBody, err := json.Marshal(embedRequest{Content: content{Parts: []part{{Text: text}}}})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:embedContent?key=%s", c.baseURL, DefaultEmbeddingModel, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed request returned status %d: %s", resp.StatusCode, buf.String())
	}

	values := gjson.GetBytes(buf.Bytes(), "embedding.values").Array()
	if len(values) == 0 {
		return nil, fmt.Errorf("empty or unparseable embed response")
	}
	vec := make([]float64, len(values))
	for i, v := range values {
		vec[i] = v.Float()
	}
	return vec, nil
}

// Score implements internal/rerank.SemanticScorer: it embeds the query
// once and every candidate text, scoring each by cosine similarity. Any
// embedding failure aborts the whole batch so the reranker degrades to
// its BM25 proxy rather than mixing real and missing scores.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	queryVec, err := c.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(texts))
	for i, text := range texts {
		vec, err := c.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		scores[i] = cosineSimilarity(queryVec, vec)
	}
	return scores, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
