// Package llmclient is the single LLM request/response gateway every other
// component depends on through a narrow interface rather than importing
// this package directly (internal/collectors.TextGenerator,
// internal/research.TextGenerator, internal/rerank.SemanticScorer). It
// talks to the Gemini REST API over plain net/http+encoding/json, exposing
// a Client surface (Generate, GenerateEmbedding) without depending on a
// vendor SDK. Uses the same net/http+JSON backend shape as
// research/depth.go and research/breadth.go for the request/response
// plumbing.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

const (
	// DefaultBaseURL is the Gemini REST generateContent endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	// DefaultModel is the default Gemini text generation model.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultEmbeddingModel is the default Gemini embedding model.
	DefaultEmbeddingModel = "gemini-embedding-001"

	governClass = "llm"
)

// LLMError is the structured failure record every Client method returns
// instead of a bare error, so callers can branch on retryability.
type LLMError struct {
	Kind      string // "no_api_key" | "timeout" | "rate_limited" | "http_error" | "invalid_response"
	Retryable bool
	Detail    string
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error: kind=%s retryable=%v detail=%s", e.Kind, e.Retryable, e.Detail)
}

// Client is the concrete LLM gateway. It satisfies every package-local
// TextGenerator interface in the codebase via Generate and
// rerank.SemanticScorer via Score.
type Client struct {
	httpClient *http.Client
	governor   *govern.Governor
	apiKey     string
	model      string
	baseURL    string
}

// NewClient reads GEMINI_API_KEY (falling back to GOOGLE_GEMINI_API_KEY,
// GOOGLE_AI_API_KEY). model defaults to DefaultModel when empty.
func NewClient(model string, g *govern.Governor) *Client {
	apiKey := firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_GEMINI_API_KEY"), os.Getenv("GOOGLE_AI_API_KEY"))
	if model == "" {
		model = DefaultModel
	}
	if g == nil {
		g = govern.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: govern.DefaultLLMTimeout},
		governor:   g,
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultBaseURL,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Generate sends prompt to the model under a hard 60s timeout (charged to
// the governor's "llm" bucket even on timeout) and returns the generated
// text. Transient failures (429, 5xx) are retried with exponential backoff
// inside that same budget before the call is considered failed. Satisfies
// collectors.TextGenerator and research.TextGenerator.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", &LLMError{Kind: "no_api_key", Retryable: false, Detail: "GEMINI_API_KEY not configured"}
	}
	if err := c.governor.Acquire(ctx, governClass); err != nil {
		return "", &LLMError{Kind: "rate_limited", Retryable: true, Detail: err.Error()}
	}

	text, ok := govern.WithTimeout(ctx, govern.DefaultLLMTimeout, governClass, func(ctx context.Context) (string, error) {
		return c.generateWithRetry(ctx, prompt)
	})
	if !ok {
		return "", &LLMError{Kind: "timeout", Retryable: true, Detail: "generateContent did not complete within the hard timeout"}
	}
	return text, nil
}

// generateWithRetry retries doGenerate on transient HTTP failures with
// exponential backoff, the same backoff.Retry/backoff.Permanent posture
// steveyegge-beads' dolt store uses for its server reconnect loop.
func (c *Client) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	var text string
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		t, err := c.doGenerate(ctx, prompt)
		if err == nil {
			text = t
			return nil
		}
		if !isRetryableErr(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("retrying generateContent after transient failure", "attempt", attempt, "error", err.Error())
		return err
	}, bo)
	return text, err
}

// httpStatusError carries the Gemini API's HTTP status so callers can tell
// transient failures (429, 5xx) from permanent ones (4xx) without parsing
// the error string.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func isRetryableErr(err error) bool {
	httpErr, ok := err.(*httpStatusError)
	if !ok {
		return false
	}
	return httpErr.status == http.StatusTooManyRequests || httpErr.status >= http.StatusInternalServerError
}

func (c *Client) doGenerate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{status: resp.StatusCode, body: buf.String()}
	}

	text := gjson.GetBytes(buf.Bytes(), "candidates.0.content.parts.0.text").String()
	if text == "" {
		return "", fmt.Errorf("empty or unparseable generate response")
	}
	return text, nil
}

// HealthCheck reports whether the client is usable at all (API key
// present); it does not make a network call.
func (c *Client) HealthCheck() bool {
	return c.apiKey != ""
}
