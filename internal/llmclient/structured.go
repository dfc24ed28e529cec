package llmclient

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
)

// GenerateStructured asks the model for prompt and returns validated JSON
// text. Models routinely wrap JSON in markdown fences or trail it with
// commentary; this strips fences and, failing that, falls back to slicing
// out the first balanced-looking {...} span before giving up with an
// invalid_response LLMError (structured-JSON-with-repair chain).
func (c *Client) GenerateStructured(ctx context.Context, prompt string) (string, error) {
	raw, err := c.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	if candidate := stripFences(raw); gjson.Valid(candidate) {
		return candidate, nil
	}
	if candidate := sliceJSONObject(raw); gjson.Valid(candidate) {
		return candidate, nil
	}
	return "", &LLMError{Kind: "invalid_response", Retryable: false, Detail: "model did not return parseable JSON"}
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// sliceJSONObject takes the substring from the first '{' to the matching
// last '}', discarding any leading/trailing prose the model added.
func sliceJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
