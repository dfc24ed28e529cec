package synthesize

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"research-agent/internal/collectors"
	"research-agent/internal/core"
	"research-agent/internal/govern"
)

// extractAll best-effort fetches each source's URL and extracts its main
// article text, falling back to the search result's snippet on any
// failure (step 1). Mirrors internal/collectors.RSSCollector's
// fetchFullText snippet-fallback contract.
func (s *Synthesizer) extractAll(ctx context.Context, sources []core.SearchResult) []string {
	texts := make([]string, len(sources))
	for i, src := range sources {
		texts[i] = s.extractOne(ctx, src)
	}
	return texts
}

func (s *Synthesizer) extractOne(ctx context.Context, src core.SearchResult) string {
	if src.Content != "" {
		return src.Content
	}
	if err := s.governor.Acquire(ctx, "web"); err != nil {
		return src.Snippet
	}

	text, ok := govern.WithTimeout(ctx, govern.DefaultFeedDiscoveryTimeout, "web", func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", "research-agent/1.0")
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("source fetch returned status %d", resp.StatusCode)
		}
		body := new(strings.Builder)
		if _, err := body.ReadFrom(resp.Body); err != nil {
			return "", err
		}
		return collectors.ExtractArticleText(body.String()), nil
	})
	if !ok || strings.TrimSpace(text) == "" {
		return src.Snippet
	}
	return text
}
