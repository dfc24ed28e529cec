package synthesize

import (
	"context"
	"fmt"
	"strings"

	"research-agent/internal/core"
)

// synthesizeArticle prompts the LLM for a <= maxArticleWords article with
// inline [Source N] citations mapping 1:1 to sources (step 4).
func (s *Synthesizer) synthesizeArticle(ctx context.Context, query string, sources []core.SearchResult, selected []passageSelection) (string, error) {
	return s.llm.Generate(ctx, s.buildSynthesisPrompt(query, sources, selected))
}

// buildSynthesisPrompt renders the query and its selected source passages
// into a single prompt, each source numbered to match its [Source N]
// citation marker in the generated article.
func (s *Synthesizer) buildSynthesisPrompt(query string, sources []core.SearchResult, selected []passageSelection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "QUERY: %s\n\nSOURCES:\n", query)
	for i, sel := range selected {
		fmt.Fprintf(&b, "[Source %d] %s - %s (%s)\n", i+1, sources[i].Title, sources[i].Domain, sources[i].URL)
		for _, p := range sel.Passages {
			fmt.Fprintf(&b, "  %s\n", truncate(p, 500))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `Write a single article, under %d words, synthesizing the sources above to answer the query.

REQUIREMENTS:
- Every factual claim must carry an inline citation in the form [Source N], matching the numbers above.
- Every [Source N] you use must correspond to one of the numbered sources listed.
- Synthesize rather than summarize one source at a time: connect, compare, and contrast across sources.
- Use clear, professional prose with section headings where useful.
- Do not add a Sources list at the end; citations are inline only.

Article:`, s.maxArticleWords)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
