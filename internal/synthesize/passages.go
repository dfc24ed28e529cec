package synthesize

import (
	"sort"
	"strings"

	"research-agent/internal/rerank"
)

// sourcePassages holds the candidate paragraphs for one source, already
// ordered by descending relevance where stage 1 ran.
type sourcePassages struct {
	paragraphs []string
}

// prefilterParagraphs splits each source's extracted text into paragraphs,
// scores them against query with Okapi BM25 (reusing internal/rerank's
// stage-1 scorer), and keeps the top paragraphsKeptPerSource per source
// (step 2).
func (s *Synthesizer) prefilterParagraphs(query string, texts []string) []sourcePassages {
	queryTokens := rerank.Tokenize(query)
	out := make([]sourcePassages, len(texts))
	for i, text := range texts {
		paras := splitParagraphs(text)
		if len(paras) == 0 {
			continue
		}
		docTokens := make([][]string, len(paras))
		for j, p := range paras {
			docTokens[j] = rerank.Tokenize(p)
		}
		scores := rerank.BM25Score(queryTokens, docTokens)

		order := make([]int, len(paras))
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

		keep := paragraphsKeptPerSource
		if keep > len(order) {
			keep = len(order)
		}
		kept := make([]string, keep)
		for j := 0; j < keep; j++ {
			kept[j] = paras[order[j]]
		}
		out[i] = sourcePassages{paragraphs: kept}
	}
	return out
}

// allParagraphs splits every text into paragraphs without any BM25
// narrowing, for the llm_only strategy (step 3).
func allParagraphs(texts []string) []sourcePassages {
	out := make([]sourcePassages, len(texts))
	for i, t := range texts {
		out[i] = sourcePassages{paragraphs: splitParagraphs(t)}
	}
	return out
}

// splitParagraphs splits text on blank lines, discarding fragments under
// 40 characters as likely nav/boilerplate remnants rather than prose.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n")
	var paras []string
	var current strings.Builder

	flush := func() {
		p := strings.TrimSpace(current.String())
		if len(p) >= 40 {
			paras = append(paras, p)
		}
		current.Reset()
	}

	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(strings.TrimSpace(line))
	}
	flush()

	if len(paras) == 0 && strings.TrimSpace(text) != "" {
		paras = []string{strings.TrimSpace(text)}
	}
	return paras
}
