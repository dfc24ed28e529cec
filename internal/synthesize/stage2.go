package synthesize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"research-agent/internal/core"
	"research-agent/internal/logger"
)

// passageSelection is one source's LLM-picked passages (step 3).
type passageSelection struct {
	Source   core.SearchResult
	Passages []string
}

// selectPassages asks the LLM to choose passagesSelectedPerSource passages
// per source from its candidate paragraphs. A source whose LLM call fails
// or returns nothing parseable falls back to its leading candidates, so
// one bad call never drops a whole source from synthesis.
func (s *Synthesizer) selectPassages(ctx context.Context, query string, sources []core.SearchResult, candidates []sourcePassages) []passageSelection {
	out := make([]passageSelection, len(sources))
	for i, src := range sources {
		var paras []string
		if i < len(candidates) {
			paras = candidates[i].paragraphs
		}
		out[i] = passageSelection{Source: src, Passages: s.selectForSource(ctx, query, paras)}
	}
	return out
}

func (s *Synthesizer) selectForSource(ctx context.Context, query string, paras []string) []string {
	if len(paras) == 0 {
		return nil
	}
	if len(paras) <= passagesSelectedPerSource {
		return paras
	}

	raw, err := s.llm.GenerateStructured(ctx, buildPassageSelectionPrompt(query, paras))
	if err != nil {
		logger.Warn("passage selection failed, keeping leading candidates", "error", err.Error())
		return paras[:passagesSelectedPerSource]
	}

	var resp struct {
		SelectedIndices []int `json:"selected_indices"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil || len(resp.SelectedIndices) == 0 {
		return paras[:passagesSelectedPerSource]
	}

	selected := make([]string, 0, passagesSelectedPerSource)
	seen := make(map[int]bool, len(resp.SelectedIndices))
	for _, idx := range resp.SelectedIndices {
		pos := idx - 1 // the prompt numbers passages 1-based
		if pos < 0 || pos >= len(paras) || seen[pos] {
			continue
		}
		seen[pos] = true
		selected = append(selected, paras[pos])
		if len(selected) == passagesSelectedPerSource {
			break
		}
	}
	if len(selected) == 0 {
		return paras[:passagesSelectedPerSource]
	}
	return selected
}

func buildPassageSelectionPrompt(query string, paras []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nFrom the numbered passages below, select the %d most relevant to the query.\n", query, passagesSelectedPerSource)
	fmt.Fprintf(&b, "Respond with only JSON of the form {\"selected_indices\": [n1, n2, n3]}.\n\n")
	for i, p := range paras {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, p)
	}
	return b.String()
}
