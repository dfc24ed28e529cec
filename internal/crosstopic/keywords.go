package crosstopic

import (
	"sort"
	"strings"
	"unicode"

	"research-agent/internal/core"
)

// stopWords mirrors internal/store's title-tokenization stop list
// (FindRelatedTopics), extended with a few article-prose
// fillers that would otherwise dominate frequency counts over real text.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true, "in": true, "on": true,
	"for": true, "and": true, "or": true, "is": true, "are": true, "with": true, "at": true,
	"by": true, "from": true, "how": true, "what": true, "why": true, "it": true, "this": true,
	"that": true, "as": true, "be": true, "vs": true, "new": true, "source": true, "sources": true,
	"was": true, "were": true, "has": true, "have": true, "its": true, "their": true, "will": true,
	"can": true, "also": true, "more": true, "most": true, "such": true, "than": true, "into": true,
	"about": true, "after": true, "over": true, "other": true, "these": true, "those": true,
}

func reportText(report *core.ResearchReport) string {
	if report == nil {
		return ""
	}
	return report.ArticleMarkdown
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// topKeywords returns the n most frequent non-stop-word tokens in text,
// ties broken alphabetically for deterministic output.
func topKeywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, tok := range tokenize(text) {
		if len(tok) < 4 || stopWords[tok] {
			continue
		}
		counts[tok]++
	}

	type kv struct {
		word  string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	for w, c := range counts {
		kvs = append(kvs, kv{w, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].word < kvs[j].word
	})

	if n > len(kvs) {
		n = len(kvs)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = kvs[i].word
	}
	return out
}

// keywordSet widens the top-keyword window for the current topic's own
// report so it has a fair chance of overlapping a related topic's
// narrower top-8 list.
func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, kw := range topKeywords(text, topKeywordsPerTopic*3) {
		set[kw] = true
	}
	return set
}
