package rerank

import (
	"math"
	"strings"
	"unicode"
)

// bm25K1 and bm25B are the standard Okapi BM25 tuning constants.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Tokenize lowercases and splits on non-letter/non-digit runes, matching the
// simple tokenizer pattern internal/clustering uses for its own TF-IDF corpus.
// Exported so internal/synthesize can reuse it for passage pre-filtering.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// BM25Score scores each document in docTokens against queryTokens using
// Okapi BM25 over term frequency, inverse document frequency and a
// document-length normalization against the corpus average length. It is
// the stage 1 lexical scorer and is reused by the content
// synthesizer's passage pre-filter (stage 1).
func BM25Score(queryTokens []string, docTokens [][]string) []float64 {
	n := len(docTokens)
	scores := make([]float64, n)
	if n == 0 || len(queryTokens) == 0 {
		return scores
	}

	docFreq := make(map[string]int)
	totalLen := 0
	for _, doc := range docTokens {
		totalLen += len(doc)
		seen := make(map[string]bool, len(doc))
		for _, t := range doc {
			if !seen[t] {
				seen[t] = true
				docFreq[t]++
			}
		}
	}
	avgLen := float64(totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	for i, doc := range docTokens {
		termFreq := make(map[string]int, len(doc))
		for _, t := range doc {
			termFreq[t]++
		}
		docLen := float64(len(doc))

		var score float64
		for _, qt := range queryTokens {
			tf := float64(termFreq[qt])
			if tf == 0 {
				continue
			}
			df := docFreq[qt]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			denom := tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen)
			score += idf * (tf * (bm25K1 + 1)) / denom
		}
		scores[i] = score
	}
	return scores
}
