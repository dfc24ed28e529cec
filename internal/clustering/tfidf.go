package clustering

import (
	"math"
	"sort"
	"strings"
)

// contentPrefixChars bounds how much of a Document's content feeds the
// vectorizer, matching "titles + first 500 chars of content".
const contentPrefixChars = 500

// tfidfVectorizer builds sparse term-frequency/inverse-document-frequency
// vectors over a fixed, deterministically-ordered vocabulary so that
// repeated runs over identical input produce byte-identical vectors.
type tfidfVectorizer struct {
	vocabulary []string
	index      map[string]int
	idf        []float64
}

// newTFIDFVectorizer builds the vocabulary and IDF weights from a corpus of
// already-tokenized documents.
func newTFIDFVectorizer(corpus [][]string) *tfidfVectorizer {
	docFreq := make(map[string]int)
	for _, tokens := range corpus {
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			docFreq[tok]++
		}
	}

	vocabulary := make([]string, 0, len(docFreq))
	for term := range docFreq {
		vocabulary = append(vocabulary, term)
	}
	sort.Strings(vocabulary) // deterministic ordering regardless of map iteration

	index := make(map[string]int, len(vocabulary))
	idf := make([]float64, len(vocabulary))
	n := float64(len(corpus))
	for i, term := range vocabulary {
		index[term] = i
		idf[i] = math.Log((n+1)/(float64(docFreq[term])+1)) + 1
	}

	return &tfidfVectorizer{vocabulary: vocabulary, index: index, idf: idf}
}

// vectorize produces an L2-normalized TF-IDF vector over the fixed
// vocabulary for one document's tokens.
func (v *tfidfVectorizer) vectorize(tokens []string) []float64 {
	vec := make([]float64, len(v.vocabulary))
	if len(tokens) == 0 {
		return vec
	}

	termFreq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		termFreq[tok]++
	}

	var normSq float64
	for term, freq := range termFreq {
		idx, ok := v.index[term]
		if !ok {
			continue
		}
		tf := float64(freq) / float64(len(tokens))
		weight := tf * v.idf[idx]
		vec[idx] = weight
		normSq += weight * weight
	}

	if normSq == 0 {
		return vec
	}
	norm := math.Sqrt(normSq)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// tokenize lowercases and splits on non-letter runes.
func tokenize(text string) []string {
	return extractWords(strings.ToLower(text))
}

// extractWords is a minimal letters-only tokenizer.
func extractWords(text string) []string {
	var words []string
	word := ""
	for _, char := range text {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') {
			word += string(char)
		} else if word != "" {
			words = append(words, word)
			word = ""
		}
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}

// vectorNorm is the L2 norm of a vector, used to rank the cluster's
// representative document (: "highest-TF-IDF-norm document").
func vectorNorm(v []float64) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	return math.Sqrt(sumSq)
}

// topDiscriminativeTerms returns the n vocabulary terms with the highest
// combined TF-IDF weight across a cluster's member vectors, used to build
// the cluster label (: "top 3 discriminative tokens joined").
func (v *tfidfVectorizer) topDiscriminativeTerms(vectors [][]float64, n int) []string {
	totals := make([]float64, len(v.vocabulary))
	for _, vec := range vectors {
		for i, weight := range vec {
			totals[i] += weight
		}
	}

	type termWeight struct {
		term   string
		weight float64
	}
	ranked := make([]termWeight, 0, len(v.vocabulary))
	for i, term := range v.vocabulary {
		if totals[i] > 0 {
			ranked = append(ranked, termWeight{term, totals[i]})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].term < ranked[j].term // stable tie-break
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	terms := make([]string, n)
	for i := 0; i < n; i++ {
		terms[i] = ranked[i].term
	}
	return terms
}
