// Package clustering implements the topic clusterer: TF-IDF
// vectorization over Document titles + a content prefix, followed by
// density-based (HDBSCAN-style) clustering with a fixed min_cluster_size
// and cosine distance.
package clustering

import (
	"fmt"

	"research-agent/internal/core"
)

// MinClusterSize is the minimum number of documents needed to form a
// cluster; smaller groupings are treated as noise.
const MinClusterSize = 3

// Cluster groups same-language Documents into TopicClusters. Noise points
// (documents HDBSCAN could not assign) become singleton clusters only if
// their title contains one of seedKeywords; otherwise they are dropped.
//
// Given an identical input slice and seedKeywords, the result is
// deterministic: document order never affects term ranking (the
// vocabulary is sorted), and HDBSCAN itself is seed-free over a fixed
// distance function ("Determinism").
func Cluster(docs []core.Document, seedKeywords []string) ([]core.TopicCluster, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to cluster")
	}

	corpusTokens := make([][]string, len(docs))
	for i, d := range docs {
		corpusTokens[i] = tokenize(documentText(d))
	}
	vectorizer := newTFIDFVectorizer(corpusTokens)

	vectors := make([][]float64, len(docs))
	for i, tokens := range corpusTokens {
		vectors[i] = vectorizer.vectorize(tokens)
	}

	if len(docs) < MinClusterSize {
		return singletonOrDiscard(docs, vectors, vectorizer, seedKeywords), nil
	}

	assignments, err := runHDBSCAN(vectors)
	if err != nil {
		return nil, fmt.Errorf("density clustering: %w", err)
	}

	return buildClusters(docs, vectors, vectorizer, assignments, seedKeywords), nil
}

// documentText is the text fed to the vectorizer: title plus a bounded
// content prefix.
func documentText(d core.Document) string {
	content := d.Content
	if len(content) > contentPrefixChars {
		content = content[:contentPrefixChars]
	}
	return d.Title + " " + content
}

// singletonOrDiscard handles corpora too small to cluster: 's
// noise rule applies uniformly even when density clustering never runs.
func singletonOrDiscard(docs []core.Document, vectors [][]float64, vectorizer *tfidfVectorizer, seedKeywords []string) []core.TopicCluster {
	var clusters []core.TopicCluster
	for i, d := range docs {
		if !matchesSeedKeyword(d.Title, seedKeywords) {
			continue
		}
		clusters = append(clusters, core.TopicCluster{
			ClusterID:           fmt.Sprintf("singleton_%s", d.ID),
			Label:               joinTerms(vectorizer.topDiscriminativeTerms([][]float64{vectors[i]}, 3)),
			RepresentativeTitle: d.Title,
			DocumentIDs:         []string{d.ID},
		})
	}
	return clusters
}

func joinTerms(terms []string) string {
	label := ""
	for i, t := range terms {
		if i > 0 {
			label += " "
		}
		label += t
	}
	return label
}
