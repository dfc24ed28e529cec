package clustering

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/humilityai/hdbscan"

	"research-agent/internal/core"
)

// cosineDistance computes cosine distance (1 - cosine similarity) between
// two TF-IDF vectors. Cosine distance, not Euclidean, is used because
// sparse high-dimensional TF-IDF vectors suffer the curse of
// dimensionality under Euclidean distance.
func cosineDistance(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		return 1.0
	}

	var dotProduct, mag1, mag2 float64
	for i := range x1 {
		dotProduct += x1[i] * x2[i]
		mag1 += x1[i] * x1[i]
		mag2 += x2[i] * x2[i]
	}
	if mag1 == 0 || mag2 == 0 {
		return 1.0
	}

	similarity := dotProduct / (math.Sqrt(mag1) * math.Sqrt(mag2))
	if similarity > 1.0 {
		similarity = 1.0
	} else if similarity < -1.0 {
		similarity = -1.0
	}
	return 1.0 - similarity
}

// runHDBSCAN clusters vectors and returns, for each input index, the
// cluster ID it was assigned to, or -1 for noise.
func runHDBSCAN(vectors [][]float64) ([]int, error) {
	clustering, err := hdbscan.NewClustering(vectors, MinClusterSize)
	if err != nil {
		return nil, fmt.Errorf("construct clustering: %w", err)
	}
	clustering = clustering.OutlierDetection()

	if err := clustering.Run(cosineDistance, hdbscan.VarianceScore, true); err != nil {
		return nil, fmt.Errorf("run clustering: %w", err)
	}

	clusterData := extractClusterData(clustering)
	assignments := make([]int, len(vectors))
	for i := range assignments {
		assignments[i] = -1
	}
	for clusterID, cluster := range clusterData {
		for _, pointIdx := range cluster.Points {
			if pointIdx >= 0 && pointIdx < len(assignments) {
				assignments[pointIdx] = clusterID
			}
		}
	}
	return assignments, nil
}

// buildClusters converts HDBSCAN's point assignments into TopicClusters,
// applying the representative-title and label rules, plus the
// noise-singleton rule for unassigned points.
func buildClusters(docs []core.Document, vectors [][]float64, vectorizer *tfidfVectorizer, assignments []int, seedKeywords []string) []core.TopicCluster {
	byCluster := make(map[int][]int)
	for i, clusterID := range assignments {
		if clusterID >= 0 {
			byCluster[clusterID] = append(byCluster[clusterID], i)
		}
	}

	var clusters []core.TopicCluster
	for clusterID, indices := range byCluster {
		docIDs := make([]string, len(indices))
		memberVectors := make([][]float64, len(indices))
		repIdx := indices[0]
		repNorm := vectorNorm(vectors[repIdx])

		for j, idx := range indices {
			docIDs[j] = docs[idx].ID
			memberVectors[j] = vectors[idx]
			if n := vectorNorm(vectors[idx]); n > repNorm {
				repNorm = n
				repIdx = idx
			}
		}

		label := joinTerms(vectorizer.topDiscriminativeTerms(memberVectors, 3))
		clusters = append(clusters, core.TopicCluster{
			ClusterID:           fmt.Sprintf("cluster_%d", clusterID),
			Label:               label,
			RepresentativeTitle: docs[repIdx].Title,
			DocumentIDs:         docIDs,
		})
	}

	for i, clusterID := range assignments {
		if clusterID != -1 {
			continue
		}
		if !matchesSeedKeyword(docs[i].Title, seedKeywords) {
			continue
		}
		clusters = append(clusters, core.TopicCluster{
			ClusterID:           fmt.Sprintf("singleton_%s", docs[i].ID),
			Label:               joinTerms(vectorizer.topDiscriminativeTerms([][]float64{vectors[i]}, 3)),
			RepresentativeTitle: docs[i].Title,
			DocumentIDs:         []string{docs[i].ID},
		})
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ClusterID < clusters[j].ClusterID })
	return clusters
}

// matchesSeedKeyword reports whether title contains one of the seed
// keywords, case-insensitively (noise-handling rule).
func matchesSeedKeyword(title string, seedKeywords []string) bool {
	titleTokens := make(map[string]bool)
	for _, tok := range tokenize(title) {
		titleTokens[tok] = true
	}
	for _, seed := range seedKeywords {
		seedTokens := tokenize(seed)
		if len(seedTokens) == 0 {
			continue
		}
		matched := true
		for _, tok := range seedTokens {
			if !titleTokens[tok] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// clusterPoints is the reflection-extracted shape of one HDBSCAN cluster.
type clusterPoints struct {
	Points []int
}

// extractClusterData reaches into humilityai/hdbscan's unexported Clusters
// field via reflection; the library exposes no public accessor for point
// membership.
func extractClusterData(clustering *hdbscan.Clustering) []clusterPoints {
	v := reflect.ValueOf(clustering).Elem()
	clustersField := v.FieldByName("Clusters")
	if !clustersField.IsValid() {
		return nil
	}

	result := make([]clusterPoints, clustersField.Len())
	for i := 0; i < clustersField.Len(); i++ {
		clusterPtr := clustersField.Index(i)
		if clusterPtr.Kind() == reflect.Ptr {
			clusterPtr = clusterPtr.Elem()
		}
		pointsField := clusterPtr.FieldByName("Points")
		if pointsField.IsValid() && pointsField.Kind() == reflect.Slice {
			points := make([]int, pointsField.Len())
			for j := 0; j < pointsField.Len(); j++ {
				points[j] = int(pointsField.Index(j).Int())
			}
			result[i].Points = points
		}
	}
	return result
}
