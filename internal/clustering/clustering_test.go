package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/core"
)

func docFixture(id, title, content string) core.Document {
	return core.Document{ID: id, Title: title, Content: content}
}

func TestCluster_GroupsSimilarDocumentsAboveMinClusterSize(t *testing.T) {
	docs := []core.Document{
		docFixture("1", "Electric vehicle battery prices fall", "Battery prices for electric vehicles continue to decline this year."),
		docFixture("2", "EV battery costs drop again", "Electric vehicle battery costs have dropped for the third straight quarter."),
		docFixture("3", "Battery price trends for electric cars", "Electric car battery pricing trends show continued decline."),
		docFixture("4", "Local bakery wins award", "A small bakery downtown won a regional pastry award this week."),
		docFixture("5", "Pastry shop recognized nationally", "The award-winning pastry shop gained national recognition."),
		docFixture("6", "Bakery news roundup", "This week's bakery and pastry industry news roundup."),
	}

	clusters, err := Cluster(docs, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(clusters), 1)

	for _, c := range clusters {
		assert.GreaterOrEqual(t, len(c.DocumentIDs), MinClusterSize)
		assert.NotEmpty(t, c.RepresentativeTitle)
		assert.NotEmpty(t, c.Label)
	}
}

func TestCluster_EmptyInputReturnsError(t *testing.T) {
	_, err := Cluster(nil, nil)
	assert.Error(t, err)
}

func TestCluster_BelowMinClusterSizeKeepsOnlySeedMatchedSingletons(t *testing.T) {
	docs := []core.Document{
		docFixture("1", "quantum computing breakthrough", "A breakthrough in quantum computing research."),
		docFixture("2", "unrelated gardening tips", "Tips for gardening in the spring."),
	}

	clusters, err := Cluster(docs, []string{"quantum computing"})
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"1"}, clusters[0].DocumentIDs)
}

func TestCluster_DeterministicAcrossRepeatedRuns(t *testing.T) {
	docs := []core.Document{
		docFixture("1", "Electric vehicle battery prices fall", "Battery prices decline."),
		docFixture("2", "EV battery costs drop again", "Costs dropped again."),
		docFixture("3", "Battery price trends for electric cars", "Pricing trends continue."),
	}

	first, err := Cluster(docs, nil)
	require.NoError(t, err)
	second, err := Cluster(docs, nil)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Label, second[i].Label)
		assert.Equal(t, first[i].RepresentativeTitle, second[i].RepresentativeTitle)
		assert.ElementsMatch(t, first[i].DocumentIDs, second[i].DocumentIDs)
	}
}

func TestMatchesSeedKeyword_CaseInsensitiveWholeWordMatch(t *testing.T) {
	assert.True(t, matchesSeedKeyword("Quantum Computing Advances", []string{"quantum computing"}))
	assert.False(t, matchesSeedKeyword("Quantum Computing Advances", []string{"gardening"}))
}

func TestTFIDFVectorizer_VocabularyIsSortedAndDeterministic(t *testing.T) {
	corpus := [][]string{{"zebra", "apple"}, {"mango", "apple"}}
	v := newTFIDFVectorizer(corpus)
	assert.Equal(t, []string{"apple", "mango", "zebra"}, v.vocabulary)
}

func TestTFIDFVectorizer_VectorizeProducesUnitNormForNonEmptyDoc(t *testing.T) {
	corpus := [][]string{{"apple", "banana"}, {"apple", "cherry"}}
	v := newTFIDFVectorizer(corpus)
	vec := v.vectorize([]string{"apple", "banana"})
	norm := vectorNorm(vec)
	assert.InDelta(t, 1.0, norm, 1e-9)
}
