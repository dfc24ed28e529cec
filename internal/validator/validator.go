// Package validator implements the Topic Validator: a 5-metric
// weighted scorer over candidate topic clusters, producing a filtered,
// ranked list of ScoredTopics.
package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"research-agent/internal/core"
	"research-agent/internal/dedup"
	"research-agent/internal/logger"
)

// Metric weights . Their sum is validated at package init.
const (
	weightRelevance = 0.30
	weightDiversity = 0.25
	weightFreshness = 0.20
	weightVolume    = 0.15
	weightNovelty   = 0.10
)

func init() {
	sum := weightRelevance + weightDiversity + weightFreshness + weightVolume + weightNovelty
	if math.Abs(sum-1.0) > 1e-9 {
		panic(fmt.Sprintf("validator: metric weights must sum to 1.0, got %f", sum))
	}
}

// Candidate is one cluster awaiting scoring, along with its member
// Documents (needed to compute Diversity/Freshness/Volume).
type Candidate struct {
	Cluster   core.TopicCluster
	Documents []core.Document
}

// MetricScores holds the five [0,1] component metrics.
type MetricScores struct {
	Relevance float64
	Diversity float64
	Freshness float64
	Volume    float64
	Novelty   float64
}

// ScoredTopic is a Candidate after scoring.
type ScoredTopic struct {
	Cluster    core.TopicCluster
	Metrics    MetricScores
	TotalScore float64
}

// collectorFamily maps a Document's Source tag to one of the five
// collector categories the Diversity metric counts over (names
// exactly five collectors: RSS, Reddit, Trends, Autocomplete, News-API;
// feed-discovery documents arrive with an "rss_" source tag since they are
// fetched through the shared RSS collector, so no sixth category exists).
func collectorFamily(source string) string {
	switch {
	case strings.HasPrefix(source, "rss_"):
		return "rss"
	case strings.HasPrefix(source, "reddit_"):
		return "reddit"
	case source == "trends":
		return "trends"
	case source == "autocomplete":
		return "autocomplete"
	case strings.HasPrefix(source, "news_api_"):
		return "news_api"
	default:
		return source
	}
}

// FilterTopics scores every candidate and returns those at or above
// threshold, sorted descending by total score (ties broken by relevance
// then freshness), capped at topN (filter_topics).
func FilterTopics(candidates []Candidate, seedKeywords []string, existingTopicTitles []string, threshold float64, topN int) []ScoredTopic {
	seedTokens := tokenizeAll(seedKeywords)

	scored := make([]ScoredTopic, 0, len(candidates))
	for _, c := range candidates {
		metrics := scoreCandidate(c, seedTokens, existingTopicTitles)
		total := weightRelevance*metrics.Relevance +
			weightDiversity*metrics.Diversity +
			weightFreshness*metrics.Freshness +
			weightVolume*metrics.Volume +
			weightNovelty*metrics.Novelty

		scored = append(scored, ScoredTopic{
			Cluster:    c.Cluster,
			Metrics:    metrics,
			TotalScore: total,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].TotalScore != scored[j].TotalScore {
			return scored[i].TotalScore > scored[j].TotalScore
		}
		if scored[i].Metrics.Relevance != scored[j].Metrics.Relevance {
			return scored[i].Metrics.Relevance > scored[j].Metrics.Relevance
		}
		return scored[i].Metrics.Freshness > scored[j].Metrics.Freshness
	})

	var kept []ScoredTopic
	for _, s := range scored {
		if s.TotalScore >= threshold {
			kept = append(kept, s)
		}
	}
	if topN > 0 && len(kept) > topN {
		kept = kept[:topN]
	}
	return kept
}

// scoreCandidate computes all five metrics, isolating each from the
// others' failures: a panicking metric becomes 0 and scoring continues
// for the rest ("metric computation errors ... the affected
// metric becomes 0").
func scoreCandidate(c Candidate, seedTokens map[string]bool, existingTopicTitles []string) MetricScores {
	return MetricScores{
		Relevance: safeMetric("relevance", c.Cluster.ClusterID, func() float64 {
			return relevance(c.Cluster.RepresentativeTitle, seedTokens)
		}),
		Diversity: safeMetric("diversity", c.Cluster.ClusterID, func() float64 {
			return diversity(c.Documents)
		}),
		Freshness: safeMetric("freshness", c.Cluster.ClusterID, func() float64 {
			return freshness(c.Documents)
		}),
		Volume: safeMetric("volume", c.Cluster.ClusterID, func() float64 {
			return volume(c.Documents)
		}),
		Novelty: safeMetric("novelty", c.Cluster.ClusterID, func() float64 {
			return novelty(c.Cluster.RepresentativeTitle, existingTopicTitles)
		}),
	}
}

func safeMetric(name, clusterID string, fn func() float64) (result float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("metric computation failed, scoring as 0", "metric", name, "cluster", clusterID, "panic", fmt.Sprintf("%v", r))
			result = 0
		}
	}()
	return fn()
}

// relevance is Jaccard(tokenize(title), union tokenize(seed_keywords)).
func relevance(title string, seedTokens map[string]bool) float64 {
	titleTokens := tokenize(title)
	return jaccard(titleTokens, seedTokens)
}

// diversity is the count of unique collector families that surfaced any
// document in the cluster, divided by 5.
func diversity(docs []core.Document) float64 {
	families := make(map[string]bool)
	for _, d := range docs {
		families[collectorFamily(d.Source)] = true
	}
	return math.Min(float64(len(families))/5.0, 1.0)
}

// freshness is 0.5^(age_days/7) computed from the most recently published
// (or, failing that, most recently fetched) member document.
func freshness(docs []core.Document) float64 {
	var latest time.Time
	for _, d := range docs {
		ts := d.PublishedAt
		if ts.IsZero() {
			ts = d.FetchedAt
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	if latest.IsZero() {
		return 0
	}
	ageDays := time.Since(latest).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/7)
}

// volume applies the autocomplete-specific formula to the autocomplete
// member document with the best (lowest) rank, if any; otherwise a flat
// default applies.
func volume(docs []core.Document) float64 {
	var best *core.Document
	for i, d := range docs {
		if collectorFamily(d.Source) != "autocomplete" {
			continue
		}
		if best == nil || d.Rank < best.Rank {
			best = &docs[i]
		}
	}
	if best == nil {
		return 0.5
	}
	posTerm := 1 - (float64(best.Rank)-1)/10
	lenTerm := math.Min(float64(len(best.Title))/50, 1)
	return 0.7*posTerm + 0.3*lenTerm
}

// novelty is 1 - the highest MinHash-estimated Jaccard similarity between
// title and any already-researched topic's title.
func novelty(title string, existingTopicTitles []string) float64 {
	if len(existingTopicTitles) == 0 {
		return 1.0
	}
	var maxSim float64
	for _, existing := range existingTopicTitles {
		if sim := dedup.JaccardSimilarity(title, existing); sim > maxSim {
			maxSim = sim
		}
	}
	return 1 - maxSim
}

func tokenize(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		trimmed := strings.Trim(tok, ".,!?;:\"'()[]{}")
		if trimmed != "" {
			set[trimmed] = true
		}
	}
	return set
}

func tokenizeAll(phrases []string) map[string]bool {
	set := make(map[string]bool)
	for _, phrase := range phrases {
		for tok := range tokenize(phrase) {
			set[tok] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
