package runner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/clustering"
	"research-agent/internal/core"
	"research-agent/internal/logger"
	"research-agent/internal/validator"
)

// DefaultValidatorThreshold and DefaultValidatorTopN bound how many
// clustered candidates survive into stored Topics per run (
// end-to-end scenario 4 uses threshold=0.5; topN is not named by the
// spec and is chosen generously so a run rarely discards a qualifying
// candidate purely on rank).
const (
	DefaultValidatorThreshold = 0.5
	DefaultValidatorTopN      = 20
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// clusterAndValidate runs clustering then validation over a batch of
// collected Documents, persisting every surviving candidate as a
// Topic (new or score-refreshed) and returning them for per-topic
// research.
func (r *Runner) clusterAndValidate(ctx context.Context, docs []core.Document) ([]core.Topic, error) {
	clusters, err := clustering.Cluster(docs, r.cfg.SeedKeywords)
	if err != nil {
		return nil, fmt.Errorf("cluster documents: %w", err)
	}
	if len(clusters) == 0 {
		return nil, nil
	}
	validateClusterCohesion(clusters, len(docs))

	byID := make(map[string]core.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	candidates := make([]validator.Candidate, 0, len(clusters))
	for _, c := range clusters {
		var members []core.Document
		for _, id := range c.DocumentIDs {
			if d, ok := byID[id]; ok {
				members = append(members, d)
			}
		}
		if len(members) == 0 {
			continue
		}
		candidates = append(candidates, validator.Candidate{Cluster: c, Documents: members})
	}

	existingTopics, err := r.store.ListTopics(0)
	if err != nil {
		return nil, fmt.Errorf("list existing topics: %w", err)
	}
	existingTitles := make([]string, len(existingTopics))
	for i, t := range existingTopics {
		existingTitles[i] = t.Title
	}

	scored := validator.FilterTopics(candidates, r.cfg.SeedKeywords, existingTitles, DefaultValidatorThreshold, DefaultValidatorTopN)

	topics := make([]core.Topic, 0, len(scored))
	for _, s := range scored {
		members := candidateDocuments(candidates, s.Cluster.ClusterID)
		topic := r.buildTopic(s, members)
		if err := r.store.UpsertTopic(topic); err != nil {
			logger.Warn("failed to persist topic, skipping", "topic_id", topic.ID, "error", err.Error())
			continue
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func candidateDocuments(candidates []validator.Candidate, clusterID string) []core.Document {
	for _, c := range candidates {
		if c.Cluster.ClusterID == clusterID {
			return c.Documents
		}
	}
	return nil
}

// buildTopic maps a ScoredTopic onto a stored core.Topic, preserving an
// existing Topic's id/report/discovery time if this cluster already has
// one on record (matched by deterministic id), per the Open Question
// decision recorded in DESIGN.md mapping the validator's 5 metrics onto
// Topic's own scoring fields.
func (r *Runner) buildTopic(s validator.ScoredTopic, members []core.Document) core.Topic {
	market, language, domain := r.cfg.EffectiveMarket()
	id := topicID(s.Cluster.RepresentativeTitle, domain, market)

	now := time.Now()
	topic := core.Topic{
		ID:           id,
		Title:        s.Cluster.RepresentativeTitle,
		Description:  s.Cluster.Label,
		ClusterLabel: s.Cluster.Label,
		Source:       dominantSource(members),
		Language:     language,
		Domain:       domain,
		Market:       market,

		DemandScore:      s.Metrics.Diversity,
		OpportunityScore: (s.Metrics.Freshness + s.Metrics.Volume) / 2,
		FitScore:         s.Metrics.Relevance,
		NoveltyScore:     s.Metrics.Novelty,
		PriorityScore:    s.TotalScore,
		Priority:         core.PriorityFromScore(s.TotalScore),

		Keywords:     map[string]string{},
		DiscoveredAt: now,
		UpdatedAt:    now,
	}
	if len(members) > 0 {
		topic.SourceURL = members[0].SourceURL
	}

	if existing, err := r.store.GetTopic(id); err == nil && existing != nil {
		topic.DiscoveredAt = existing.DiscoveredAt
		topic.ResearchReport = existing.ResearchReport
		topic.PublishedAt = existing.PublishedAt
		topic.HeroImageURL = existing.HeroImageURL
		topic.SupportingImages = existing.SupportingImages
	}
	return topic
}

// topicID is a deterministic slug + short content hash, so the same
// cluster (by representative title + market) maps to the same stored
// Topic id across runs instead of growing duplicates every collection
// cycle.
func topicID(title, domain, market string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 60 {
		slug = slug[:60]
	}
	if slug == "" {
		slug = "topic"
	}
	suffix := uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(title)+"|"+domain+"|"+market)).String()[:8]
	return slug + "-" + suffix
}

// dominantSource maps the most common collector family among a cluster's
// member Documents onto the TopicSource enum, defaulting to MANUAL when
// the cluster is empty or its source tags are unrecognized.
func dominantSource(docs []core.Document) core.TopicSource {
	counts := map[core.TopicSource]int{}
	for _, d := range docs {
		counts[sourceTagToTopicSource(d.Source)]++
	}
	best := core.TopicSourceManual
	bestCount := 0
	for s, n := range counts {
		if n > bestCount {
			best, bestCount = s, n
		}
	}
	return best
}

func sourceTagToTopicSource(tag string) core.TopicSource {
	switch {
	case strings.HasPrefix(tag, "rss_") || tag == "rss" || strings.HasPrefix(tag, "feed_discovery"):
		return core.TopicSourceRSS
	case strings.HasPrefix(tag, "reddit"):
		return core.TopicSourceReddit
	case strings.HasPrefix(tag, "trends"):
		return core.TopicSourceTrends
	case strings.HasPrefix(tag, "autocomplete"):
		return core.TopicSourceAutocomplete
	default:
		return core.TopicSourceManual
	}
}

// minCohesionRatio is the minimum share of clustered (non-singleton)
// clusters a quality run should show; below it the clustering stage is
// likely over-fragmenting the corpus (too few documents per feed, or a
// seed keyword list too narrow for HDBSCAN's min_cluster_size).
const minCohesionRatio = 0.3

// validateClusterCohesion is a non-blocking quality gate over the
// clustering stage (Validate/IsBlocking/Name contract, warn-don't-fail
// default) simplified to a singleton-ratio check: this package has no article
// embeddings to run a silhouette-style coherence score against, since
// clustering.Cluster keeps its TF-IDF vectors internal to the package.
func validateClusterCohesion(clusters []core.TopicCluster, totalDocs int) {
	if len(clusters) == 0 || totalDocs == 0 {
		return
	}
	singletons := 0
	for _, c := range clusters {
		if len(c.DocumentIDs) <= 1 {
			singletons++
		}
	}
	ratio := 1 - float64(singletons)/float64(len(clusters))
	if ratio < minCohesionRatio {
		logger.Warn("clustering quality gate warning: low non-singleton ratio",
			"clusters", len(clusters), "singletons", singletons, "ratio", ratio, "min_ratio", minCohesionRatio)
	}
}
