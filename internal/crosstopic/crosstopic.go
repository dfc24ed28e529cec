// Package crosstopic implements the Cross-Topic Synthesizer: pure
// CPU, no LLM call. For a topic with a stored research report, it finds
// related topics by title overlap, extracts frequency-based keywords from
// each related topic's own report, and splits them into themes shared
// with the current topic and angles unique to each related one. The
// result is appended to the content synthesizer's prompt as additional
// context, never synthesized on its own.
package crosstopic

import (
	"research-agent/internal/core"
	"research-agent/internal/store"
)

// DefaultMaxRelated is this package's max_related=3 default.
const (
	DefaultMaxRelated   = 3
	topKeywordsPerTopic = 8
	minRelatedJaccard   = 0.15
)

// InternalLink is one suggested cross-link from the current topic to a
// related one, surfaced for the synthesizer/exporter to wire as a link.
type InternalLink struct {
	TopicID string `json:"topic_id"`
	Title   string `json:"title"`
}

// Result is the cross-topic synthesis output: related_topics, common_themes,
// unique_angles, suggested_internal_links.
type Result struct {
	RelatedTopics          []core.Topic   `json:"related_topics"`
	CommonThemes           []string       `json:"common_themes"`
	UniqueAngles           []string       `json:"unique_angles"`
	SuggestedInternalLinks []InternalLink `json:"suggested_internal_links"`
}

// Synthesizer is the Cross-Topic Synthesizer.
type Synthesizer struct {
	store *store.Store
}

// New constructs a Synthesizer over the shared Document/Topic store.
func New(st *store.Store) *Synthesizer {
	return &Synthesizer{store: st}
}

// Link finds up to maxRelated topics related to topic by title overlap
// (store.FindRelatedTopics) and derives themes/angles from their stored
// research reports. A topic with zero related topics returns an empty
// Result (related_topics=[] and an empty internal-links list), never an
// error.
func (s *Synthesizer) Link(topic core.Topic, maxRelated int) (Result, error) {
	if maxRelated <= 0 {
		maxRelated = DefaultMaxRelated
	}

	related, err := s.store.FindRelatedTopics(topic.ID, topic.Title, topic.Language, minRelatedJaccard, maxRelated)
	if err != nil {
		return Result{}, err
	}
	if len(related) == 0 {
		return Result{
			RelatedTopics:          []core.Topic{},
			CommonThemes:           []string{},
			UniqueAngles:           []string{},
			SuggestedInternalLinks: []InternalLink{},
		}, nil
	}

	ownKeywords := keywordSet(reportText(topic.ResearchReport))

	var commonThemes, uniqueAngles []string
	seenCommon := make(map[string]bool)
	seenUnique := make(map[string]bool)
	links := make([]InternalLink, 0, len(related))

	for _, rel := range related {
		for _, kw := range topKeywords(reportText(rel.ResearchReport), topKeywordsPerTopic) {
			if ownKeywords[kw] {
				if !seenCommon[kw] {
					seenCommon[kw] = true
					commonThemes = append(commonThemes, kw)
				}
				continue
			}
			if !seenUnique[kw] {
				seenUnique[kw] = true
				uniqueAngles = append(uniqueAngles, kw)
			}
		}
		links = append(links, InternalLink{TopicID: rel.ID, Title: rel.Title})
	}

	if commonThemes == nil {
		commonThemes = []string{}
	}
	if uniqueAngles == nil {
		uniqueAngles = []string{}
	}

	return Result{
		RelatedTopics:          related,
		CommonThemes:           commonThemes,
		UniqueAngles:           uniqueAngles,
		SuggestedInternalLinks: links,
	}, nil
}
