// Package core defines the shared data model for the research pipeline:
// Documents collected from sources, Topics clustered and scored from them,
// and the research artifacts (search results, source cache entries, SERP
// snapshots, research reports) produced while researching a Topic.
package core

import "time"

// DocumentStatus is the lifecycle state of a collected Document.
type DocumentStatus string

const (
	DocumentStatusNew       DocumentStatus = "new"
	DocumentStatusProcessed DocumentStatus = "processed"
	DocumentStatusRejected  DocumentStatus = "rejected"
)

// Document is a single piece of content collected from any source.
// (canonical_url) is unique per store; content_hash is deterministic over
// normalized content.
type Document struct {
	ID               string         `json:"id"`
	Source           string         `json:"source"` // tag, e.g. "rss_heise"
	SourceURL        string         `json:"source_url"`
	CanonicalURL     string         `json:"canonical_url"`
	Title            string         `json:"title"`
	Content          string         `json:"content"`
	Summary          string         `json:"summary"`
	Language         string         `json:"language"`
	Domain           string         `json:"domain"`
	Market           string         `json:"market"`
	Vertical         string         `json:"vertical"`
	ContentHash      string         `json:"content_hash"`
	PublishedAt      time.Time      `json:"published_at"`
	FetchedAt        time.Time      `json:"fetched_at"`
	Author           string         `json:"author"`
	Entities         []string       `json:"entities"`
	Keywords         []string       `json:"keywords"`
	ReliabilityScore float64        `json:"reliability_score"`
	Paywall          bool           `json:"paywall"`
	Status           DocumentStatus `json:"status"`

	// Rank is the 1-based position a collector assigned this Document
	// within its own result list (e.g. autocomplete suggestion order);
	// 0 when the source collector has no inherent ranking.
	Rank int `json:"rank,omitempty"`
}

// TopicSource enumerates the discovery channel of a Topic.
type TopicSource string

const (
	TopicSourceRSS          TopicSource = "RSS"
	TopicSourceReddit       TopicSource = "REDDIT"
	TopicSourceTrends       TopicSource = "TRENDS"
	TopicSourceAutocomplete TopicSource = "AUTOCOMPLETE"
	TopicSourceCompetitor   TopicSource = "COMPETITOR"
	TopicSourceManual       TopicSource = "MANUAL"
)

// Topic is a candidate content topic discovered and scored by the pipeline.
type Topic struct {
	ID          string      `json:"id"` // slug
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ClusterLabel string     `json:"cluster_label"`
	Source      TopicSource `json:"source"`
	SourceURL   string      `json:"source_url"`
	Language    string      `json:"language"`
	Domain      string      `json:"domain"`
	Market      string      `json:"market"`

	DemandScore     float64 `json:"demand_score"`
	OpportunityScore float64 `json:"opportunity_score"`
	FitScore        float64 `json:"fit_score"`
	NoveltyScore    float64 `json:"novelty_score"`
	PriorityScore   float64 `json:"priority_score"` // [0,1]
	Priority        int     `json:"priority"`       // 1-10, derived from PriorityScore

	Competitors       []string          `json:"competitors"`
	ContentGaps       []string          `json:"content_gaps"`
	Keywords          map[string]string `json:"keywords"`
	ResearchReport    *ResearchReport   `json:"research_report,omitempty"`
	HeroImageURL      string            `json:"hero_image_url"`
	SupportingImages  []string          `json:"supporting_images"`

	DiscoveredAt time.Time  `json:"discovered_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// TopicStatus is the outcome of a single topic's pass through a run.
type TopicStatus string

const (
	TopicStatusResearched      TopicStatus = "researched"
	TopicStatusResearchFailed  TopicStatus = "research_failed"
	TopicStatusSynthesisFailed TopicStatus = "synthesis_failed"
	TopicStatusOK              TopicStatus = "ok"
)

// TopicCluster groups related Documents under a discovered topic label.
// Clusters exclusively reference Documents by id; Documents never own a
// cluster reference.
type TopicCluster struct {
	ClusterID           string   `json:"cluster_id"`
	Label               string   `json:"label"`
	RepresentativeTitle string   `json:"representative_title"`
	DocumentIDs         []string `json:"document_ids"`
}

// SearchBackend identifies which research backend produced a SearchResult.
type SearchBackend string

const (
	BackendTavily     SearchBackend = "tavily"
	BackendSearXNG    SearchBackend = "searxng"
	BackendGemini     SearchBackend = "gemini"
	BackendRSS        SearchBackend = "rss"
	BackendTheNewsAPI SearchBackend = "thenewsapi"
)

// BackendOrder is the fixed diversity-interleave order from step 6.
var BackendOrder = []SearchBackend{BackendTavily, BackendSearXNG, BackendGemini, BackendRSS, BackendTheNewsAPI}

// SearchResult is a single hit returned by a research backend.
type SearchResult struct {
	URL           string        `json:"url"`
	Title         string        `json:"title"`
	Snippet       string        `json:"snippet"`
	Content       string        `json:"content,omitempty"`
	PublishedDate *time.Time    `json:"published_date,omitempty"`
	Backend       SearchBackend `json:"backend"`
	Score         float64       `json:"score,omitempty"`
	Domain        string        `json:"domain"`

	// RRFScore and ProvenanceBackends are populated by the orchestrator's
	// fusion stage; not part of a raw backend response.
	RRFScore           float64         `json:"rrf_score,omitempty"`
	ProvenanceBackends []SearchBackend `json:"provenance_backends,omitempty"`
}

// Source is a cache entry describing everything known about one URL across
// every topic that has referenced it.
type Source struct {
	URL             string             `json:"url"`
	Domain          string             `json:"domain"`
	Title           string             `json:"title"`
	ContentPreview  string             `json:"content_preview"` // <= 500 chars
	FirstFetchedAt  time.Time          `json:"first_fetched_at"`
	LastFetchedAt   time.Time          `json:"last_fetched_at"`
	FetchCount      int                `json:"fetch_count"`
	TopicIDs        []string           `json:"topic_ids"`
	UsageCount      int                `json:"usage_count"`
	QualityScore    float64            `json:"quality_score"` // [0,1]
	EEATSignals     map[string]float64 `json:"e_e_a_t_signals"`
	Author          string             `json:"author"`
	PublishedAt     *time.Time         `json:"published_at,omitempty"`
	IsStale         bool               `json:"is_stale"`
}

// StalenessThreshold is the age after which a Source cache entry is stale.
const StalenessThreshold = 7 * 24 * time.Hour

// SERPResult is one position in a search-engine-results-page snapshot.
type SERPResult struct {
	Position int    `json:"position"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Domain   string `json:"domain"`
}

// SERPSnapshot is an append-only record of a search query's results at a
// point in time; "latest" is the snapshot with the max SearchedAt.
type SERPSnapshot struct {
	TopicID     string       `json:"topic_id"`
	SearchQuery string       `json:"search_query"`
	SearchedAt  time.Time    `json:"searched_at"`
	Results     []SERPResult `json:"results"`
}

// BackendStat records one backend's contribution to one research run.
type BackendStat struct {
	Requested int `json:"requested"`
	Returned  int `json:"returned"`
	LatencyMS int `json:"latency_ms"`
	Succeeded bool `json:"succeeded"`
}

// ResearchReport is the synthesized output of researching one Topic.
type ResearchReport struct {
	TopicID        string                         `json:"topic_id"`
	Query          string                         `json:"query"`
	ArticleMarkdown string                        `json:"article_markdown"`
	Citations      []string                       `json:"citations"` // index -> URL
	BackendStats   map[SearchBackend]BackendStat  `json:"backend_stats"`
	CostUSD        float64                        `json:"cost_usd"`
	GeneratedAt    time.Time                      `json:"generated_at"`
}

// Horizon is a research backend's specialization.
type Horizon string

const (
	HorizonDepth    Horizon = "DEPTH"
	HorizonBreadth  Horizon = "BREADTH"
	HorizonTrends   Horizon = "TRENDS"
	HorizonCurated  Horizon = "CURATED"
	HorizonBreaking Horizon = "BREAKING"
)

// HealthStatus is the outcome of a collector/backend health check.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
	HealthFailed   HealthStatus = "failed"
)

// DedupCanonicalURL, DedupContentHash, DedupTitle, and DedupContent let
// Document satisfy internal/dedup.Deduplicable without that package
// importing core.
func (d Document) DedupCanonicalURL() string { return d.CanonicalURL }
func (d Document) DedupContentHash() string  { return d.ContentHash }
func (d Document) DedupTitle() string        { return d.Title }
func (d Document) DedupContent() string      { return d.Content }

// PriorityFromScore bridges the internal 0-1 scale to the 1-10 export scale
// (Open Question decision, see DESIGN.md).
func PriorityFromScore(score float64) int {
	if score <= 0 {
		return 1
	}
	if score >= 1 {
		return 10
	}
	p := int(score*10 + 0.9999) // ceil
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	return p
}
