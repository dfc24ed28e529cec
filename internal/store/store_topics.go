package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"research-agent/internal/core"
)

// UpsertTopic inserts or replaces a topic record (INSERT OR REPLACE).
// A Priority left unset (0) is derived from PriorityScore at the write
// boundary (see core.PriorityFromScore); a non-zero Priority is kept.
func (s *Store) UpsertTopic(t core.Topic) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	competitors, _ := json.Marshal(t.Competitors)
	contentGaps, _ := json.Marshal(t.ContentGaps)
	keywords, _ := json.Marshal(t.Keywords)
	supportingImages, _ := json.Marshal(t.SupportingImages)
	var researchReport string
	if t.ResearchReport != nil {
		b, _ := json.Marshal(t.ResearchReport)
		researchReport = string(b)
	}

	priority := t.Priority
	if priority == 0 {
		priority = core.PriorityFromScore(t.PriorityScore)
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO topics
		(id, title, description, cluster_label, source, source_url, language, domain, market,
		 demand_score, opportunity_score, fit_score, novelty_score, priority_score, priority,
		 competitors, content_gaps, keywords, research_report, hero_image_url, supporting_images,
		 discovered_at, updated_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.ClusterLabel, string(t.Source), t.SourceURL, t.Language, t.Domain, t.Market,
		t.DemandScore, t.OpportunityScore, t.FitScore, t.NoveltyScore, t.PriorityScore, priority,
		string(competitors), string(contentGaps), string(keywords), researchReport, t.HeroImageURL, string(supportingImages),
		nullTime(t.DiscoveredAt), nullTime(t.UpdatedAt), nullTimePtr(t.PublishedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}
	return nil
}

func scanTopic(row interface {
	Scan(dest ...any) error
}) (core.Topic, error) {
	var t core.Topic
	var source string
	var competitors, contentGaps, keywords, researchReport, supportingImages string
	var discoveredAt, updatedAt, publishedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.ClusterLabel, &source, &t.SourceURL, &t.Language, &t.Domain, &t.Market,
		&t.DemandScore, &t.OpportunityScore, &t.FitScore, &t.NoveltyScore, &t.PriorityScore, &t.Priority,
		&competitors, &contentGaps, &keywords, &researchReport, &t.HeroImageURL, &supportingImages,
		&discoveredAt, &updatedAt, &publishedAt,
	)
	if err != nil {
		return core.Topic{}, err
	}

	t.Source = core.TopicSource(source)
	t.DiscoveredAt = fromNullTime(discoveredAt)
	t.UpdatedAt = fromNullTime(updatedAt)
	t.PublishedAt = fromNullTimePtr(publishedAt)

	if competitors != "" {
		_ = json.Unmarshal([]byte(competitors), &t.Competitors)
	}
	if contentGaps != "" {
		_ = json.Unmarshal([]byte(contentGaps), &t.ContentGaps)
	}
	if keywords != "" {
		_ = json.Unmarshal([]byte(keywords), &t.Keywords)
	}
	if supportingImages != "" {
		_ = json.Unmarshal([]byte(supportingImages), &t.SupportingImages)
	}
	if researchReport != "" {
		var rr core.ResearchReport
		if err := json.Unmarshal([]byte(researchReport), &rr); err == nil {
			t.ResearchReport = &rr
		}
	}
	return t, nil
}

const topicColumns = `id, title, description, cluster_label, source, source_url, language, domain, market,
		demand_score, opportunity_score, fit_score, novelty_score, priority_score, priority,
		competitors, content_gaps, keywords, research_report, hero_image_url, supporting_images,
		discovered_at, updated_at, published_at`

// GetTopic retrieves a single topic by id, or nil if not found.
func (s *Store) GetTopic(id string) (*core.Topic, error) {
	row := s.db.QueryRow(`SELECT `+topicColumns+` FROM topics WHERE id = ?`, id)
	t, err := scanTopic(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

// ListTopics returns topics ordered by priority_score descending. limit<=0
// means unbounded.
func (s *Store) ListTopics(limit int) ([]core.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics ORDER BY priority_score DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var topics []core.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// SaveResearchReport persists the research artifact for a topic and mirrors
// it onto the topic row's research_report column so ListTopics/GetTopic
// return it without a join, handing off directly to synthesis.
func (s *Store) SaveResearchReport(report core.ResearchReport) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	citations, _ := json.Marshal(report.Citations)
	backendStats, _ := json.Marshal(report.BackendStats)

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO research_reports
		(topic_id, query, article_markdown, citations, backend_stats, cost_usd, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.TopicID, report.Query, report.ArticleMarkdown, string(citations), string(backendStats),
		report.CostUSD, nullTime(report.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("save research report: %w", err)
	}

	full, _ := json.Marshal(report)
	_, err = s.db.Exec(`UPDATE topics SET research_report = ?, updated_at = ? WHERE id = ?`,
		string(full), nullTime(report.GeneratedAt), report.TopicID)
	if err != nil {
		return fmt.Errorf("mirror research report onto topic: %w", err)
	}
	return nil
}

// GetResearchReport retrieves the persisted research artifact for a topic.
func (s *Store) GetResearchReport(topicID string) (*core.ResearchReport, error) {
	row := s.db.QueryRow(`
		SELECT topic_id, query, article_markdown, citations, backend_stats, cost_usd, generated_at
		FROM research_reports WHERE topic_id = ?`, topicID)

	var r core.ResearchReport
	var citations, backendStats string
	var generatedAt sql.NullTime
	err := row.Scan(&r.TopicID, &r.Query, &r.ArticleMarkdown, &citations, &backendStats, &r.CostUSD, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get research report: %w", err)
	}
	r.GeneratedAt = fromNullTime(generatedAt)
	_ = json.Unmarshal([]byte(citations), &r.Citations)
	if backendStats != "" {
		_ = json.Unmarshal([]byte(backendStats), &r.BackendStats)
	}
	return &r, nil
}

// UpsertCluster saves a document cluster discovered by clustering.
func (s *Store) UpsertCluster(c core.TopicCluster) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	docIDs, _ := json.Marshal(c.DocumentIDs)
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO clusters (cluster_id, label, representative_title, document_ids)
		VALUES (?, ?, ?, ?)`,
		c.ClusterID, c.Label, c.RepresentativeTitle, string(docIDs),
	)
	if err != nil {
		return fmt.Errorf("upsert cluster: %w", err)
	}
	return nil
}

// ListClusters returns all persisted clusters.
func (s *Store) ListClusters() ([]core.TopicCluster, error) {
	rows, err := s.db.Query(`SELECT cluster_id, label, representative_title, document_ids FROM clusters`)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clusters []core.TopicCluster
	for rows.Next() {
		var c core.TopicCluster
		var docIDs string
		if err := rows.Scan(&c.ClusterID, &c.Label, &c.RepresentativeTitle, &docIDs); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		_ = json.Unmarshal([]byte(docIDs), &c.DocumentIDs)
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}
