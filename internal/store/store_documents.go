package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"research-agent/internal/apperr"
	"research-agent/internal/core"
)

// InsertDocument inserts a new Document. A canonical_url collision is a
// duplicate signal, not an error: the caller (the deduplicator) decides
// what to do with it, so this returns apperr.DuplicateCanonicalURL rather
// than surfacing the underlying UNIQUE constraint violation.
func (s *Store) InsertDocument(d core.Document) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE canonical_url = ?`, d.CanonicalURL).Scan(&exists); err != nil {
		return fmt.Errorf("check canonical_url: %w", err)
	}
	if exists > 0 {
		return apperr.New(apperr.DuplicateCanonicalURL, d.CanonicalURL, nil)
	}

	entities, _ := json.Marshal(d.Entities)
	keywords, _ := json.Marshal(d.Keywords)

	_, err := s.db.Exec(`
		INSERT INTO documents
		(id, source, source_url, canonical_url, title, content, summary, language, domain, market, vertical,
		 content_hash, published_at, fetched_at, author, entities, keywords, reliability_score, paywall, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Source, d.SourceURL, d.CanonicalURL, d.Title, d.Content, d.Summary, d.Language, d.Domain, d.Market, d.Vertical,
		d.ContentHash, nullTime(d.PublishedAt), nullTime(d.FetchedAt), d.Author, string(entities), string(keywords),
		d.ReliabilityScore, d.Paywall, string(d.Status),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func scanDocument(row interface {
	Scan(dest ...any) error
}) (core.Document, error) {
	var d core.Document
	var publishedAt, fetchedAt sql.NullTime
	var entities, keywords string
	var status string

	err := row.Scan(
		&d.ID, &d.Source, &d.SourceURL, &d.CanonicalURL, &d.Title, &d.Content, &d.Summary,
		&d.Language, &d.Domain, &d.Market, &d.Vertical, &d.ContentHash,
		&publishedAt, &fetchedAt, &d.Author, &entities, &keywords,
		&d.ReliabilityScore, &d.Paywall, &status,
	)
	if err != nil {
		return core.Document{}, err
	}

	d.PublishedAt = fromNullTime(publishedAt)
	d.FetchedAt = fromNullTime(fetchedAt)
	d.Status = core.DocumentStatus(status)
	if entities != "" {
		_ = json.Unmarshal([]byte(entities), &d.Entities)
	}
	if keywords != "" {
		_ = json.Unmarshal([]byte(keywords), &d.Keywords)
	}
	return d, nil
}

const documentColumns = `id, source, source_url, canonical_url, title, content, summary, language, domain, market, vertical,
		content_hash, published_at, fetched_at, author, entities, keywords, reliability_score, paywall, status`

// GetDocumentsByLanguage returns documents collected for the given language,
// most recently fetched first. Used to scope clustering/validation to one
// market's language.
func (s *Store) GetDocumentsByLanguage(language string, limit int) ([]core.Document, error) {
	rows, err := s.db.Query(
		`SELECT `+documentColumns+` FROM documents WHERE language = ? ORDER BY fetched_at DESC LIMIT ?`,
		language, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents by language: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []core.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocumentByID retrieves a single document, or nil if not found.
func (s *Store) GetDocumentByID(id string) (*core.Document, error) {
	row := s.db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by id: %w", err)
	}
	return &d, nil
}

// GetDocumentByContentHash is used by the deduplicator's exact-hash check
// before it falls back to MinHash/LSH near-duplicate detection.
func (s *Store) GetDocumentByContentHash(hash string) (*core.Document, error) {
	row := s.db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE content_hash = ? LIMIT 1`, hash)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by content hash: %w", err)
	}
	return &d, nil
}

// MarkDocumentStatus transitions a document's lifecycle status.
func (s *Store) MarkDocumentStatus(id string, status core.DocumentStatus) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`UPDATE documents SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// englishStopWords and germanStopWords back the title-token Jaccard
// similarity used by FindRelatedTopics (cross-topic linking).
var englishStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true, "in": true, "on": true,
	"for": true, "and": true, "or": true, "is": true, "are": true, "with": true, "at": true,
	"by": true, "from": true, "how": true, "what": true, "why": true, "it": true, "this": true,
	"that": true, "as": true, "be": true, "vs": true, "new": true,
}

var germanStopWords = map[string]bool{
	"der": true, "die": true, "das": true, "und": true, "oder": true, "ein": true, "eine": true,
	"mit": true, "fur": true, "für": true, "von": true, "im": true, "in": true, "zu": true,
	"auf": true, "ist": true, "sind": true, "wie": true, "was": true, "warum": true, "bei": true,
}

func tokenizeTitle(title, language string) map[string]bool {
	stop := englishStopWords
	if language == "de" {
		stop = germanStopWords
	}
	tokens := make(map[string]bool)
	for _, raw := range strings.Fields(strings.ToLower(title)) {
		word := strings.Trim(raw, ".,!?:;\"'()[]")
		if word == "" || stop[word] || len(word) < 3 {
			continue
		}
		tokens[word] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// FindRelatedTopics returns up to limit existing topics whose title shares
// at least minJaccard similarity (stop-word-filtered token overlap) with
// the given title, excluding the topic itself. An empty result is valid
// (empty-case: zero related topics yields empty lists upstream).
func (s *Store) FindRelatedTopics(topicID, title, language string, minJaccard float64, limit int) ([]core.Topic, error) {
	candidates, err := s.ListTopics(0)
	if err != nil {
		return nil, fmt.Errorf("find related topics: %w", err)
	}

	target := tokenizeTitle(title, language)
	type scored struct {
		topic core.Topic
		score float64
	}
	var matches []scored
	for _, t := range candidates {
		if t.ID == topicID {
			continue
		}
		score := jaccard(target, tokenizeTitle(t.Title, language))
		if score >= minJaccard {
			matches = append(matches, scored{t, score})
		}
	}

	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].score > matches[i].score {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	result := make([]core.Topic, len(matches))
	for i, m := range matches {
		result[i] = m.topic
	}
	return result, nil
}
