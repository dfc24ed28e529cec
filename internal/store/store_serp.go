package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"research-agent/internal/core"
)

// SaveSERPResults appends a new SERP snapshot. Snapshots are append-only;
// "latest" is whichever has the max searched_at (SERP tracking).
func (s *Store) SaveSERPResults(snapshot core.SERPSnapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	results, _ := json.Marshal(snapshot.Results)
	_, err := s.db.Exec(`
		INSERT INTO serp_snapshots (id, topic_id, search_query, searched_at, results)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), snapshot.TopicID, snapshot.SearchQuery, nullTime(snapshot.SearchedAt), string(results),
	)
	if err != nil {
		return fmt.Errorf("save serp results: %w", err)
	}
	return nil
}

// GetLatestSERPSnapshot returns the most recent snapshot for a topic, or
// nil if none exist.
func (s *Store) GetLatestSERPSnapshot(topicID string) (*core.SERPSnapshot, error) {
	row := s.db.QueryRow(`
		SELECT topic_id, search_query, searched_at, results
		FROM serp_snapshots WHERE topic_id = ? ORDER BY searched_at DESC LIMIT 1`, topicID)

	snap, err := scanSERPSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest serp snapshot: %w", err)
	}
	return snap, nil
}

// GetSERPHistory returns every snapshot recorded for a topic, newest first.
func (s *Store) GetSERPHistory(topicID string) ([]core.SERPSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT topic_id, search_query, searched_at, results
		FROM serp_snapshots WHERE topic_id = ? ORDER BY searched_at DESC`, topicID)
	if err != nil {
		return nil, fmt.Errorf("get serp history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []core.SERPSnapshot
	for rows.Next() {
		snap, err := scanSERPSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan serp snapshot: %w", err)
		}
		history = append(history, *snap)
	}
	return history, rows.Err()
}

func scanSERPSnapshot(row interface {
	Scan(dest ...any) error
}) (*core.SERPSnapshot, error) {
	var snap core.SERPSnapshot
	var searchedAt sql.NullTime
	var results string

	err := row.Scan(&snap.TopicID, &snap.SearchQuery, &searchedAt, &results)
	if err != nil {
		return nil, err
	}
	snap.SearchedAt = fromNullTime(searchedAt)
	if results != "" {
		_ = json.Unmarshal([]byte(results), &snap.Results)
	}
	return &snap, nil
}
