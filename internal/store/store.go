// Package store is the SQLite-backed persistence layer for the research
// pipeline. It uses a sql.DB-over-mattn/go-sqlite3 idiom (NewStore/
// initialize/migrations, INSERT OR REPLACE upserts, sql.Null* scanning)
// shaped around documents, topics, clusters, sources, SERP snapshots,
// research reports and a dead-letter queue.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the single-writer/multi-reader SQLite handle for one run's data
// directory. Writers serialize through writeMu (sqlite3 allows only one
// writer at a time); readers use the shared *sql.DB connection pool.
type Store struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
}

// NewStore opens (creating if necessary) the SQLite database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "research-agent.db")
	return newStoreAtPath(dbPath)
}

// NewMemoryStore opens a shared in-memory database, for tests that need a
// Store without touching the filesystem. The "cache=shared" DSN keeps all
// connections in the pool pointed at the same in-memory database.
func NewMemoryStore() (*Store, error) {
	return newStoreAtPath("file::memory:?cache=shared")
}

func newStoreAtPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT,
			source_url TEXT,
			canonical_url TEXT UNIQUE NOT NULL,
			title TEXT,
			content TEXT,
			summary TEXT,
			language TEXT,
			domain TEXT,
			market TEXT,
			vertical TEXT,
			content_hash TEXT,
			published_at DATETIME,
			fetched_at DATETIME,
			author TEXT,
			entities TEXT,
			keywords TEXT,
			reliability_score REAL DEFAULT 0,
			paywall BOOLEAN DEFAULT FALSE,
			status TEXT DEFAULT 'new'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_language ON documents(language);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_fetched_at ON documents(fetched_at);`,

		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			title TEXT,
			description TEXT,
			cluster_label TEXT,
			source TEXT,
			source_url TEXT,
			language TEXT,
			domain TEXT,
			market TEXT,
			demand_score REAL DEFAULT 0,
			opportunity_score REAL DEFAULT 0,
			fit_score REAL DEFAULT 0,
			novelty_score REAL DEFAULT 0,
			priority_score REAL DEFAULT 0,
			priority INTEGER DEFAULT 1,
			competitors TEXT,
			content_gaps TEXT,
			keywords TEXT,
			research_report TEXT,
			hero_image_url TEXT,
			supporting_images TEXT,
			status TEXT DEFAULT 'ok',
			discovered_at DATETIME,
			updated_at DATETIME,
			published_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_topics_priority ON topics(priority_score DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_topics_market ON topics(market, language, domain);`,

		`CREATE TABLE IF NOT EXISTS clusters (
			cluster_id TEXT PRIMARY KEY,
			label TEXT,
			representative_title TEXT,
			document_ids TEXT
		);`,

		`CREATE TABLE IF NOT EXISTS sources (
			url TEXT PRIMARY KEY,
			domain TEXT,
			title TEXT,
			content_preview TEXT,
			first_fetched_at DATETIME,
			last_fetched_at DATETIME,
			fetch_count INTEGER DEFAULT 0,
			topic_ids TEXT,
			usage_count INTEGER DEFAULT 0,
			quality_score REAL DEFAULT 0,
			e_e_a_t_signals TEXT,
			author TEXT,
			published_at DATETIME
		);`,

		`CREATE TABLE IF NOT EXISTS serp_snapshots (
			id TEXT PRIMARY KEY,
			topic_id TEXT,
			search_query TEXT,
			searched_at DATETIME,
			results TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_serp_topic ON serp_snapshots(topic_id, searched_at DESC);`,

		`CREATE TABLE IF NOT EXISTS research_reports (
			topic_id TEXT PRIMARY KEY,
			query TEXT,
			article_markdown TEXT,
			citations TEXT,
			backend_stats TEXT,
			cost_usd REAL DEFAULT 0,
			generated_at DATETIME
		);`,

		`CREATE TABLE IF NOT EXISTS dead_letter_queue (
			id TEXT PRIMARY KEY,
			kind TEXT,
			payload TEXT,
			error_message TEXT,
			attempts INTEGER DEFAULT 0,
			next_attempt_at DATETIME,
			created_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_next_attempt ON dead_letter_queue(next_attempt_at);`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem (or DSN) path the store was opened against.
func (s *Store) Path() string {
	return s.path
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return nullTime(*t)
}

func fromNullTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}

func fromNullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
