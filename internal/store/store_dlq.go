package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeadLetterEntry is a unit of work that failed every backend/attempt and
// is parked for later retry by the runner's cron-scheduled retry ticker.
type DeadLetterEntry struct {
	ID            string
	Kind          string // "research" | "synthesis"
	Payload       string // JSON-encoded request context for the retried op
	ErrorMessage  string
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// RetryBackoffs is the fixed backoff ladder used by the DLQ retry ticker:
// 60s, 120s, 240s, then give up after 3 attempts.
var RetryBackoffs = []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second}

// MaxDLQAttempts bounds how many times a dead-lettered entry is retried
// before it is left parked permanently for manual inspection.
const MaxDLQAttempts = len(RetryBackoffs)

// PushDeadLetter enqueues a failed unit of work for later retry.
func (s *Store) PushDeadLetter(kind, payload, errMsg string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO dead_letter_queue (id, kind, payload, error_message, attempts, next_attempt_at, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		uuid.NewString(), kind, payload, errMsg, nullTime(now.Add(RetryBackoffs[0])), nullTime(now),
	)
	if err != nil {
		return fmt.Errorf("push dead letter: %w", err)
	}
	return nil
}

// DueDeadLetters returns entries whose next_attempt_at has elapsed and
// which have not yet exhausted MaxDLQAttempts.
func (s *Store) DueDeadLetters(now time.Time) ([]DeadLetterEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, payload, error_message, attempts, next_attempt_at, created_at
		FROM dead_letter_queue
		WHERE next_attempt_at <= ? AND attempts < ?
		ORDER BY next_attempt_at ASC`, nullTime(now), MaxDLQAttempts)
	if err != nil {
		return nil, fmt.Errorf("query due dead letters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []DeadLetterEntry
	for rows.Next() {
		var e DeadLetterEntry
		var nextAttempt, createdAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.Kind, &e.Payload, &e.ErrorMessage, &e.Attempts, &nextAttempt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		e.NextAttemptAt = fromNullTime(nextAttempt)
		e.CreatedAt = fromNullTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordRetryFailure increments the attempt counter and schedules the next
// backoff tier, or leaves the entry permanently parked once attempts
// reaches MaxDLQAttempts.
func (s *Store) RecordRetryFailure(id string, attempts int, errMsg string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := attempts + 1
	var nextAttemptAt time.Time
	if next < len(RetryBackoffs) {
		nextAttemptAt = time.Now().UTC().Add(RetryBackoffs[next])
	} else {
		nextAttemptAt = time.Now().UTC().Add(365 * 24 * time.Hour) // effectively parked
	}

	_, err := s.db.Exec(`
		UPDATE dead_letter_queue SET attempts = ?, error_message = ?, next_attempt_at = ? WHERE id = ?`,
		attempts+1, errMsg, nullTime(nextAttemptAt), id,
	)
	if err != nil {
		return fmt.Errorf("record retry failure: %w", err)
	}
	return nil
}

// ResolveDeadLetter removes an entry after a successful retry.
func (s *Store) ResolveDeadLetter(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(`DELETE FROM dead_letter_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("resolve dead letter: %w", err)
	}
	return nil
}
