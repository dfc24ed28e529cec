package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/apperr"
	"research-agent/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewStore_CreatesDBFile(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := NewStore(tmpDir)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	dbPath := filepath.Join(tmpDir, "research-agent.db")
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestInsertDocument_DuplicateCanonicalURLIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	doc := core.Document{
		ID: "doc-1", CanonicalURL: "https://example.com/a", Title: "A",
		Language: "en", FetchedAt: time.Now(),
	}
	require.NoError(t, s.InsertDocument(doc))

	dup := doc
	dup.ID = "doc-2"
	err := s.InsertDocument(dup)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.DuplicateCanonicalURL))
}

func TestGetDocumentsByLanguage(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.InsertDocument(core.Document{ID: "1", CanonicalURL: "https://a.com/1", Language: "en", FetchedAt: time.Now()}))
	require.NoError(t, s.InsertDocument(core.Document{ID: "2", CanonicalURL: "https://a.com/2", Language: "de", FetchedAt: time.Now()}))

	docs, err := s.GetDocumentsByLanguage("en", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "1", docs[0].ID)
}

func TestUpsertTopic_DerivesPriorityFromScore(t *testing.T) {
	s := newTestStore(t)

	topic := core.Topic{ID: "t1", Title: "Electric Vehicles 2026", PriorityScore: 0.73, Language: "en"}
	require.NoError(t, s.UpsertTopic(topic))

	got, err := s.GetTopic("t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.PriorityFromScore(0.73), got.Priority)
}

func TestFindRelatedTopics_EmptyWhenNoOverlap(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertTopic(core.Topic{ID: "t1", Title: "Solar Panel Efficiency Breakthrough", Language: "en"}))
	require.NoError(t, s.UpsertTopic(core.Topic{ID: "t2", Title: "Quarterly Bakery Revenue Report", Language: "en"}))

	related, err := s.FindRelatedTopics("t3", "Zebra Migration Patterns", "en", 0.3, 5)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestFindRelatedTopics_MatchesSharedTokens(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertTopic(core.Topic{ID: "t1", Title: "Solar Panel Efficiency Breakthrough 2026", Language: "en"}))

	related, err := s.FindRelatedTopics("t2", "Solar Panel Efficiency in Cold Climates", "en", 0.2, 5)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "t1", related[0].ID)
}

func TestSaveSource_IdempotentUsageCount(t *testing.T) {
	s := newTestStore(t)

	src := core.Source{
		URL: "https://example.com/a", Domain: "example.com",
		LastFetchedAt: time.Now(), TopicIDs: []string{"t1"}, UsageCount: 1,
	}
	require.NoError(t, s.SaveSource(src))

	src.TopicIDs = []string{"t1"} // same topic re-seen, not a new usage
	require.NoError(t, s.SaveSource(src))

	got, err := s.GetSource("https://example.com/a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.UsageCount)
	assert.Equal(t, 2, got.FetchCount)
	assert.Len(t, got.TopicIDs, 1)

	src.TopicIDs = []string{"t1", "t2"}
	require.NoError(t, s.SaveSource(src))
	got, err = s.GetSource("https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)
	assert.Len(t, got.TopicIDs, 2)
}

func TestGetSource_StalenessPolicy(t *testing.T) {
	s := newTestStore(t)

	stale := core.Source{URL: "https://old.com/a", LastFetchedAt: time.Now().Add(-8 * 24 * time.Hour)}
	require.NoError(t, s.SaveSource(stale))

	got, err := s.GetSource("https://old.com/a")
	require.NoError(t, err)
	assert.True(t, got.IsStale)
}

func TestSaveSERPResults_LatestSnapshot(t *testing.T) {
	s := newTestStore(t)

	older := core.SERPSnapshot{TopicID: "t1", SearchQuery: "q", SearchedAt: time.Now().Add(-time.Hour)}
	newer := core.SERPSnapshot{TopicID: "t1", SearchQuery: "q", SearchedAt: time.Now()}
	require.NoError(t, s.SaveSERPResults(older))
	require.NoError(t, s.SaveSERPResults(newer))

	latest, err := s.GetLatestSERPSnapshot("t1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.WithinDuration(t, newer.SearchedAt, latest.SearchedAt, time.Second)

	history, err := s.GetSERPHistory("t1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestDeadLetterQueue_RetryLifecycle(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.PushDeadLetter("research", `{"topic_id":"t1"}`, "all sources failed"))

	due, err := s.DueDeadLetters(time.Now().Add(2 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)

	entryID := due[0].ID
	require.NoError(t, s.RecordRetryFailure(entryID, due[0].Attempts, "still failing"))

	stillDue, err := s.DueDeadLetters(time.Now())
	require.NoError(t, err)
	assert.Empty(t, stillDue) // next attempt pushed into the future

	require.NoError(t, s.ResolveDeadLetter(entryID))
}
