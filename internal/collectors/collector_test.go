package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthTracker_SkipsAfterConsecutiveFailures(t *testing.T) {
	h := NewHealthTracker()
	assert.False(t, h.ShouldSkip("feed-a"))

	for i := 0; i < MaxConsecutiveFailures; i++ {
		h.RecordFailure("feed-a")
	}
	assert.True(t, h.ShouldSkip("feed-a"))

	h.RecordSuccess("feed-a")
	assert.False(t, h.ShouldSkip("feed-a"))
}

func TestHealthTracker_SnapshotIsIndependentCopy(t *testing.T) {
	h := NewHealthTracker()
	h.RecordFailure("feed-a")

	snap := h.Snapshot()
	require.Contains(t, snap, "feed-a")
	assert.Equal(t, 1, snap["feed-a"].ConsecutiveFailures)

	h.RecordFailure("feed-a")
	assert.Equal(t, 1, snap["feed-a"].ConsecutiveFailures, "snapshot must not mutate with later writes")
}

func TestExtractArticleText_PrefersMainContentSelector(t *testing.T) {
	html := `<html><body>
		<nav>Home | About</nav>
		<article><p>First paragraph.</p><p>Second paragraph.</p></article>
		<footer>Copyright</footer>
	</body></html>`

	text := ExtractArticleText(html)
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.NotContains(t, text, "Home | About")
	assert.NotContains(t, text, "Copyright")
}

func TestExtractArticleText_FallsBackToBodyWhenNoContainerMatches(t *testing.T) {
	html := `<html><body><p>Only a loose paragraph.</p></body></html>`
	text := ExtractArticleText(html)
	assert.Contains(t, text, "Only a loose paragraph.")
}

func TestExtractTitle_FallsBackToOGTitle(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Fallback Title"></head><body></body></html>`
	assert.Equal(t, "Fallback Title", ExtractTitle(html))
}

func TestExtractTitle_PrefersTitleTag(t *testing.T) {
	html := `<html><head><title>Real Title</title><meta property="og:title" content="Ignored"></head></html>`
	assert.Equal(t, "Real Title", ExtractTitle(html))
}

func TestParseTrendPhrases_DedupesAndStripsBullets(t *testing.T) {
	response := "- phrase one\n* phrase two\n1. phrase one\nphrase three\n\n"
	phrases := parseTrendPhrases(response)
	assert.Equal(t, []string{"phrase one", "phrase two", "phrase three"}, phrases)
}

func TestDedupeStrings_PreservesFirstOccurrenceOrder(t *testing.T) {
	in := []string{"https://a.example/feed", "https://b.example/feed", "https://a.example/feed", ""}
	out := dedupeStrings(in)
	assert.Equal(t, []string{"https://a.example/feed", "https://b.example/feed"}, out)
}

func TestParseOPML_ExtractsNestedOutlineFeeds(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<opml version="1.0">
  <body>
    <outline text="Tech">
      <outline text="Site A" xmlUrl="https://a.example/feed.xml"/>
      <outline text="Site B" xmlUrl="https://b.example/feed.xml"/>
    </outline>
  </body>
</opml>`)

	original := opmlFileReader
	defer func() { opmlFileReader = original }()
	opmlFileReader = func(path string) ([]byte, error) { return body, nil }

	feeds := parseOPML([]string{"feeds.opml"})
	assert.ElementsMatch(t, []string{"https://a.example/feed.xml", "https://b.example/feed.xml"}, feeds)
}
