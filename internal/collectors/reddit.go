package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"research-agent/internal/config"
	"research-agent/internal/core"
	"research-agent/internal/dedup"
	"research-agent/internal/govern"
	"research-agent/internal/logger"
)

// RedditCollector discovers Documents from the public Reddit JSON API,
// one of the five collectors named in 
type RedditCollector struct {
	client   *http.Client
	governor *govern.Governor
	health   *HealthTracker

	// SortMode is one of hot|new|top|rising (default "hot").
	SortMode string
	// MaxComments caps top-level comments extracted per post.
	MaxComments int
	// MinScore/MinLen implement the quality filter.
	MinScore int
	MinLen   int
}

// NewRedditCollector constructs a Reddit collector with this package's
// defaults (sort=hot, 5 comments, quality gate score>=1/len>=40).
func NewRedditCollector(g *govern.Governor, h *HealthTracker) *RedditCollector {
	return &RedditCollector{
		client:      &http.Client{Timeout: 15 * time.Second},
		governor:    g,
		health:      h,
		SortMode:    "hot",
		MaxComments: 5,
		MinScore:    1,
		MinLen:      40,
	}
}

func (c *RedditCollector) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	CreatedUTC  float64 `json:"created_utc"`
	NumComments int     `json:"num_comments"`
}

// Collect fetches each configured subreddit's listing under SortMode and
// emits a Document per post passing the quality filter. Deleted/removed
// content and a failing subreddit are absorbed per 
func (c *RedditCollector) Collect(ctx context.Context, cfg *config.MarketConfig) []core.Document {
	if !cfg.Collectors.RedditEnabled {
		return nil
	}

	var docs []core.Document
	for _, subreddit := range cfg.Collectors.RedditSubreddits {
		if c.health.ShouldSkip(subreddit) {
			logger.Warn("skipping subreddit after repeated failures", "subreddit", subreddit)
			continue
		}
		if err := c.governor.Acquire(ctx, "reddit"); err != nil {
			continue
		}

		posts, err := c.fetchListing(ctx, subreddit)
		if err != nil {
			c.health.RecordFailure(subreddit)
			logger.Warn("reddit collector failed", "subreddit", subreddit, "error", err.Error())
			continue
		}
		c.health.RecordSuccess(subreddit)

		for _, post := range posts {
			if post.Author == "[deleted]" || post.Title == "" {
				continue
			}
			if post.Score < c.MinScore || len(post.Selftext) < c.MinLen && post.Selftext != "" {
				continue
			}
			comments := c.fetchTopLevelComments(ctx, post.Permalink)
			docs = append(docs, c.toDocument(post, subreddit, comments, cfg))
		}
	}
	return docs
}

func (c *RedditCollector) fetchListing(ctx context.Context, subreddit string) ([]redditPost, error) {
	url := fmt.Sprintf("https://www.reddit.com/r/%s/%s.json?limit=25", subreddit, c.SortMode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "research-agent/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch subreddit listing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subreddit listing returned status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode subreddit listing: %w", err)
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

// commentListing is the second element of Reddit's post+comments JSON
// response (the first element, the post listing itself, is not decoded).
type commentListing struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Author string `json:"author"`
				Body   string `json:"body"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// fetchTopLevelComments retrieves up to MaxComments top-level comments for
// a post, ignoring deleted/removed authors (Reddit collector).
// Failures return nil rather than propagating (uniform collector contract).
func (c *RedditCollector) fetchTopLevelComments(ctx context.Context, permalink string) []string {
	url := fmt.Sprintf("https://www.reddit.com%s.json?limit=%d", permalink, c.MaxComments)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "research-agent/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var pair []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil || len(pair) < 2 {
		return nil
	}

	var listing commentListing
	if err := json.Unmarshal(pair[1], &listing); err != nil {
		return nil
	}

	comments := make([]string, 0, c.MaxComments)
	for _, child := range listing.Data.Children {
		if child.Kind != "t1" || child.Data.Author == "[deleted]" || child.Data.Author == "[removed]" {
			continue
		}
		if child.Data.Body == "" || child.Data.Body == "[deleted]" || child.Data.Body == "[removed]" {
			continue
		}
		comments = append(comments, child.Data.Body)
		if len(comments) >= c.MaxComments {
			break
		}
	}
	return comments
}

func (c *RedditCollector) toDocument(post redditPost, subreddit string, comments []string, cfg *config.MarketConfig) core.Document {
	market, language, domain := cfg.EffectiveMarket()
	link := "https://reddit.com" + post.Permalink
	canonical := dedup.CanonicalURL(link)
	content := post.Selftext
	if len(comments) > 0 {
		content += "\n\n" + joinComments(comments)
	}

	return core.Document{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String(),
		Source:       "reddit_" + subreddit,
		SourceURL:    link,
		CanonicalURL: canonical,
		Title:        post.Title,
		Content:      content,
		Summary:      truncate(content, 280),
		Language:     language,
		Domain:       domain,
		Market:       market,
		Vertical:     cfg.Vertical,
		ContentHash:  dedup.ComputeContentHash(post.Title + content),
		Author:       post.Author,
		PublishedAt:  time.Unix(int64(post.CreatedUTC), 0).UTC(),
		FetchedAt:    time.Now().UTC(),
		Status:       core.DocumentStatusNew,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func joinComments(comments []string) string {
	out := ""
	for i, c := range comments {
		if i > 0 {
			out += "\n\n"
		}
		out += c
	}
	return out
}
