// Package notion implements the external Notion-shaped sink contract
// ("External adapter contracts"): upsert_topic(topic) ->
// {action in {created, updated, skipped}}, rate-limited to <= 2.5 req/sec,
// with a batch mode supporting skip_errors. It talks to the real Notion
// REST API over plain net/http+encoding/json, matching the no-SDK,
// plain-HTTP texture established by internal/llmclient and
// internal/research's backends rather than importing a generated client.
package notion

import (
	"bytes"
	"context"
	"net/http"

	"research-agent/internal/core"
	"research-agent/internal/govern"
)

const (
	// DefaultBaseURL is the Notion REST API root.
	DefaultBaseURL = "https://api.notion.com/v1"
	// APIVersion is the Notion-Version header value this client speaks.
	APIVersion = "2022-06-28"
	// MaxRPS is this package's upsert rate ceiling.
	MaxRPS = 2.5

	governClass = "notion"
)

// Action is the outcome of one upsert_topic call.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// Client is the concrete Notion sink adapter.
type Client struct {
	httpClient *http.Client
	governor   *govern.Governor
	apiKey     string
	databaseID string
	baseURL    string
}

// NewClient constructs a Client bound to one Notion database. An empty
// apiKey or databaseID means "not configured": every UpsertTopic call
// returns ActionSkipped rather than erroring, so a run with no Notion
// sink configured behaves identically to one that has it disabled.
func NewClient(apiKey, databaseID string, g *govern.Governor) *Client {
	if g == nil {
		g = govern.New()
	}
	g.SetRate(governClass, MaxRPS)
	return &Client{
		httpClient: &http.Client{Timeout: govern.DefaultFeedDiscoveryTimeout},
		governor:   g,
		apiKey:     apiKey,
		databaseID: databaseID,
		baseURL:    DefaultBaseURL,
	}
}

// configured reports whether the client has both credentials it needs to
// talk to Notion at all.
func (c *Client) configured() bool {
	return c.apiKey != "" && c.databaseID != ""
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// UpsertTopic implements the external sink contract for a single topic:
// finds an existing page by topic ID, updates it if found, else creates
// one. Returns ActionSkipped (never an error) when the client is
// unconfigured, so a run with no Notion integration configured behaves
// the same as a run that chose to disable it.
func (c *Client) UpsertTopic(ctx context.Context, topic core.Topic) (Action, error) {
	if !c.configured() {
		return ActionSkipped, nil
	}
	if err := c.governor.Acquire(ctx, governClass); err != nil {
		return ActionSkipped, err
	}

	pageID, err := c.findPageByTopicID(ctx, topic.ID)
	if err != nil {
		return "", err
	}
	if pageID != "" {
		if err := c.updatePage(ctx, pageID, topic); err != nil {
			return "", err
		}
		return ActionUpdated, nil
	}

	if err := c.createPage(ctx, topic); err != nil {
		return "", err
	}
	return ActionCreated, nil
}
