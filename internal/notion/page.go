package notion

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/sjson"

	"research-agent/internal/core"
)

// buildProperties incrementally builds the Notion page "properties" JSON
// object for topic via sjson.SetBytes, path-by-path, rather than a maze of
// one-off typed structs per Notion property shape. Property names match a
// typical content-calendar database so a configured integration's sync_day
// job has something real to write. Pairs with query.go's gjson-for-reads
// side of the same no-SDK REST client.
func buildProperties(topic core.Topic) ([]byte, error) {
	status := "Discovered"
	if topic.ResearchReport != nil {
		status = "Researched"
	}

	body := []byte("{}")
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, value)
	}

	set("Name.title.0.text.content", topic.Title)
	set("Topic ID.rich_text.0.text.content", topic.ID)
	set("Domain.rich_text.0.text.content", topic.Domain)
	set("Market.rich_text.0.text.content", topic.Market)
	set("Priority.number", topic.Priority)
	set("Priority Score.number", topic.PriorityScore)
	set("Status.select.name", status)
	if !topic.DiscoveredAt.IsZero() {
		set("Discovered At.date.start", topic.DiscoveredAt.Format("2006-01-02"))
	}
	if err != nil {
		return nil, fmt.Errorf("build notion properties: %w", err)
	}
	return body, nil
}

func (c *Client) createPage(ctx context.Context, topic core.Topic) error {
	props, err := buildProperties(topic)
	if err != nil {
		return err
	}
	body, err := sjson.SetBytes([]byte("{}"), "parent.database_id", c.databaseID)
	if err != nil {
		return fmt.Errorf("build notion create request: %w", err)
	}
	body, err = sjson.SetRawBytes(body, "properties", props)
	if err != nil {
		return fmt.Errorf("build notion create request: %w", err)
	}
	return c.doWrite(ctx, http.MethodPost, "/pages", body)
}

func (c *Client) updatePage(ctx context.Context, pageID string, topic core.Topic) error {
	props, err := buildProperties(topic)
	if err != nil {
		return err
	}
	body, err := sjson.SetRawBytes([]byte("{}"), "properties", props)
	if err != nil {
		return fmt.Errorf("build notion update request: %w", err)
	}
	return c.doWrite(ctx, http.MethodPatch, "/pages/"+pageID, body)
}

func (c *Client) doWrite(ctx context.Context, method, path string, body []byte) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("build notion request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return fmt.Errorf("notion request returned status %d: %s", resp.StatusCode, buf.String())
	}
	return nil
}
