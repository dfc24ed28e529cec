package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

type queryFilter struct {
	Property string          `json:"property"`
	RichText queryRichTextEq `json:"rich_text"`
}

type queryRichTextEq struct {
	Equals string `json:"equals"`
}

type queryRequest struct {
	Filter queryFilter `json:"filter"`
}

// findPageByTopicID looks up the Notion page whose "Topic ID" rich_text
// property equals topicID, returning "" if none exists.
func (c *Client) findPageByTopicID(ctx context.Context, topicID string) (string, error) {
	body, err := json.Marshal(queryRequest{
		Filter: queryFilter{Property: "Topic ID", RichText: queryRichTextEq{Equals: topicID}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal notion query: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/databases/"+c.databaseID+"/query", body)
	if err != nil {
		return "", fmt.Errorf("build notion query request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("notion query request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", fmt.Errorf("read notion query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("notion query returned status %d: %s", resp.StatusCode, buf.String())
	}

	return gjson.GetBytes(buf.Bytes(), "results.0.id").String(), nil
}
