package notion

import (
	"context"
	"fmt"

	"research-agent/internal/core"
	"research-agent/internal/logger"
)

// BatchResult tallies a multi-topic sync run.
type BatchResult struct {
	Created int
	Updated int
	Skipped int
	Errors  []error
}

// UpsertBatch upserts every topic in order, respecting the governor's
// <= 2.5 req/sec ceiling between calls. When skipErrors is true a failed
// topic is logged and counted in Errors but does not abort the batch;
// when false the batch stops at the first error ("batch mode
// supports skip_errors").
func (c *Client) UpsertBatch(ctx context.Context, topics []core.Topic, skipErrors bool) BatchResult {
	var result BatchResult
	for _, topic := range topics {
		action, err := c.UpsertTopic(ctx, topic)
		if err != nil {
			wrapped := fmt.Errorf("topic %s: %w", topic.ID, err)
			result.Errors = append(result.Errors, wrapped)
			if !skipErrors {
				return result
			}
			logger.Warn("notion upsert failed, continuing batch", "topic_id", topic.ID, "error", err.Error())
			continue
		}
		switch action {
		case ActionCreated:
			result.Created++
		case ActionUpdated:
			result.Updated++
		default:
			result.Skipped++
		}
	}
	return result
}
