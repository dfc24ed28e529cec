package runner

import (
	"context"

	"research-agent/internal/logger"
)

// RunNotionSync upserts every stored topic to the configured Notion sink
// ("Notion-shaped sink (if configured)"). With no Notion
// credentials configured this is a no-op: every UpsertTopic call degrades
// to ActionSkipped rather than an error.
func (r *Runner) RunNotionSync(ctx context.Context) error {
	topics, err := r.store.ListTopics(0)
	if err != nil {
		return err
	}
	result := r.notion.UpsertBatch(ctx, topics, true)
	logger.Info("notion sync complete", "created", result.Created, "updated", result.Updated, "skipped", result.Skipped, "errors", len(result.Errors))
	return nil
}
