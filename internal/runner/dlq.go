package runner

import (
	"context"
	"encoding/json"
	"time"

	"research-agent/internal/logger"
)

// deadLetterPayload identifies the topic a failed task needs to retry
// against; the task kind is stored in the entry's own kind column.
type deadLetterPayload struct {
	TopicID string `json:"topic_id"`
}

// pushDeadLetter records a task failure for later retry. Failures here are
// themselves best-effort: a DLQ write failure is logged, never escalated.
func (r *Runner) pushDeadLetter(kind, topicID string, cause error) {
	payload, err := json.Marshal(deadLetterPayload{TopicID: topicID})
	if err != nil {
		logger.Warn("failed to marshal dead letter payload", "kind", kind, "topic_id", topicID, "error", err.Error())
		return
	}
	if err := r.store.PushDeadLetter(kind, string(payload), cause.Error()); err != nil {
		logger.Warn("failed to push dead letter", "kind", kind, "topic_id", topicID, "error", err.Error())
	}
}

// ProcessDueDeadLetters retries every dead-letter entry whose backoff has
// elapsed, up to store.MaxDLQAttempts ("periodic task entries
// retry up to 3 times with exponential backoff"). A task that still fails
// at its final attempt is left in the table for operator intervention,
// exactly as the dead-letter-queue contract requires.
func (r *Runner) ProcessDueDeadLetters(ctx context.Context) error {
	entries, err := r.store.DueDeadLetters(time.Now())
	if err != nil {
		return err
	}
	for _, entry := range entries {
		var payload deadLetterPayload
		if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
			logger.Warn("dead letter payload corrupted, resolving without retry", "id", entry.ID, "kind", entry.Kind)
			_ = r.store.ResolveDeadLetter(entry.ID)
			continue
		}

		topic, err := r.store.GetTopic(payload.TopicID)
		if err != nil || topic == nil {
			logger.Warn("dead letter references unknown topic, resolving without retry", "id", entry.ID, "topic_id", payload.TopicID)
			_ = r.store.ResolveDeadLetter(entry.ID)
			continue
		}

		logger.Info("retrying dead-lettered task", "id", entry.ID, "kind", entry.Kind, "topic_id", payload.TopicID, "attempt", entry.Attempts+1)
		tr := r.processTopic(ctx, *topic)
		if tr.Error == "" {
			_ = r.store.ResolveDeadLetter(entry.ID)
			continue
		}
		if err := r.store.RecordRetryFailure(entry.ID, entry.Attempts, tr.Error); err != nil {
			logger.Warn("failed to record dead letter retry failure", "id", entry.ID, "error", err.Error())
		}
	}
	return nil
}
