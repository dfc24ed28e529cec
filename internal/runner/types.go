package runner

import (
	"time"

	"research-agent/internal/core"
)

// TopicResult is one topic's outcome within a run ("per-topic
// status").
type TopicResult struct {
	TopicID string
	Title   string
	Status  core.TopicStatus
	CostUSD float64
	Error   string
}

// RunResult aggregates everything one Run produced: per-topic status and
// the statistics a run must always surface even when individual topics
// degrade, so a run always produces a result object.
type RunResult struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration

	DocumentsCollected int
	DuplicatesDropped  int
	TopicsDiscovered   int

	Topics []TopicResult

	ResearchedCount      int
	ResearchFailedCount  int
	SynthesisFailedCount int
	OKCount              int

	CostUSD float64
}

// NewRunResult starts a result with StartedAt set to now.
func NewRunResult() *RunResult {
	return &RunResult{StartedAt: time.Now()}
}

// finalize stamps completion time and tallies per-status counts; call once
// after every topic has been processed.
func (r *RunResult) finalize() {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	for _, t := range r.Topics {
		switch t.Status {
		case core.TopicStatusResearched:
			r.ResearchedCount++
		case core.TopicStatusResearchFailed:
			r.ResearchFailedCount++
		case core.TopicStatusSynthesisFailed:
			r.SynthesisFailedCount++
		case core.TopicStatusOK:
			r.OKCount++
		}
	}
}

// DuplicateRate is the fraction of raw collected+dropped documents that
// were duplicates, used by the cache-hit/cost-reduction testable property.
func (r *RunResult) DuplicateRate() float64 {
	total := r.DocumentsCollected + r.DuplicatesDropped
	if total == 0 {
		return 0
	}
	return float64(r.DuplicatesDropped) / float64(total)
}
