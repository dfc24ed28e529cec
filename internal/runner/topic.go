package runner

import (
	"context"
	"fmt"
	"time"

	"research-agent/internal/core"
	"research-agent/internal/logger"
)

// MaxResultsPerBackend bounds how many hits the orchestrator asks each
// research backend for per topic.
const MaxResultsPerBackend = 10

// processTopic runs research through cross-topic synthesis for one Topic:
// consult the Source Intelligence cache before paying for a fresh
// orchestrator run (Open Question decision,
// see DESIGN.md), rerank and synthesize an article when research runs,
// link to related topics, and persist the result. It never returns an
// error: every failure degrades into the topic's Status field (
// "no exception terminates a multi-topic run short of ConfigError").
func (r *Runner) processTopic(ctx context.Context, topic core.Topic) TopicResult {
	tr := TopicResult{TopicID: topic.ID, Title: topic.Title}

	if r.cachedReportIsFresh(topic) {
		logger.Info("topic cache hit, skipping orchestrator", "topic_id", topic.ID)
		tr.Status = core.TopicStatusOK
		r.linkAndPersist(ctx, topic, &tr)
		return tr
	}

	orchResult, err := r.orch.Research(ctx, topic.Title, MaxResultsPerBackend)
	if err != nil {
		logger.Warn("orchestrator failed for topic, retaining topic without report", "topic_id", topic.ID, "error", err.Error())
		tr.Status = core.TopicStatusResearchFailed
		tr.Error = err.Error()
		r.persistStatusOnly(topic)
		r.pushDeadLetter("research", topic.ID, err)
		return tr
	}
	tr.CostUSD += orchResult.CostUSD

	reranked := r.reranker.Rerank(ctx, topic.Title, orchResult.Results)

	synthResult := r.synth.Synthesize(ctx, topic.Title, reranked)
	tr.CostUSD += synthResult.CostUSD

	if synthResult.Article == "" {
		logger.Warn("synthesis produced no article, topic retained without report", "topic_id", topic.ID)
		tr.Status = core.TopicStatusSynthesisFailed
		r.persistStatusOnly(topic)
		r.pushDeadLetter("synthesis", topic.ID, fmt.Errorf("synthesizer returned an empty article"))
		return tr
	}

	report := core.ResearchReport{
		TopicID:         topic.ID,
		Query:           topic.Title,
		ArticleMarkdown: synthResult.Article,
		Citations:       synthResult.Citations,
		BackendStats:    orchResult.BackendStats,
		CostUSD:         tr.CostUSD,
		GeneratedAt:     time.Now(),
	}
	if err := r.store.SaveResearchReport(report); err != nil {
		logger.Warn("failed to persist research report", "topic_id", topic.ID, "error", err.Error())
	}
	topic.ResearchReport = &report
	tr.Status = core.TopicStatusResearched

	r.linkAndPersist(ctx, topic, &tr)
	return tr
}

// linkAndPersist runs the cross-topic synthesizer and writes the final
// Topic record back to the store.
func (r *Runner) linkAndPersist(ctx context.Context, topic core.Topic, tr *TopicResult) {
	if _, err := r.crossTopic.Link(topic, crosstopicMaxRelated); err != nil {
		logger.Warn("cross-topic linking failed, continuing without related topics", "topic_id", topic.ID, "error", err.Error())
	}
	topic.UpdatedAt = time.Now()
	if err := r.store.UpsertTopic(topic); err != nil {
		logger.Warn("failed to persist researched topic", "topic_id", topic.ID, "error", err.Error())
	}
}

// persistStatusOnly refreshes a topic's UpdatedAt without a report, so a
// failed research/synthesis pass still leaves the topic's score visible
// ("topic retained with score but no report").
func (r *Runner) persistStatusOnly(topic core.Topic) {
	topic.UpdatedAt = time.Now()
	if err := r.store.UpsertTopic(topic); err != nil {
		logger.Warn("failed to persist topic status", "topic_id", topic.ID, "error", err.Error())
	}
}

// cachedReportIsFresh reports whether topic already has a research report
// whose every cited source is still within the 7-day staleness window,
// letting the runner skip a full re-research cycle entirely.
func (r *Runner) cachedReportIsFresh(topic core.Topic) bool {
	if topic.ResearchReport == nil || len(topic.ResearchReport.Citations) == 0 {
		return false
	}
	for _, url := range topic.ResearchReport.Citations {
		src, err := r.store.GetSource(url)
		if err != nil || src == nil || src.IsStale {
			return false
		}
	}
	return true
}

const crosstopicMaxRelated = 3
