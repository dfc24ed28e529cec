// Package runner wires the whole pipeline into one top-level run: collect
// documents from every configured source, cluster and score candidate
// topics, research and synthesize a content article per surviving topic,
// link it to related topics, and (if configured) sync it to Notion. A
// single entrypoint with multi-stage, non-fatal degradation: "collect ->
// cluster -> validate -> research N topics in parallel".
package runner

import (
	"context"
	"fmt"
	"time"

	"research-agent/internal/collectors"
	"research-agent/internal/config"
	"research-agent/internal/crosstopic"
	"research-agent/internal/dedup"
	"research-agent/internal/govern"
	"research-agent/internal/llmclient"
	"research-agent/internal/logger"
	"research-agent/internal/notion"
	"research-agent/internal/orchestrator"
	"research-agent/internal/rerank"
	"research-agent/internal/store"
	"research-agent/internal/synthesize"
)

// Runner owns every long-lived dependency a run needs and exposes the
// orchestration entrypoints (Run, RunNotionSync, ProcessDueDeadLetters).
type Runner struct {
	cfg      *config.MarketConfig
	store    *store.Store
	governor *govern.Governor
	llm      *llmclient.Client

	collectorList []collectors.Collector
	dedup         *dedup.Deduplicator

	orch       *orchestrator.Orchestrator
	reranker   *rerank.Reranker
	synth      *synthesize.Synthesizer
	crossTopic *crosstopic.Synthesizer
	notion     *notion.Client
}

// New constructs a Runner from a loaded MarketConfig, opening (or creating)
// the on-disk document store and wiring every component onto the shared
// governor/llm client, following the collector-toggle table
// ("collectors.*_enabled").
func New(cfg *config.MarketConfig) (*Runner, error) {
	st, err := store.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	return newRunner(cfg, st)
}

// NewWithStore builds a Runner over an already-open Store (used by tests
// against store.NewMemoryStore).
func NewWithStore(cfg *config.MarketConfig, st *store.Store) (*Runner, error) {
	return newRunner(cfg, st)
}

func newRunner(cfg *config.MarketConfig, st *store.Store) (*Runner, error) {
	gov := govern.New()
	llm := llmclient.NewClient(llmclient.DefaultModel, gov)
	health := collectors.NewHealthTracker()

	rssCollector := collectors.NewRSSCollector(gov, health)
	var collectorList []collectors.Collector
	collectorList = append(collectorList, rssCollector)
	if cfg.Collectors.RedditEnabled {
		collectorList = append(collectorList, collectors.NewRedditCollector(gov, health))
	}
	if cfg.Collectors.TrendsEnabled {
		collectorList = append(collectorList, collectors.NewTrendsCollector(llm, gov, health))
	}
	if cfg.Collectors.AutocompleteEnabled {
		collectorList = append(collectorList, collectors.NewAutocompleteCollector(gov, health))
	}
	if cfg.Collectors.NewsAPIEnabled {
		collectorList = append(collectorList, collectors.NewNewsAPICollector(gov, health))
	}
	if cfg.Collectors.FeedDiscoveryEnabled {
		collectorList = append(collectorList, collectors.NewFeedDiscoveryCollector(rssCollector, llm, gov, health))
	}

	backendMap := buildBackends(cfg, gov, llm, rssCollector)

	orch := orchestrator.New(
		backendMap,
		st,
		cfg.DeepResearch.MinSuccessfulBackends,
		latencyBudget(cfg.DeepResearch.LatencyBudgetSeconds),
		cfg.DeepResearch.CostBudgetUSD,
	)

	_, language, _ := cfg.EffectiveMarket()
	reranker := rerank.New(
		llm,
		cfg.Reranker.Stage1Threshold,
		cfg.Reranker.Stage2Threshold,
		cfg.Reranker.Stage3FinalCount,
		cfg.MarketName,
		language,
	)

	synth := synthesize.New(llm, gov, cfg.Synthesizer.Strategy, cfg.Synthesizer.MaxArticleWords)
	cross := crosstopic.New(st)

	notionClient := notion.NewClient(notionAPIKey(), notionDatabaseID(), gov)

	return &Runner{
		cfg:           cfg,
		store:         st,
		governor:      gov,
		llm:           llm,
		collectorList: collectorList,
		dedup:         dedup.New(),
		orch:          orch,
		reranker:      reranker,
		synth:         synth,
		crossTopic:    cross,
		notion:        notionClient,
	}, nil
}

// Close releases the underlying store handle.
func (r *Runner) Close() error {
	return r.store.Close()
}

// Run executes one full collect -> cluster -> validate -> research cycle
// and returns its aggregate RunResult ("a run always produces a
// result object").
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	result := NewRunResult()

	docs, dupDropped, err := r.collect(ctx)
	if err != nil {
		return nil, err
	}
	result.DocumentsCollected = len(docs)
	result.DuplicatesDropped = dupDropped
	logger.Info("collection complete", "kept", len(docs), "duplicates_dropped", dupDropped)

	if len(docs) == 0 {
		logger.Warn("no documents collected this run, skipping clustering")
		return result, nil
	}

	topics, err := r.clusterAndValidate(ctx, docs)
	if err != nil {
		logger.Warn("clustering/validation failed, run continues with zero topics", "error", err.Error())
		return result, nil
	}
	result.TopicsDiscovered = len(topics)

	for _, topic := range topics {
		tr := r.processTopic(ctx, topic)
		result.Topics = append(result.Topics, tr)
		result.CostUSD += tr.CostUSD
		if tr.Status == "" {
			continue
		}
	}
	result.finalize()
	return result, nil
}

// latencyBudget converts the configured seconds into a Duration, letting
// orchestrator.New apply its own default (90s) when unset.
func latencyBudget(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
