// Package collectors implements the uniform multi-source collection layer:
// a Collect(ctx, MarketConfig) contract shared by the RSS, Reddit,
// Trends, Autocomplete, breaking-news, and feed-discovery sub-collectors,
// each tracked by a per-resource HealthRecord with a 5-failure backoff
// skip.
package collectors

import (
	"context"
	"sync"
	"time"

	"research-agent/internal/config"
	"research-agent/internal/core"
)

// Collector is the uniform contract every source adapter implements.
// Every Collect call absorbs its own failures: a failing resource is
// logged and skipped, never propagated as an error to the caller.
type Collector interface {
	Name() string
	Collect(ctx context.Context, cfg *config.MarketConfig) []core.Document
}

// MaxConsecutiveFailures is the threshold at which a resource (feed, host,
// subreddit) is skipped until it records a success.
const MaxConsecutiveFailures = 5

// HealthRecord tracks one resource's recent collection history.
type HealthRecord struct {
	Success             bool
	Failure             bool
	ConsecutiveFailures int
	LastSuccess         time.Time
}

// HealthTracker is a concurrency-safe registry of per-resource health,
// shared across a collector's goroutines within one run.
type HealthTracker struct {
	mu      sync.Mutex
	records map[string]*HealthRecord
}

// NewHealthTracker constructs an empty tracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{records: make(map[string]*HealthRecord)}
}

// ShouldSkip reports whether resource has failed MaxConsecutiveFailures
// times in a row and has not yet recorded a success since.
func (h *HealthTracker) ShouldSkip(resource string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.records[resource]
	if !ok {
		return false
	}
	return rec.ConsecutiveFailures >= MaxConsecutiveFailures
}

// RecordSuccess resets the consecutive-failure counter for resource.
func (h *HealthTracker) RecordSuccess(resource string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := h.recordFor(resource)
	rec.Success = true
	rec.Failure = false
	rec.ConsecutiveFailures = 0
	rec.LastSuccess = time.Now().UTC()
}

// RecordFailure increments the consecutive-failure counter for resource.
func (h *HealthTracker) RecordFailure(resource string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := h.recordFor(resource)
	rec.Failure = true
	rec.ConsecutiveFailures++
}

func (h *HealthTracker) recordFor(resource string) *HealthRecord {
	rec, ok := h.records[resource]
	if !ok {
		rec = &HealthRecord{}
		h.records[resource] = rec
	}
	return rec
}

// Snapshot returns a copy of the current health records, for reporting in
// run statistics.
func (h *HealthTracker) Snapshot() map[string]HealthRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]HealthRecord, len(h.records))
	for k, v := range h.records {
		out[k] = *v
	}
	return out
}
