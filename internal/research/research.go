// Package research implements the Research Backends: five adapters
// sharing one contract, Search(query, maxResults) -> []SearchResult, each
// declaring a horizon, a cost per query, and whether it can support inline
// citations. A backend never propagates an error to its caller: any
// failure is absorbed, logged as a BackendError, and surfaced as an empty
// result so the orchestrator's fan-out can proceed with whatever backends
// did succeed.
package research

import (
	"context"
	"fmt"

	"research-agent/internal/core"
)

// Backend is the uniform contract every research backend implements.
type Backend interface {
	Name() core.SearchBackend
	Horizon() core.Horizon
	CostPerQuery() float64
	SupportsCitations() bool

	// Search returns at most maxResults hits for query. Failures are
	// absorbed internally; a failing backend returns nil.
	Search(ctx context.Context, query string, maxResults int) []core.SearchResult

	// HealthCheck reports the backend's current operability without
	// performing a full search.
	HealthCheck(ctx context.Context) core.HealthStatus
}

// BackendError is the structured failure record logged whenever a backend
// absorbs an exception instead of propagating it.
type BackendError struct {
	Query  string
	Kind   string
	Detail string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("research backend error: query=%q kind=%s detail=%s", e.Query, e.Kind, e.Detail)
}

// TextGenerator is the minimal LLM contract the TRENDS backend depends on,
// satisfied by internal/llmclient's Client. Kept local so this package
// never imports the synthesis/rerank LLM wiring directly, mirroring
// internal/collectors.TextGenerator's decoupling.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AllSourcesFailed is the orchestrator's sole externally-visible failure
// mode: every configured backend failed, or too few succeeded to satisfy
// the configured minimum successful count.
type AllSourcesFailed struct {
	FailedBackends []core.SearchBackend
}

func (e *AllSourcesFailed) Error() string {
	return fmt.Sprintf("all research backends failed or did not meet the minimum successful count: %v", e.FailedBackends)
}
