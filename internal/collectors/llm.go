package collectors

import "context"

// TextGenerator is the minimal LLM contract the Trends and Feed-discovery
// collectors depend on, satisfied by internal/llmclient's Client. Kept
// local (rather than importing llmclient directly) so collectors never
// depend on the synthesis/rerank LLM wiring.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
