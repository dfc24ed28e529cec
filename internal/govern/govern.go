// Package govern is the Rate Limiter / Host Governor: per-host token
// buckets, a process-wide per-collector concurrency cap, and a timeout
// envelope that abandons a call and returns a zero value rather than
// propagating an error on deadline elapse. The envelope takes no token
// from any bucket itself.
package govern

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"research-agent/internal/logger"
)

// Default per-host rates, in requests per second.
const (
	DefaultWebRPS         = 2.0
	DefaultRedditRPS      = 1.0
	DefaultAutocompleteRPS = 10.0

	// DefaultFeedDiscoveryTimeout and DefaultLLMTimeout are the timeout
	// envelope's hard deadlines.
	DefaultFeedDiscoveryTimeout = 10 * time.Second
	DefaultLLMTimeout           = 60 * time.Second

	// DefaultConcurrencyCap is the global per-collector worker cap.
	DefaultConcurrencyCap = 4
)

// Governor owns one token bucket per host (keyed by a caller-supplied
// class name, e.g. "web", "reddit", "autocomplete") and is safe for
// concurrent use across every collector goroutine in a run.
type Governor struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rates    map[string]rate.Limit
}

// New constructs a Governor pre-seeded with this package's default per-class
// rates. Custom classes registered via SetRate override or add to these.
func New() *Governor {
	g := &Governor{
		limiters: make(map[string]*rate.Limiter),
		rates: map[string]rate.Limit{
			"web":          rate.Limit(DefaultWebRPS),
			"reddit":       rate.Limit(DefaultRedditRPS),
			"autocomplete": rate.Limit(DefaultAutocompleteRPS),
		},
	}
	return g
}

// SetRate configures (or overrides) the requests-per-second rate for a
// bucket class. Safe to call before the class's first Acquire.
func (g *Governor) SetRate(class string, rps float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rates[class] = rate.Limit(rps)
	delete(g.limiters, normalizeClass(class)) // force re-creation with the new rate
}

func normalizeClass(class string) string {
	return strings.ToLower(strings.TrimSpace(class))
}

func (g *Governor) limiterFor(class string) *rate.Limiter {
	class = normalizeClass(class)
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.limiters[class]; ok {
		return l
	}
	limit, ok := g.rates[class]
	if !ok {
		limit = rate.Limit(DefaultWebRPS)
	}
	l := rate.NewLimiter(limit, 1)
	g.limiters[class] = l
	return l
}

// Acquire blocks cooperatively (no spin) until a token for the given
// host class is available, or ctx is cancelled first.
func (g *Governor) Acquire(ctx context.Context, class string) error {
	return g.limiterFor(class).Wait(ctx)
}

// WithTimeout wraps fn in the timeout envelope: if fn does not complete
// within timeout, the call is abandoned and zero, false is returned
// instead of an error (an error from fn also yields zero, false).
// WithTimeout does not charge any bucket; class only labels the log
// lines. A caller that Acquired a token before the call has paid for the
// attempt whether or not it completes.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, class string, fn func(ctx context.Context) (T, error)) (T, bool) {
	var zero T

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(cctx)
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			logger.Warn("timed call returned error", "class", class, "error", r.err.Error())
			return zero, false
		}
		return r.val, true
	case <-cctx.Done():
		logger.Warn("timed call abandoned on deadline", "class", class, "timeout_ms", timeout.Milliseconds())
		return zero, false
	}
}
