package govern

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernor_AcquireRespectsContextCancellation(t *testing.T) {
	g := New()
	g.SetRate("web", 0.001) // effectively one token ever

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, g.Acquire(context.Background(), "web")) // consume the initial token
	err := g.Acquire(ctx, "web")
	assert.Error(t, err)
}

func TestGovernor_UnknownClassFallsBackToWebRate(t *testing.T) {
	g := New()
	err := g.Acquire(context.Background(), "some-unregistered-class")
	assert.NoError(t, err)
}

func TestWithTimeout_AbandonsSlowCallAndReturnsZero(t *testing.T) {
	ctx := context.Background()
	val, ok := WithTimeout(ctx, 10*time.Millisecond, "llm", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "too late", ctx.Err()
	})
	assert.False(t, ok)
	assert.Equal(t, "", val)
}

func TestWithTimeout_ReturnsValueOnFastSuccess(t *testing.T) {
	ctx := context.Background()
	val, ok := WithTimeout(ctx, time.Second, "llm", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	assert.True(t, ok)
	assert.Equal(t, 42, val)
}

func TestWithTimeout_ErrorAlsoReturnsZero(t *testing.T) {
	ctx := context.Background()
	val, ok := WithTimeout(ctx, time.Second, "web", func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.False(t, ok)
	assert.Equal(t, 0, val)
}

func TestConcurrencyCap_LimitsInFlightWorkers(t *testing.T) {
	pool := NewConcurrencyCap(2)
	var running, maxSeen int32
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}

	incr := func(delta int32) {
		<-mu
		running += delta
		if running > maxSeen {
			maxSeen = running
		}
		mu <- struct{}{}
	}

	for i := 0; i < 10; i++ {
		pool.Submit(func() {
			incr(1)
			time.Sleep(5 * time.Millisecond)
			incr(-1)
		})
	}
	pool.Wait()

	assert.LessOrEqual(t, maxSeen, int32(2))
}
