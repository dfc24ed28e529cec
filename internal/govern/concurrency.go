package govern

import (
	"github.com/gammazero/workerpool"
)

// ConcurrencyCap enforces the global per-collector worker limit (default
// 4) on top of the per-host rate limiters. Submit never blocks the caller
// past queueing; StopWait drains in-flight work.
type ConcurrencyCap struct {
	pool *workerpool.WorkerPool
}

// NewConcurrencyCap creates a cap with the given maximum concurrent workers.
// size<=0 falls back to DefaultConcurrencyCap.
func NewConcurrencyCap(size int) *ConcurrencyCap {
	if size <= 0 {
		size = DefaultConcurrencyCap
	}
	return &ConcurrencyCap{pool: workerpool.New(size)}
}

// Submit queues fn to run once a worker slot is free.
func (c *ConcurrencyCap) Submit(fn func()) {
	c.pool.Submit(fn)
}

// Wait blocks until every submitted task has completed.
func (c *ConcurrencyCap) Wait() {
	c.pool.StopWait()
}
