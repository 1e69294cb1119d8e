package cache

import (
	"context"
	"sync/atomic"
)

// worker is the single flush worker goroutine. There is exactly one per
// Cache, a deliberate narrowing of tenant/dcache's multi-worker pool
// (worker.go's fetcher goroutines): the handoff invariant ("at most one
// outstanding flush per path") only needs one consumer to hold, and a
// single worker makes the queued -> idle transition race-free without
// extra bookkeeping.
func (c *Cache) worker() {
	defer c.wg.Done()
	for {
		path, ok := c.q.popWait()
		if !ok {
			c.teardown()
			return
		}
		c.flushOne(path)
	}
}

// flushOne captures the entry's pending batch under the cache lock,
// releases the lock, and performs the disk update entirely outside any
// lock.
func (c *Cache) flushOne(path string) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		// Removed between enqueue and handoff; nothing to do. Cannot
		// happen via sweepLocked (it skips queued entries) but is cheap
		// to guard against.
		c.mu.Unlock()
		return
	}
	lines := e.values
	e.values = nil
	e.state = stateIdle
	e.idleSince = now().Unix()
	c.mu.Unlock()

	id := newCorrelationID()
	digest := batchDigest(lines)

	var err error
	if c.flusher != nil {
		err = c.flusher.Update(context.Background(), path, lines)
	}

	c.mu.Lock()
	if err != nil {
		atomic.AddInt64(&c.engineFailures, 1)
		c.logf("cache[%s]: flush of %s failed (batch %x, %d lines): %v", id, path, digest, len(lines), err)
		// Samples are dropped on a failed flush: re-queuing the same lines could blow past
		// cache_timeout on a permanently broken path. The entry itself
		// survives so future inserts still coalesce normally.
	} else {
		atomic.AddInt64(&c.flushes, 1)
		c.logf("cache[%s]: flushed %s (batch %x, %d lines)", id, path, digest, len(lines))
	}
	c.mu.Unlock()
}

// teardown runs once, after popWait reports the queue is empty and
// shutting down, tearing down the cache structure.
func (c *Cache) teardown() {
	c.mu.Lock()
	c.closed = true
	c.entries = nil
	c.mu.Unlock()
}
