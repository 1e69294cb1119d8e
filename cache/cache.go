// Package cache implements the coalescing cache and flush worker: a
// thread-safe keyed store of pending per-archive batches that
// guarantees monotonic per-key timestamps and hands batches off to a
// single background worker for disk update, and that ages out idle
// entries so memory stays bounded between flushes.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/google/uuid"

	"github.com/tsbridge/rrdcache"
)

// now is swappable in tests, mirroring catrate/limiter.go's timeNow var.
var now = time.Now

type state int

const (
	stateIdle state = iota
	stateQueued
)

// entry is one pending batch. All fields are mutated only while the
// owning Cache's lock is held.
type entry struct {
	values          []string
	firstValueTime  int64
	lastValueTime   int64
	state           state
	idleSince       int64 // unix seconds; set whenever values becomes empty
}

// Config is the subset of the global archive configuration the cache
// needs. The derived invariant (cache_timeout < 2 forces both to zero)
// is enforced by package config, not here — Cache trusts whatever it is
// given.
type Config struct {
	CacheTimeout      time.Duration
	CacheFlushTimeout time.Duration
}

// Flusher is the disk-update half of the RRA engine.
// *engine.Runner satisfies this.
type Flusher interface {
	Update(ctx context.Context, filename string, lines []string) error
}

// Logger is the minimal logging surface Cache needs; satisfied by
// *log.Logger, matching tenant/dcache.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Cache is a thread-safe keyed store of pending batches with a single
// background flush worker. The zero value is not usable; construct with
// New.
//
// Locking invariant: Cache exposes a single lock (mu) guarding entries,
// flushLast, and closed. The queue has its own, separate lock. Whenever
// both must be held, mu is acquired first and released last —
// sweepLocked, called from Insert and Shutdown, calls queue.push while
// still holding mu, and the worker releases mu before ever touching the
// queue. No code path acquires the queue lock and then blocks waiting
// for mu.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	cfg     Config
	flusher Flusher
	logger  Logger
	q       *queue
	wg      sync.WaitGroup

	flushLast int64 // unix seconds; guarded by mu
	closed    bool  // guarded by mu; set true only by the worker's teardown

	inserts, rejects, enqueues, flushes, engineFailures int64
}

func (c *Cache) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// New constructs a Cache and starts its single background flush worker.
// flusher performs the actual disk update; logger may be nil.
func New(cfg Config, flusher Flusher, logger Logger) *Cache {
	c := &Cache{
		entries:   make(map[string]*entry),
		cfg:       cfg,
		flusher:   flusher,
		logger:    logger,
		q:         newQueue(),
		flushLast: now().Unix(),
	}
	c.wg.Add(1)
	go c.worker()
	return c
}

// Insert appends one formatted sample line for path, ordered by
// valueTime, and triggers a handoff to the flush worker once the entry's
// span reaches cfg.CacheTimeout. It acquires the cache lock for its
// entire duration.
//
// Insert returns rrdcache.ErrNonMonotonic, without mutating the entry, if
// valueTime does not strictly exceed the entry's current
// last_value_time. It returns rrdcache.ErrClosed if Shutdown has already
// torn the cache down.
func (c *Cache) Insert(path, line string, valueTime int64) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return rrdcache.ErrClosed
	}

	e, ok := c.entries[path]
	if !ok {
		e = &entry{state: stateIdle, idleSince: now().Unix()}
		c.entries[path] = e
	}

	if ok && valueTime <= e.lastValueTime {
		c.mu.Unlock()
		atomic.AddInt64(&c.rejects, 1)
		c.logf("cache: rejecting non-monotonic sample for %s: time=%d last=%d", path, valueTime, e.lastValueTime)
		return fmt.Errorf("%w: %s: time=%d last=%d", rrdcache.ErrNonMonotonic, path, valueTime, e.lastValueTime)
	}

	e.values = append(e.values, line)
	if len(e.values) == 1 {
		e.firstValueTime = valueTime
	}
	e.lastValueTime = valueTime
	atomic.AddInt64(&c.inserts, 1)

	cacheTimeoutSecs := int64(c.cfg.CacheTimeout / time.Second)
	if e.state == stateIdle && e.lastValueTime-e.firstValueTime >= cacheTimeoutSecs {
		if c.q.push(path) {
			e.state = stateQueued
			atomic.AddInt64(&c.enqueues, 1)
		}
		// else: allocation-equivalent enqueue failure; entry stays idle
		// and will be retried on the next insert for this path.
	}

	if c.cfg.CacheTimeout > 0 {
		flushTimeoutSecs := int64(c.cfg.CacheFlushTimeout / time.Second)
		if now().Unix()-c.flushLast > flushTimeoutSecs {
			c.sweepLocked(flushTimeoutSecs)
		}
	}

	c.mu.Unlock()
	return nil
}

// sweepLocked implements the cache's periodic and shutdown aging sweep.
// Callers must already hold mu. deadlineSeconds == -1 is the shutdown
// sweep: it forces every non-queued entry to be either enqueued (if
// non-empty) or removed (if idle and empty).
func (c *Cache) sweepLocked(deadlineSeconds int64) {
	nowUnix := now().Unix()
	var remove []string

	for path, e := range c.entries {
		if e.state == stateQueued {
			continue
		}
		if len(e.values) > 0 {
			if nowUnix-e.firstValueTime < deadlineSeconds {
				continue
			}
			if c.q.push(path) {
				e.state = stateQueued
				atomic.AddInt64(&c.enqueues, 1)
			}
			// else: stays idle, retried on a later insert or sweep.
			continue
		}
		// idle and empty
		if nowUnix-e.idleSince < deadlineSeconds {
			continue
		}
		remove = append(remove, path)
	}

	for _, path := range remove {
		delete(c.entries, path)
	}
	c.flushLast = nowUnix
}

// Shutdown sweeps with deadline -1 (forcing every non-empty entry to be
// enqueued) and then signals the flush worker to drain the queue exactly
// once more and exit. Shutdown does not wait for the worker; call Wait
// afterward to join it.
func (c *Cache) Shutdown() {
	c.mu.Lock()
	c.sweepLocked(-1)
	c.mu.Unlock()
	c.q.closeForShutdown()
}

// Wait blocks until the flush worker has drained the queue and torn down
// the cache structure. Safe to call concurrently with, or after,
// Shutdown; it does not itself initiate shutdown.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Len reports the number of archive paths currently tracked (queued or
// idle, empty or not). Racy by nature, like tenant/dcache.Cache.LiveHits;
// intended for telemetry and tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Inserts, Rejects, Enqueues, Flushes, and EngineFailures are
// atomically-maintained counters, mirroring tenant/dcache.Cache's
// Hits/Misses/Failures accessors.
func (c *Cache) Inserts() int64        { return atomic.LoadInt64(&c.inserts) }
func (c *Cache) Rejects() int64        { return atomic.LoadInt64(&c.rejects) }
func (c *Cache) Enqueues() int64       { return atomic.LoadInt64(&c.enqueues) }
func (c *Cache) Flushes() int64        { return atomic.LoadInt64(&c.flushes) }
func (c *Cache) EngineFailures() int64 { return atomic.LoadInt64(&c.engineFailures) }

// batchDigest fingerprints a handed-off batch for log correlation,
// grounded on fsenv.go's use of blake2b to fingerprint accumulated state.
func batchDigest(values []string) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, v := range values {
		h.Write([]byte(v))
		h.Write([]byte{'\n'})
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func newCorrelationID() uuid.UUID {
	return uuid.New()
}
