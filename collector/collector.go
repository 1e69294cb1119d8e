// Package collector wires the host-callback surface to the rest of the
// module: it derives archive paths, probes and creates archive files on
// first use, and feeds formatted samples into the coalescing cache.
// Config, cache, and the RRA engine handle are gathered into one owner
// struct created at init and passed by reference to every callback,
// following tenant/manager.go's pattern of one long-lived struct holding
// every collaborator a daemon needs.
package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tsbridge/rrdcache"
	"github.com/tsbridge/rrdcache/cache"
	"github.com/tsbridge/rrdcache/config"
	"github.com/tsbridge/rrdcache/engine"
	"github.com/tsbridge/rrdcache/layout"
	"github.com/tsbridge/rrdcache/rrdpath"
)

// Logger is the minimal logging surface Collector needs; satisfied by
// *log.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Collector implements the init/write/shutdown host callbacks; the config
// callback is config.Config.Set, applied before Init. The zero value is
// not usable; construct with Init.
type Collector struct {
	cfg    *config.Config
	runner *engine.Runner
	c      *cache.Cache
	logger Logger

	mu       sync.Mutex
	creating map[string]*sync.Once
}

// Init validates cfg (which must already have had Resolve called on
// it), creates the coalescing cache, and starts its flush worker.
// runner performs the actual RRA engine create/update calls; logger may
// be nil.
func Init(cfg *config.Config, runner *engine.Runner, logger Logger) (*Collector, error) {
	if cfg.StepSize <= 0 {
		return nil, fmt.Errorf("collector: init: StepSize not resolved (got %s)", cfg.StepSize)
	}
	if cfg.RRARows <= 0 {
		return nil, fmt.Errorf("collector: init: RRARows not resolved (got %d)", cfg.RRARows)
	}

	col := &Collector{
		cfg:      cfg,
		runner:   runner,
		logger:   logger,
		creating: make(map[string]*sync.Once),
	}
	col.c = cache.New(cache.Config{
		CacheTimeout:      cfg.CacheTimeout,
		CacheFlushTimeout: cfg.CacheFlushTimeout,
	}, runner, logger)
	return col, nil
}

func (col *Collector) logf(format string, args ...interface{}) {
	if col.logger != nil {
		col.logger.Printf(format, args...)
	}
}

// Write derives id's archive path, creates the archive file on first
// use, and inserts the formatted sample into the coalescing cache.
func (col *Collector) Write(id rrdcache.Identity, sample rrdcache.Sample) error {
	if err := id.Validate(); err != nil {
		return fmt.Errorf("collector: write: %w", err)
	}

	path, err := rrdpath.Derive(col.cfg.DataDir, id)
	if err != nil {
		return fmt.Errorf("collector: write: %w", err)
	}

	if err := col.ensureCreated(path, id.Schema); err != nil {
		return fmt.Errorf("collector: write: %w", err)
	}

	line, err := rrdcache.FormatLine(id.Schema, sample)
	if err != nil {
		return fmt.Errorf("collector: write: %w", err)
	}

	return col.c.Insert(path, line, sample.ValueTime)
}

// ensureCreated probes for path's existence and, on first use, plans
// and creates it. A per-path sync.Once (guarded by a short-lived map
// entry under mu) collapses concurrent producers racing on the same
// brand-new path into a single create call.
func (col *Collector) ensureCreated(path string, schema []rrdcache.DataSource) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("probing %s: %w", path, err)
	}

	col.mu.Lock()
	once, ok := col.creating[path]
	if !ok {
		once = &sync.Once{}
		col.creating[path] = once
	}
	col.mu.Unlock()

	var createErr error
	once.Do(func() {
		if _, err := os.Stat(path); err != nil {
			createErr = col.create(path, schema)
		}
	})

	col.mu.Lock()
	delete(col.creating, path)
	col.mu.Unlock()

	return createErr
}

func (col *Collector) create(path string, schema []rrdcache.DataSource) error {
	dsArgs, rraArgs, err := layout.Plan(schema, layout.Params{
		StepSize:  int64(col.cfg.StepSize.Seconds()),
		Heartbeat: int64(col.cfg.HeartBeat.Seconds()),
		RRARows:   col.cfg.RRARows,
		XFF:       col.cfg.XFF,
		Timespans: col.cfg.Timespans,
	})
	if err != nil {
		return fmt.Errorf("planning %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		col.logf("collector: creating directory for %s failed: %v", path, err)
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	if err := col.runner.Create(context.Background(), path, int64(col.cfg.StepSize.Seconds()), dsArgs, rraArgs); err != nil {
		col.logf("collector: create %s failed: %v", path, err)
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

// Shutdown sweeps every pending entry, signals the flush worker, and
// then waits for it to drain the queue and tear down. Waiting is this
// host's choice to join rather than fire-and-forget.
func (col *Collector) Shutdown() {
	col.c.Shutdown()
	col.c.Wait()
}

// Stats exposes the coalescing cache's operational counters.
type Stats struct {
	Inserts        int64
	Rejects        int64
	Enqueues       int64
	Flushes        int64
	EngineFailures int64
}

// Stats returns a point-in-time snapshot of the cache's counters.
func (col *Collector) Stats() Stats {
	return Stats{
		Inserts:        col.c.Inserts(),
		Rejects:        col.c.Rejects(),
		Enqueues:       col.c.Enqueues(),
		Flushes:        col.c.Flushes(),
		EngineFailures: col.c.EngineFailures(),
	}
}
