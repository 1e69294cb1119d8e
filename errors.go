package rrdcache

import "errors"

// Sentinel errors surfaced across package boundaries, checked with
// errors.Is after being wrapped with additional context via fmt.Errorf's
// %w verb.
var (
	// ErrNonMonotonic is returned by cache.Cache.Insert when a sample's
	// ValueTime does not strictly exceed the entry's last accepted
	// ValueTime. The entry is left unmutated.
	ErrNonMonotonic = errors.New("rrdcache: non-monotonic sample")

	// ErrPathTooLong is returned by rrdpath.Derive when the canonical
	// path would exceed the implementation-defined buffer.
	ErrPathTooLong = errors.New("rrdcache: archive path exceeds buffer")

	// ErrPlanFailed is returned by layout.Plan when the step size or row
	// count is non-positive, or a schema entry has an unrecognized kind.
	ErrPlanFailed = errors.New("rrdcache: archive layout planning failed")

	// ErrClosed is returned by cache and collector operations invoked
	// after Shutdown has torn down the owning structure.
	ErrClosed = errors.New("rrdcache: cache is closed")
)
