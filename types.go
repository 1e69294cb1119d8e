// Package rrdcache implements a write-coalescing cache and asynchronous
// flusher for round-robin archive (RRA) time-series files. It sits behind
// a metrics collector host: sensor-reading plugins produce numeric samples
// at a fixed cadence, and this package batches them per destination file,
// auto-creates archive files on first use, and defers expensive file
// updates onto a single background worker.
//
// See the subpackages for the individual components: layout (archive
// creation arguments), rrdpath (path derivation), cache (the coalescing
// cache and flush worker), engine (RRA binary invocation), config (global
// configuration), and collector (the host-callback glue).
package rrdcache

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies how a data source's values should be interpreted by the
// RRA engine.
type Kind int

const (
	// Gauge values are stored as-is.
	Gauge Kind = iota
	// Counter values are monotonically increasing; the engine derives a
	// rate from successive samples.
	Counter
)

// String renders the textual form the RRA engine's create command expects.
func (k Kind) String() string {
	switch k {
	case Gauge:
		return "GAUGE"
	case Counter:
		return "COUNTER"
	default:
		return "UNKNOWN"
	}
}

// Bound is a data source's minimum or maximum value. An unset Bound renders
// as the engine's "unknown" sentinel ("U").
type Bound struct {
	Set   bool
	Value float64
}

// Unknown is the unset Bound, rendering as "U".
var Unknown = Bound{}

// Known constructs a set Bound.
func Known(v float64) Bound {
	return Bound{Set: true, Value: v}
}

// String renders the locale-independent decimal form the RRA engine
// expects, or "U" if unset.
func (b Bound) String() string {
	if !b.Set {
		return "U"
	}
	return strconv.FormatFloat(b.Value, 'f', -1, 64)
}

// DataSource describes one stream within an archive file: a name, a kind,
// and optional value bounds.
type DataSource struct {
	Name string
	Kind Kind
	Min  Bound
	Max  Bound
}

// Validate reports whether d is well-formed enough to plan a create
// command for: a non-empty name and a recognized Kind.
func (d DataSource) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("rrdcache: data source has empty name")
	}
	switch d.Kind {
	case Gauge, Counter:
	default:
		return fmt.Errorf("rrdcache: data source %q has unrecognized kind %d", d.Name, d.Kind)
	}
	return nil
}

// Identity is a sample's identity tuple: (host, plugin, plugin_instance,
// type, type_instance, schema). Every field is non-empty except
// PluginInstance and TypeInstance.
type Identity struct {
	Host           string
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
	Schema         []DataSource
}

// Validate checks the required non-empty fields and non-empty schema. It
// does not validate individual DataSource entries; callers that plan a
// create command should also call DataSource.Validate for each schema
// entry (see package layout).
func (id Identity) Validate() error {
	if id.Host == "" {
		return fmt.Errorf("rrdcache: identity has empty host")
	}
	if id.Plugin == "" {
		return fmt.Errorf("rrdcache: identity has empty plugin")
	}
	if id.Type == "" {
		return fmt.Errorf("rrdcache: identity has empty type")
	}
	if len(id.Schema) == 0 {
		return fmt.Errorf("rrdcache: identity %s/%s has empty schema", id.Host, id.Plugin)
	}
	return nil
}

// Sample is one reading: a list of values (one per schema entry, in
// order) taken at ValueTime (unix seconds).
type Sample struct {
	Values    []float64
	ValueTime int64
}

// FormatLine renders the RRA engine's "<unix_time>:<value>[:<value>...]"
// update line for one sample against the given schema. Counter values
// render as unsigned decimals, gauge values as locale-independent decimals,
// and NaN renders as "U" (the engine's unknown sentinel).
func FormatLine(schema []DataSource, s Sample) (string, error) {
	if len(s.Values) != len(schema) {
		return "", fmt.Errorf("rrdcache: sample has %d values, schema has %d data sources", len(s.Values), len(schema))
	}
	out := strconv.FormatInt(s.ValueTime, 10)
	for i, ds := range schema {
		out += ":" + formatValue(ds.Kind, s.Values[i])
	}
	return out, nil
}

func formatValue(k Kind, v float64) string {
	if math.IsNaN(v) {
		return "U"
	}
	switch k {
	case Counter:
		if v < 0 {
			// negative counters are nonsensical; render as unknown rather
			// than emit a value the engine would reject.
			return "U"
		}
		return strconv.FormatUint(uint64(v), 10)
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}
