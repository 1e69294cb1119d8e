// Package layout implements the Archive Layout Planner: a
// pure function that produces the create-time data-source and
// round-robin-archive argument vectors for a new archive file, given a
// sample schema and the global archive configuration.
package layout

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tsbridge/rrdcache"
)

// DefaultTimespans is the built-in retention schedule used when no custom
// RRATimespan configuration is supplied: one hour, one day, one week, one
// (31-day) month, and one (366-day) year, all in seconds.
var DefaultTimespans = []int64{3600, 86400, 604800, 2678400, 31622400}

// consolidations is the fixed set of aggregation functions emitted per
// surviving timespan.
var consolidations = []string{"AVERAGE", "MIN", "MAX"}

// Params bundles the archive-wide settings a Plan call needs beyond the
// schema itself. All fields come from the global configuration; Plan never mutates them.
type Params struct {
	StepSize  int64
	Heartbeat int64
	RRARows   int64
	XFF       float64
	Timespans []int64 // nil/empty selects DefaultTimespans
}

// Plan produces the DS: and RRA: argument vectors for the RRA engine's
// create command. It fails before producing any output
// if StepSize or RRARows is non-positive, or if any schema entry has an
// unrecognized Kind.
func Plan(schema []rrdcache.DataSource, p Params) (dsArgs []string, rraArgs []string, err error) {
	if p.StepSize <= 0 {
		return nil, nil, fmt.Errorf("%w: step size %d must be positive", rrdcache.ErrPlanFailed, p.StepSize)
	}
	if p.RRARows <= 0 {
		return nil, nil, fmt.Errorf("%w: rra rows %d must be positive", rrdcache.ErrPlanFailed, p.RRARows)
	}
	if len(schema) == 0 {
		return nil, nil, fmt.Errorf("%w: empty schema", rrdcache.ErrPlanFailed)
	}

	dsArgs = make([]string, 0, len(schema))
	for _, ds := range schema {
		if err := ds.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: %s", rrdcache.ErrPlanFailed, err)
		}
		dsArgs = append(dsArgs, formatDS(ds, p.Heartbeat))
	}

	timespans := p.Timespans
	if len(timespans) == 0 {
		timespans = DefaultTimespans
	}

	rraArgs = make([]string, 0, len(timespans)*len(consolidations))
	first := true
	for _, s := range timespans {
		if s <= 0 {
			continue
		}
		if s/p.StepSize < p.RRARows {
			continue
		}
		var cdpLen int64
		if first {
			cdpLen = 1
			first = false
		} else {
			cdpLen = s / (p.RRARows * p.StepSize)
			if cdpLen < 1 {
				cdpLen = 1
			}
		}
		cdpNum := int64(math.Ceil(float64(s) / float64(cdpLen*p.StepSize)))
		for _, agg := range consolidations {
			rraArgs = append(rraArgs, formatRRA(agg, p.XFF, cdpLen, cdpNum))
		}
	}

	return dsArgs, rraArgs, nil
}

// formatDS renders one schema entry as "DS:<name>:<TYPE>:<heartbeat>:<min>:<max>".
func formatDS(ds rrdcache.DataSource, heartbeat int64) string {
	return fmt.Sprintf("DS:%s:%s:%d:%s:%s", ds.Name, ds.Kind, heartbeat, ds.Min, ds.Max)
}

// formatRRA renders one (timespan, aggregation) pair as
// "RRA:<agg>:<xff>:<cdp_len>:<cdp_num>", with xff rendered as %3.1f.
func formatRRA(agg string, xff float64, cdpLen, cdpNum int64) string {
	return fmt.Sprintf("RRA:%s:%s:%d:%d", agg, strconv.FormatFloat(xff, 'f', 1, 64), cdpLen, cdpNum)
}
