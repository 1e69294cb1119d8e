// Package engine invokes the external RRA engine binary that actually
// creates and updates archive files on disk. The engine
// itself is out of scope for this module; this package only builds and
// runs its command-line argument vectors and classifies its result.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single create or update invocation, mirroring
// cmd/snellerd/peercmd.go's cmdTimeout for subprocess calls the daemon
// cannot afford to block on indefinitely.
const DefaultTimeout = 30 * time.Second

// Logger is the minimal logging surface engine needs; satisfied by
// *log.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Runner invokes the RRA engine binary. The zero value is not usable;
// construct with NewRunner.
type Runner struct {
	bin     string
	timeout time.Duration
	logger  Logger
}

// NewRunner constructs a Runner that execs bin (e.g. "rrdtool") for every
// create/update call. logger may be nil.
func NewRunner(bin string, logger Logger) *Runner {
	return &Runner{bin: bin, timeout: DefaultTimeout, logger: logger}
}

// WithTimeout returns a copy of r with a different per-invocation timeout.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	cp := *r
	cp.timeout = d
	return &cp
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// run execs the engine with argv, returning the engine's reported error
// string on failure. Modeled after
// cmd/snellerd/peercmd.go's exec.CommandContext + stdout/stderr capture +
// ExitError/DeadlineExceeded classification.
func (r *Runner) run(ctx context.Context, argv []string) error {
	id := uuid.New()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.bin, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		r.logf("engine[%s]: %v timed out (killed): %s", id, argv[:min(2, len(argv))], stderr.String())
		return fmt.Errorf("engine: command %v timed out: %s", argv[0], stderr.String())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.logf("engine[%s]: %v exited %d: %s", id, argv[:min(2, len(argv))], exitErr.ProcessState.ExitCode(), stderr.String())
		return fmt.Errorf("engine: %v exited with code %d: %s", argv[0], exitErr.ProcessState.ExitCode(), stderr.String())
	}

	r.logf("engine[%s]: failed to run %v: %s", id, argv[:min(2, len(argv))], err)
	return fmt.Errorf("engine: failed running %q: %w", argv[0], err)
}

// Create invokes the engine's create command: ["create", filename, "-s",
// stepSize, dsArgs..., rraArgs...].
func (r *Runner) Create(ctx context.Context, filename string, stepSize int64, dsArgs, rraArgs []string) error {
	argv := make([]string, 0, 4+len(dsArgs)+len(rraArgs))
	argv = append(argv, "create", filename, "-s", strconv.FormatInt(stepSize, 10))
	argv = append(argv, dsArgs...)
	argv = append(argv, rraArgs...)
	return r.run(ctx, argv)
}

// Update invokes the engine's update command: ["update", filename,
// line_1, ..., line_N].
func (r *Runner) Update(ctx context.Context, filename string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	argv := make([]string, 0, 2+len(lines))
	argv = append(argv, "update", filename)
	argv = append(argv, lines...)
	return r.run(ctx, argv)
}
