package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single check unless the probe sets its own.
const DefaultTimeout = 10 * time.Second

// CheckFunc is a function that performs a health check.
// It returns nil if the check passes, or an error if it fails.
type CheckFunc func(ctx context.Context) error

// Probe represents a single connectivity check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // A failure makes Report return an error.
	Timeout  time.Duration
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes the probes in order and returns their results.
// Each check gets its own timeout so one hanging upstream does not stall the rest.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	for i, p := range probes {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		start := time.Now()

		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Check(checkCtx)
		cancel()

		results[i] = Result{
			Probe:    p,
			Error:    err,
			Duration: time.Since(start),
		}
	}

	return results
}

// Report writes one line per result to w, logs failures, and returns the joined
// errors of the critical probes that failed.
func Report(w io.Writer, results []Result) error {
	var criticalErrors []error

	for _, r := range results {
		status := "PASS"
		switch {
		case r.Error != nil && r.Probe.Critical:
			status = "FAIL"
		case r.Error != nil:
			status = "WARN"
		}

		line := fmt.Sprintf("[%s] %-16s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))
		if r.Error != nil {
			line += ": " + r.Error.Error()
			slog.Warn("Probe failed", "probe", r.Probe.Name, "critical", r.Probe.Critical, "error", r.Error)
			if r.Probe.Critical {
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		}
		fmt.Fprintln(w, line)
	}

	return errors.Join(criticalErrors...)
}
