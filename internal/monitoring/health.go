// Package monitoring evaluates readiness probes for the permission engine's dependencies.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status encodes the outcome of a probe.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worst returns the more severe of two statuses.
func Worst(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Result is the outcome of one probe.
type Result struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Report aggregates every probe. Status is the worst status among Checks.
type Report struct {
	Status Status   `json:"status"`
	Checks []Result `json:"checks"`
}

// Ready reports whether the service can take traffic. Degraded dependencies still serve.
func (r Report) Ready() bool {
	return r.Status != StatusDown
}

// Check is a named probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) Result
}

// NewCheck constructs a check. A nil fn always reports down.
func NewCheck(name string, fn func(ctx context.Context) Result) Check {
	if fn == nil {
		fn = func(context.Context) Result {
			return Result{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// Checker runs the registered readiness probes.
type Checker struct {
	mu     sync.RWMutex
	checks []Check
}

// NewChecker returns a checker with the given probes registered.
func NewChecker(checks ...Check) *Checker {
	c := &Checker{}
	for _, check := range checks {
		c.Register(check)
	}
	return c
}

// Register appends a probe. Unnamed probes are ignored.
func (c *Checker) Register(check Check) {
	if check.Name == "" || check.Run == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
}

// Evaluate runs every probe concurrently and returns results in registration order.
func (c *Checker) Evaluate(ctx context.Context) Report {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.RLock()
	checks := append([]Check(nil), c.checks...)
	c.mu.RUnlock()

	results := make([]Result, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = runCheck(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusUp, Checks: results}
	for _, r := range results {
		report.Status = Worst(report.Status, r.Status)
	}
	return report
}

func runCheck(ctx context.Context, check Check) (result Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{Status: StatusDown, Details: fmt.Sprintf("probe panicked: %v", rec)}
		}
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		result.Component = check.Name
	}()
	return check.Run(ctx)
}

// ResultFromError converts a probe error into a result. Timeouts and cancellations are
// treated as degraded rather than down.
func ResultFromError(err error, duration time.Duration) Result {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return Result{Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return Result{Status: status, Details: err.Error(), Duration: duration}
}
