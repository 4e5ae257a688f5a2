// Package executor runs named checks across a bounded worker pool. Checks
// are independent: they share no mutable state, and a panic or timeout in
// one check is captured as that check's failure rather than aborting the run.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricedb-harness/internal/types"
)

// Result is what one check reports back.
type Result struct {
	Verdict  types.Verdict
	Probes   []types.ProbeResult
	Failures []string
}

// CheckResult is a finished check with its identity and timing.
type CheckResult struct {
	Name     string              `json:"name"`
	Verdict  types.Verdict       `json:"verdict"`
	Duration time.Duration       `json:"duration"`
	Probes   []types.ProbeResult `json:"probes,omitempty"`
	Failures []string            `json:"failures,omitempty"`
}

// Check is one named unit of verification.
type Check struct {
	Name    string
	Timeout time.Duration // zero means the runner default
	Run     func(ctx context.Context) Result
}

// Config holds execution configuration for the runner
type Config struct {
	MaxWorkers     int
	DefaultTimeout time.Duration
}

// Runner executes checks
type Runner struct {
	config Config
}

// NewRunner creates a new check runner
func NewRunner(config Config) *Runner {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 5
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 60 * time.Second
	}
	return &Runner{config: config}
}

// Run executes all checks and returns their results in completion order.
func (r *Runner) Run(ctx context.Context, checks []Check) []CheckResult {
	var results []CheckResult
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, r.config.MaxWorkers)

	for _, check := range checks {
		wg.Add(1)
		go func(check Check) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result := r.runOne(ctx, check)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(check)
	}

	wg.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, check Check) (out CheckResult) {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.config.DefaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out = CheckResult{Name: check.Name}

	defer func() {
		out.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			out.Verdict = types.VerdictFail
			out.Failures = append(out.Failures, fmt.Sprintf("panic: %v", rec))
		}
	}()

	result := check.Run(checkCtx)
	out.Verdict = result.Verdict
	out.Probes = result.Probes
	out.Failures = result.Failures
	return out
}
