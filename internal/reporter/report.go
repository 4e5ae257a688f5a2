package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pricedb-harness/internal/executor"
	"pricedb-harness/internal/types"
)

// Report is the aggregate outcome of one harness run
type Report struct {
	RunID           string                       `json:"run_id"`
	Timestamp       time.Time                    `json:"timestamp"`
	TotalChecks     int                          `json:"total_checks"`
	Passed          int                          `json:"passed"`
	Failed          int                          `json:"failed"`
	Inconclusive    int                          `json:"inconclusive"`
	Classifications map[types.Classification]int `json:"classifications"`
	HardFailure     bool                         `json:"hard_failure"`
	TriageNotes     string                       `json:"triage_notes,omitempty"`
	Results         []executor.CheckResult       `json:"results"`
}

// Config holds the configuration for reporting
type Config struct {
	OutputDir string
	Detailed  bool
}

// Reporter aggregates check results and writes the run report
type Reporter struct {
	config Config
}

// NewReporter creates a new reporter
func NewReporter(config Config) *Reporter {
	return &Reporter{config: config}
}

// Build aggregates check results into a report. The run is a hard failure if
// and only if at least one check failed or any probe classified as a leak;
// inconclusive outcomes are reported but never flip the verdict.
func (r *Reporter) Build(results []executor.CheckResult) Report {
	report := Report{
		RunID:           uuid.NewString(),
		Timestamp:       time.Now(),
		TotalChecks:     len(results),
		Classifications: make(map[types.Classification]int),
		Results:         results,
	}

	for _, result := range results {
		switch result.Verdict {
		case types.VerdictPass:
			report.Passed++
		case types.VerdictFail:
			report.Failed++
			report.HardFailure = true
		default:
			report.Inconclusive++
		}
		for _, p := range result.Probes {
			report.Classifications[p.Classification]++
			if p.Classification == types.LeakDetected {
				report.HardFailure = true
			}
		}
	}

	if !r.config.Detailed {
		report.Results = stripProbes(results)
	}
	return report
}

// stripProbes keeps only failing and reviewable probes in the written
// report; full probe lists stay available in detailed mode.
func stripProbes(results []executor.CheckResult) []executor.CheckResult {
	out := make([]executor.CheckResult, len(results))
	for i, result := range results {
		kept := result
		kept.Probes = nil
		for _, p := range result.Probes {
			if p.Classification == types.LeakDetected || p.Classification == types.Inconclusive {
				kept.Probes = append(kept.Probes, p)
			}
		}
		out[i] = kept
	}
	return out
}

// Write writes the report as JSON into the output directory.
func (r *Reporter) Write(report Report) (string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return "", err
	}

	reportPath := filepath.Join(r.config.OutputDir,
		fmt.Sprintf("report_%s.json", report.Timestamp.Format("20060102_150405")))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(reportPath, data, 0644); err != nil {
		return "", err
	}
	return reportPath, nil
}

// ReviewableProbes collects every probe that needs manual attention.
func ReviewableProbes(results []executor.CheckResult) []types.ProbeResult {
	var out []types.ProbeResult
	for _, result := range results {
		for _, p := range result.Probes {
			if p.Classification == types.LeakDetected || p.Classification == types.Inconclusive {
				out = append(out, p)
			}
		}
	}
	return out
}
