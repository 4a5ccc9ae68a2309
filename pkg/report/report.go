// Package report assembles the final RunReport of a pipeline run and persists
// its artifacts.
package report

import (
	"time"

	"github.com/dkoosis/verifyapi/pkg/contract"
	"github.com/dkoosis/verifyapi/pkg/extract"
	"github.com/dkoosis/verifyapi/pkg/harness"
	"github.com/dkoosis/verifyapi/pkg/results"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

// RunReport is the complete, immutable record of one run.
type RunReport struct {
	RunID     string     `json:"run_id"`
	CreatedAt time.Time  `json:"created_at"`
	Kind      suite.Kind `json:"kind"`
	Provider  string     `json:"provider,omitempty"`
	Model     string     `json:"model,omitempty"`

	Contract  ContractInfo            `json:"contract"`
	Suite     SuiteInfo               `json:"suite"`
	Execution ExecutionInfo           `json:"execution"`
	TestCases []results.TestCase      `json:"test_cases"`
	Counts    map[results.Outcome]int `json:"counts"`
	Status    results.Status          `json:"status"`
	Source    results.Source          `json:"source"`
	Warnings  []string                `json:"warnings,omitempty"`
}

// ContractInfo is the contract metadata carried into the report.
type ContractInfo struct {
	Path       string   `json:"path"`
	Title      string   `json:"title,omitempty"`
	Version    string   `json:"version,omitempty"`
	Spec       string   `json:"spec,omitempty"`
	Operations []string `json:"operations,omitempty"`
}

// SuiteInfo describes the generated suite.
type SuiteInfo struct {
	Path     string           `json:"path"`
	Strategy extract.Strategy `json:"extraction_strategy"`
	Lines    int              `json:"lines"`
}

// ExecutionInfo is the runner invocation and what it produced.
type ExecutionInfo struct {
	Command         []string  `json:"command"`
	ExitCode        int       `json:"exit_code"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	OutputDir       string    `json:"output_dir"`
	ReportPath      string    `json:"report_path"`
	ReportFormat    string    `json:"report_format"`
	Stdout          string    `json:"stdout"`
	Stderr          string    `json:"stderr"`
}

// Input gathers every stage output the report is built from.
type Input struct {
	RunID    string
	Provider string
	Model    string
	Contract *contract.Contract
	Suite    extract.Suite
	Outcome  harness.Outcome
	Result   results.Result
	// Warnings from stages before execution.
	Warnings []string
	Now      func() time.Time
}

// Aggregate builds the RunReport. Warnings are ordered by stage: the given
// ones first, then execution, then normalization.
func Aggregate(in Input) *RunReport {
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	r := &RunReport{
		RunID:     in.RunID,
		CreatedAt: now().UTC(),
		Kind:      in.Suite.Kind,
		Provider:  in.Provider,
		Model:     in.Model,
		Suite: SuiteInfo{
			Path:     in.Outcome.SuitePath,
			Strategy: in.Suite.Strategy,
			Lines:    countLines(in.Suite.Text),
		},
		Execution: ExecutionInfo{
			Command:         in.Outcome.Command,
			ExitCode:        in.Outcome.ExitCode,
			StartedAt:       in.Outcome.StartedAt,
			DurationSeconds: in.Outcome.Duration.Seconds(),
			OutputDir:       in.Outcome.OutputDir,
			ReportPath:      in.Outcome.ReportPath,
			ReportFormat:    in.Result.ReportFormat.String(),
			Stdout:          in.Outcome.Stdout,
			Stderr:          in.Outcome.Stderr,
		},
		TestCases: append([]results.TestCase{}, in.Result.Cases...),
		Status:    in.Result.Status,
		Source:    in.Result.Source,
	}
	if in.Contract != nil {
		info := in.Contract.Info()
		r.Contract = ContractInfo{Path: in.Contract.Path, Title: info.Title, Version: info.Version, Spec: info.Spec}
		if ops, err := in.Contract.Operations(); err == nil {
			for _, op := range ops {
				r.Contract.Operations = append(r.Contract.Operations, op.String())
			}
		}
	}

	r.Counts = make(map[results.Outcome]int, len(results.Outcomes))
	for _, o := range results.Outcomes {
		r.Counts[o] = 0
	}
	for o, n := range results.Count(r.TestCases) {
		r.Counts[o] = n
	}

	r.Warnings = append(r.Warnings, in.Warnings...)
	r.Warnings = append(r.Warnings, in.Outcome.Warnings...)
	r.Warnings = append(r.Warnings, in.Result.Warnings...)
	return r
}

// Passed reports whether the run is an unqualified success.
func (r *RunReport) Passed() bool {
	return r != nil && r.Status == results.StatusPassed
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '\n' {
			n++
		}
	}
	return n
}
