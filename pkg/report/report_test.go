package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkoosis/verifyapi/pkg/contract"
	"github.com/dkoosis/verifyapi/pkg/extract"
	"github.com/dkoosis/verifyapi/pkg/harness"
	"github.com/dkoosis/verifyapi/pkg/results"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

const pingJSON = `{"openapi":"3.0.0","info":{"title":"Ping","version":"1.2"},` +
	`"paths":{"/ping":{"get":{"responses":{"200":{"description":"ok"}}}}}}`

func sampleInput(t *testing.T) Input {
	t.Helper()
	c, err := contract.Parse("ping.json", []byte(pingJSON))
	if err != nil {
		t.Fatal(err)
	}
	dur := 0.25
	return Input{
		RunID:    "run-1",
		Provider: "replay",
		Contract: c,
		Suite:    extract.Suite{Kind: suite.Pytest, Text: "def test_ping():\n    pass\n", Strategy: extract.StrategyPrimaryFence},
		Outcome: harness.Outcome{
			Kind:      suite.Pytest,
			ExitCode:  0,
			Stdout:    "test_ping PASSED",
			Command:   []string{"/usr/bin/python3", "-m", "pytest"},
			SuitePath: "/tmp/x/test_generated_api.py",
			Duration:  1500 * time.Millisecond,
			Warnings:  []string{"support resource not copied: x"},
		},
		Result: results.Result{
			Cases:    []results.TestCase{{ID: "test_ping", Outcome: results.Passed, Duration: &dur}},
			Status:   results.StatusPassed,
			Source:   results.SourceStructured,
			Warnings: []string{"normalize warning"},
		},
		Warnings: []string{"keyword documentation unavailable"},
		Now:      func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func TestAggregate(t *testing.T) {
	r := Aggregate(sampleInput(t))

	if r.Status != results.StatusPassed || !r.Passed() {
		t.Errorf("status = %s, want passed", r.Status)
	}
	if r.Contract.Title != "Ping" || r.Contract.Version != "1.2" {
		t.Errorf("contract info = %+v", r.Contract)
	}
	if len(r.Contract.Operations) != 1 || r.Contract.Operations[0] != "GET /ping" {
		t.Errorf("operations = %v", r.Contract.Operations)
	}
	if r.Counts[results.Passed] != 1 || r.Counts[results.Failed] != 0 {
		t.Errorf("counts = %v", r.Counts)
	}
	if _, ok := r.Counts[results.Unknown]; !ok {
		t.Error("every outcome must have a count entry")
	}
	if r.Suite.Lines != 2 {
		t.Errorf("suite lines = %d, want 2", r.Suite.Lines)
	}
	if r.Execution.DurationSeconds != 1.5 {
		t.Errorf("duration = %v", r.Execution.DurationSeconds)
	}
	want := []string{"keyword documentation unavailable", "support resource not copied: x", "normalize warning"}
	if strings.Join(r.Warnings, "|") != strings.Join(want, "|") {
		t.Errorf("warnings = %v, want %v", r.Warnings, want)
	}
	if !r.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("created = %v", r.CreatedAt)
	}
}

func TestAggregate_CopiesCases(t *testing.T) {
	in := sampleInput(t)
	r := Aggregate(in)
	in.Result.Cases[0].ID = "mutated"
	if r.TestCases[0].ID != "test_ping" {
		t.Error("report must not alias the normalizer's slice")
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := Aggregate(sampleInput(t))
	written, err := WriteArtifacts(dir, r, Artifacts{
		Prompt:    "the prompt",
		Response:  "```python\nx\n```",
		SuiteText: "x\n",
		SuiteExt:  ".py",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{PromptFile, ResponseFile, "suite.py", ExecutionLogFile, ReportFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
	if len(written) != 5 {
		t.Errorf("written = %v", written)
	}

	back, err := Load(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatal(err)
	}
	if back.RunID != "run-1" || back.Status != results.StatusPassed || len(back.TestCases) != 1 {
		t.Errorf("reloaded report = %+v", back)
	}

	log, _ := os.ReadFile(filepath.Join(dir, ExecutionLogFile))
	if !strings.Contains(string(log), "exit code: 0") || !strings.Contains(string(log), "test_ping PASSED") {
		t.Errorf("execution log:\n%s", log)
	}
}

func TestWriteInputs_SkipsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := WriteInputs(dir, Artifacts{Prompt: "p"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, ResponseFile)); !os.IsNotExist(err) {
		t.Error("empty response must not be written")
	}
}

func TestCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "suite")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	Cleanup(dir, nil)
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("suite dir not removed")
	}
	Cleanup("", nil) // no-op
}
