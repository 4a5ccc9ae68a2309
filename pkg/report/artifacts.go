package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Artifact file names inside a run's output directory.
const (
	PromptFile       = "prompt.txt"
	ResponseFile     = "response.txt"
	ExecutionLogFile = "execution.log"
	ReportFile       = "report.json"
	suiteFilePrefix  = "suite"
)

// Artifacts are the texts persisted alongside the runner's own output.
type Artifacts struct {
	Prompt    string
	Response  string
	SuiteText string
	// SuiteExt is the suite's file extension including the dot.
	SuiteExt string
}

// SuiteFileName is the name the suite copy is stored under.
func SuiteFileName(ext string) string {
	return suiteFilePrefix + ext
}

// WriteInputs persists the prompt and raw response. It is used on its own
// when a run stops before execution.
func WriteInputs(dir string, a Artifacts) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", dir)
	}
	files := map[string]string{PromptFile: a.Prompt, ResponseFile: a.Response}
	for _, name := range []string{PromptFile, ResponseFile} {
		if files[name] == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(files[name]), 0o644); err != nil {
			return errors.Wrapf(err, "write %s", name)
		}
	}
	return nil
}

// WriteArtifacts persists every artifact of a completed run into dir and
// returns the paths written.
func WriteArtifacts(dir string, r *RunReport, a Artifacts) ([]string, error) {
	if err := WriteInputs(dir, a); err != nil {
		return nil, err
	}
	var written []string
	for _, name := range []string{PromptFile, ResponseFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			written = append(written, filepath.Join(dir, name))
		}
	}

	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", name)
		}
		written = append(written, path)
		return nil
	}

	if a.SuiteText != "" {
		if err := write(SuiteFileName(a.SuiteExt), []byte(a.SuiteText)); err != nil {
			return written, err
		}
	}
	if err := write(ExecutionLogFile, []byte(ExecutionLog(r))); err != nil {
		return written, err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return written, errors.Wrap(err, "marshal report")
	}
	if err := write(ReportFile, append(data, '\n')); err != nil {
		return written, err
	}
	return written, nil
}

// ExecutionLog is the plain-text log of the runner invocation.
func ExecutionLog(r *RunReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run: %s\n", r.RunID)
	fmt.Fprintf(&sb, "command: %s\n", strings.Join(r.Execution.Command, " "))
	fmt.Fprintf(&sb, "started: %s\n", r.Execution.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&sb, "duration: %.3fs\n", r.Execution.DurationSeconds)
	fmt.Fprintf(&sb, "exit code: %d\n", r.Execution.ExitCode)
	sb.WriteString("\n--- stdout ---\n")
	sb.WriteString(r.Execution.Stdout)
	if !strings.HasSuffix(r.Execution.Stdout, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("--- stderr ---\n")
	sb.WriteString(r.Execution.Stderr)
	if r.Execution.Stderr != "" && !strings.HasSuffix(r.Execution.Stderr, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}

// Load reads a report.json back.
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read report")
	}
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &r, nil
}

// Cleanup removes the persisted suite directory. Failures are logged, never
// returned.
func Cleanup(suiteDir string, logger *zap.Logger) {
	if suiteDir == "" {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.RemoveAll(suiteDir); err != nil {
		logger.Warn("suite cleanup failed", zap.String("dir", suiteDir), zap.Error(err))
		return
	}
	logger.Debug("removed suite dir", zap.String("dir", suiteDir))
}
