// Package harness persists an extracted suite and runs it with the suite
// kind's external runner, capturing everything the runner produces.
package harness

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dkoosis/verifyapi/pkg/extract"
	"github.com/dkoosis/verifyapi/pkg/stage"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

// Config is fixed for the lifetime of a Harness.
type Config struct {
	// WorkRoot is the parent of per-run suite directories. Empty uses the
	// system temp dir.
	WorkRoot string
	// OutputDir receives the runner's artifacts. It is replaced on every
	// Execute, so concurrent harnesses need distinct values.
	OutputDir string
	// Runner overrides the kind's default command. The first element is the
	// executable.
	Runner []string
	// KeywordResource is copied next to the suite under the kind's keyword
	// resource name.
	KeywordResource string
	// SupportFiles are copied next to the suite under their base names.
	SupportFiles []string
	Env          []string
	// WaitDelay bounds how long Execute waits for runner output after the
	// context is done.
	WaitDelay time.Duration
}

// Outcome is what one runner invocation produced. A non-zero ExitCode is a
// normal result.
type Outcome struct {
	Kind       suite.Kind
	ExitCode   int
	Stdout     string
	Stderr     string
	Command    []string
	SuiteDir   string
	SuitePath  string
	OutputDir  string
	ReportPath string
	StartedAt  time.Time
	Duration   time.Duration
	Warnings   []string
}

// Harness runs suites of one kind.
type Harness struct {
	def    suite.Definition
	cfg    Config
	logger *zap.Logger
}

func New(def suite.Definition, cfg Config, logger *zap.Logger) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 5 * time.Second
	}
	return &Harness{def: def, cfg: cfg, logger: logger}
}

// Execute writes s to a fresh directory and runs it. It fails with
// stage.ErrExecution only when the runner cannot be resolved or started;
// in that case nothing it created is left behind.
func (h *Harness) Execute(ctx context.Context, s extract.Suite) (Outcome, error) {
	if s.Kind != h.def.Kind {
		return Outcome{}, stage.Wrapf(stage.Execute, stage.ErrExecution,
			"harness runs %s suites, got %s", h.def.Kind, s.Kind)
	}
	out := Outcome{Kind: s.Kind}

	suiteDir, err := h.writeSuite(s.Text)
	if err != nil {
		return Outcome{}, stage.Wrap(stage.Execute, stage.ErrExecution, err)
	}
	out.SuiteDir = suiteDir
	out.SuitePath = filepath.Join(suiteDir, h.def.FileName)
	out.Warnings = h.copySupport(suiteDir)

	outputDir := h.cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(suiteDir, "results")
	}
	// The runner starts inside the suite dir, so every path it gets is absolute.
	if abs, err := filepath.Abs(outputDir); err == nil {
		outputDir = abs
	}
	abandon := func(err error) (Outcome, error) {
		if rmErr := os.RemoveAll(suiteDir); rmErr != nil {
			h.logger.Warn("remove suite dir", zap.String("dir", suiteDir), zap.Error(rmErr))
		}
		if rmErr := os.RemoveAll(outputDir); rmErr != nil {
			h.logger.Warn("remove output dir", zap.String("dir", outputDir), zap.Error(rmErr))
		}
		return Outcome{}, stage.Wrap(stage.Execute, stage.ErrExecution, err)
	}
	if err := resetDir(outputDir); err != nil {
		return abandon(err)
	}
	out.OutputDir = outputDir
	out.ReportPath = h.def.ReportPath(outputDir)

	runner := h.cfg.Runner
	if len(runner) == 0 {
		runner = h.def.Runner
	}
	exe, err := exec.LookPath(runner[0])
	if err != nil {
		return abandon(errors.Wrapf(err, "resolve runner %q", runner[0]))
	}
	args := h.def.Args(runner, out.SuitePath, outputDir)
	out.Command = append([]string{exe}, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = suiteDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), h.cfg.Env...)
	cmd.WaitDelay = h.cfg.WaitDelay

	h.logger.Debug("running suite", zap.String("kind", string(s.Kind)), zap.Strings("command", out.Command))
	out.StartedAt = time.Now()
	if err := cmd.Start(); err != nil {
		return abandon(errors.Wrapf(err, "start runner %s", exe))
	}
	err = cmd.Wait()
	out.Duration = time.Since(out.StartedAt)
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			out.ExitCode = -1
			out.Warnings = append(out.Warnings, "runner wait failed: "+err.Error())
			h.logger.Warn("runner wait failed", zap.Error(err))
		} else {
			// Non-zero exit means failing tests, not a broken pipeline.
			out.ExitCode = exitErr.ExitCode()
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		msg := "runner terminated: " + ctxErr.Error()
		out.Warnings = append(out.Warnings, msg)
		h.logger.Warn(msg, zap.Duration("elapsed", out.Duration))
	}

	h.logger.Debug("runner finished", zap.Int("exit_code", out.ExitCode),
		zap.Duration("duration", out.Duration), zap.Int("stdout_len", len(out.Stdout)))
	return out, nil
}

func (h *Harness) writeSuite(text string) (string, error) {
	root := h.cfg.WorkRoot
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", errors.Wrap(err, "create work root")
		}
	}
	dir, err := os.MkdirTemp(root, "verifyapi-"+string(h.def.Kind)+"-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return "", errors.Wrap(err, "create suite dir")
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, h.def.FileName), []byte(text), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", errors.Wrap(err, "write suite")
	}
	return dir, nil
}

// copySupport copies support resources next to the suite. Failures are
// returned as warnings; the runner may still partly succeed without them.
func (h *Harness) copySupport(dir string) []string {
	type item struct{ src, name string }
	var items []item
	if h.def.KeywordResource != "" && h.cfg.KeywordResource != "" {
		items = append(items, item{h.cfg.KeywordResource, h.def.KeywordResource})
	}
	for _, f := range h.cfg.SupportFiles {
		items = append(items, item{f, filepath.Base(f)})
	}

	var warnings []string
	for _, it := range items {
		if err := copyFile(it.src, filepath.Join(dir, it.name)); err != nil {
			h.logger.Warn("support resource not copied", zap.String("source", it.src), zap.Error(err))
			warnings = append(warnings, "support resource not copied: "+err.Error())
		}
	}
	return warnings
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copy %s", src)
	}
	return out.Close()
}

// resetDir replaces dir with an empty directory.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "clear output dir %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", dir)
	}
	return nil
}
