package harness

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/dkoosis/verifyapi/pkg/extract"
	"github.com/dkoosis/verifyapi/pkg/stage"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner writes an executable shell script standing in for pytest/robot.
func fakeRunner(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake runners are shell scripts")
	}
	path := filepath.Join(t.TempDir(), "runner.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func pySuite(text string) extract.Suite {
	return extract.Suite{Kind: suite.Pytest, Text: text, Strategy: extract.StrategyRaw}
}

func TestExecute_CapturesOutputAndExitCode(t *testing.T) {
	runner := fakeRunner(t, `echo "collected 1 item"
echo "boom" >&2
for a in "$@"; do last="$a"; done
cat "$last"
exit 3
`)
	root := t.TempDir()
	h := New(suite.MustLookup(suite.Pytest), Config{
		WorkRoot:  filepath.Join(root, "work"),
		OutputDir: filepath.Join(root, "out"),
		Runner:    []string{runner},
	}, zaptest.NewLogger(t))

	out, err := h.Execute(context.Background(), pySuite("def test_x():\n    assert True"))
	require.NoError(t, err, "non-zero exit is not a pipeline error")

	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, out.Stdout, "collected 1 item")
	assert.Contains(t, out.Stdout, "def test_x():", "suite path is the last argument")
	assert.Equal(t, "boom\n", out.Stderr)
	assert.Equal(t, filepath.Join(root, "out", ".report.json"), out.ReportPath)
	assert.True(t, strings.HasPrefix(out.SuiteDir, filepath.Join(root, "work")))

	data, err := os.ReadFile(out.SuitePath)
	require.NoError(t, err)
	assert.Equal(t, "def test_x():\n    assert True\n", string(data))
}

func TestExecute_PassesReportFlag(t *testing.T) {
	runner := fakeRunner(t, `for a in "$@"; do
  case "$a" in --json-report-file=*) f="${a#--json-report-file=}";; esac
done
echo '{"exitcode":0,"tests":[]}' > "$f"
`)
	out := filepath.Join(t.TempDir(), "out")
	h := New(suite.MustLookup(suite.Pytest), Config{OutputDir: out, Runner: []string{runner}}, nil)

	res, err := h.Execute(context.Background(), pySuite("x = 1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(res.SuiteDir) })

	assert.Equal(t, 0, res.ExitCode)
	assert.FileExists(t, res.ReportPath)
}

func TestExecute_ReplacesOutputDir(t *testing.T) {
	runner := fakeRunner(t, "exit 0\n")
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(out, 0o755))
	stale := filepath.Join(out, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	h := New(suite.MustLookup(suite.Pytest), Config{WorkRoot: t.TempDir(), OutputDir: out, Runner: []string{runner}}, nil)
	_, err := h.Execute(context.Background(), pySuite("x = 1"))
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.DirExists(t, out)
}

func TestExecute_RunnerMissing(t *testing.T) {
	work := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	h := New(suite.MustLookup(suite.Pytest), Config{
		WorkRoot:  work,
		OutputDir: out,
		Runner:    []string{"verifyapi-no-such-runner"},
	}, nil)

	_, err := h.Execute(context.Background(), pySuite("x = 1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, stage.ErrExecution)
	s, _ := stage.Of(err)
	assert.Equal(t, stage.Execute, s)

	assert.NoDirExists(t, out)
	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries, "suite dir must be removed")
}

func TestExecute_RunnerNotExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits")
	}
	path := filepath.Join(t.TempDir(), "runner.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o644))

	h := New(suite.MustLookup(suite.Pytest), Config{WorkRoot: t.TempDir(), OutputDir: filepath.Join(t.TempDir(), "o"), Runner: []string{path}}, nil)
	_, err := h.Execute(context.Background(), pySuite("x = 1"))
	assert.ErrorIs(t, err, stage.ErrExecution)
}

func TestExecute_CopiesKeywordResource(t *testing.T) {
	runner := fakeRunner(t, "ls\n")
	res := filepath.Join(t.TempDir(), "keywords.resource")
	require.NoError(t, os.WriteFile(res, []byte("*** Keywords ***\n"), 0o644))

	h := New(suite.MustLookup(suite.Robot), Config{
		WorkRoot:        t.TempDir(),
		OutputDir:       filepath.Join(t.TempDir(), "out"),
		Runner:          []string{runner},
		KeywordResource: res,
	}, nil)
	out, err := h.Execute(context.Background(), extract.Suite{Kind: suite.Robot, Text: "*** Test Cases ***"})
	require.NoError(t, err)

	assert.Empty(t, out.Warnings)
	assert.Contains(t, out.Stdout, "api_keywords.resource")
	assert.Contains(t, out.Stdout, "generated_api.robot")
}

func TestExecute_MissingSupportIsWarning(t *testing.T) {
	runner := fakeRunner(t, "exit 0\n")
	h := New(suite.MustLookup(suite.Robot), Config{
		WorkRoot:        t.TempDir(),
		OutputDir:       filepath.Join(t.TempDir(), "out"),
		Runner:          []string{runner},
		KeywordResource: filepath.Join(t.TempDir(), "missing.resource"),
	}, nil)
	out, err := h.Execute(context.Background(), extract.Suite{Kind: suite.Robot, Text: "*** Test Cases ***"})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "support resource not copied")
}

func TestExecute_KindMismatch(t *testing.T) {
	h := New(suite.MustLookup(suite.Robot), Config{}, nil)
	_, err := h.Execute(context.Background(), pySuite("x"))
	assert.ErrorIs(t, err, stage.ErrExecution)
}

func TestExecute_DeadlineKillsRunner(t *testing.T) {
	runner := fakeRunner(t, "exec sleep 10\n")
	h := New(suite.MustLookup(suite.Pytest), Config{
		WorkRoot:  t.TempDir(),
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Runner:    []string{runner},
		WaitDelay: time.Second,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	out, err := h.Execute(ctx, pySuite("x = 1"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotEqual(t, 0, out.ExitCode)
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[len(out.Warnings)-1], "runner terminated")
}
