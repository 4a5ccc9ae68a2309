package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/dkoosis/verifyapi/internal/history"
	"github.com/dkoosis/verifyapi/pkg/generate"
	"github.com/dkoosis/verifyapi/pkg/report"
	"github.com/dkoosis/verifyapi/pkg/results"
	"github.com/dkoosis/verifyapi/pkg/stage"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

func TestMain(m *testing.M) {
	// genai links opencensus, whose stats worker starts at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const pingContract = `{"openapi":"3.0.0","info":{"title":"Ping","version":"1.0"},` +
	`"paths":{"/ping":{"get":{"responses":{"200":{"description":"pong"}}}}}}`

const pingResponse = "Here is the suite:\n\n```python\nimport requests\n\n" +
	"BASE_URL = \"http://localhost:8000\"\n\ndef test_ping():\n" +
	"    assert requests.get(BASE_URL + \"/ping\").status_code == 200\n```\n\nThis test suite covers: /ping\n"

// pytestJSONRunner writes a pytest-json-report file where pytest would.
const pytestJSONRunner = `for a in "$@"; do
  case "$a" in --json-report-file=*) report="${a#--json-report-file=}";; esac
done
cat > "$report" <<'EOF'
{"exitcode": 0, "summary": {"passed": 1, "total": 1},
 "tests": [{"nodeid": "test_generated_api.py::test_ping", "outcome": "passed",
            "setup": {"duration": 0.001, "outcome": "passed"},
            "call": {"duration": 0.02, "outcome": "passed"},
            "teardown": {"duration": 0.001, "outcome": "passed"}}]}
EOF
echo "test_generated_api.py::test_ping PASSED"
`

type stubClient struct {
	text string
	err  error
}

func (s stubClient) Generate(context.Context, string) (string, error) { return s.text, s.err }

type fixture struct {
	dir        string
	contract   string
	outputRoot string
	workRoot   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:        dir,
		contract:   filepath.Join(dir, "ping.json"),
		outputRoot: filepath.Join(dir, "runs"),
		workRoot:   filepath.Join(dir, "work"),
	}
	require.NoError(t, os.WriteFile(f.contract, []byte(pingContract), 0o644))
	return f
}

func (f fixture) config(runner ...string) Config {
	return Config{
		Kind:       suite.Pytest,
		Provider:   generate.ProviderReplay,
		OutputRoot: f.outputRoot,
		WorkRoot:   f.workRoot,
		Runner:     runner,
	}
}

func fakeRunner(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake runners are shell scripts")
	}
	path := filepath.Join(t.TempDir(), "pytest.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names
}

func TestRun_PingEndToEnd(t *testing.T) {
	f := newFixture(t)
	replayPath := filepath.Join(f.dir, "response.txt")
	require.NoError(t, os.WriteFile(replayPath, []byte(pingResponse), 0o644))
	client, err := generate.New(generate.ProviderReplay, generate.Params{ReplayPath: replayPath})
	require.NoError(t, err)

	store, err := history.Open(filepath.Join(f.dir, history.DefaultFile))
	require.NoError(t, err)
	defer store.Close()

	var mu sync.Mutex
	var stages []stage.Stage
	r, err := New(f.config(fakeRunner(t, pytestJSONRunner)), client,
		WithLogger(zaptest.NewLogger(t)),
		WithHistory(store),
		WithStageHook(func(_ string, s stage.Stage) {
			mu.Lock()
			defer mu.Unlock()
			stages = append(stages, s)
		}),
		WithClock(func() string { return "run-ping" }, nil),
	)
	require.NoError(t, err)

	rep, err := r.Run(context.Background(), f.contract)
	require.NoError(t, err)

	assert.Equal(t, results.StatusPassed, rep.Status)
	assert.Equal(t, results.SourceStructured, rep.Source)
	require.Len(t, rep.TestCases, 1)
	assert.Equal(t, "test_ping", rep.TestCases[0].ID)
	assert.Equal(t, results.Passed, rep.TestCases[0].Outcome)
	assert.Equal(t, "Ping", rep.Contract.Title)
	assert.Equal(t, []string{"GET /ping"}, rep.Contract.Operations)
	assert.Equal(t, stage.Order, stages)

	runDir := filepath.Join(f.outputRoot, "run-ping")
	assert.ElementsMatch(t, []string{
		".report.json", report.PromptFile, report.ResponseFile, "suite.py", report.ExecutionLogFile, report.ReportFile,
	}, entries(t, runDir))
	suiteCopy, err := os.ReadFile(filepath.Join(runDir, "suite.py"))
	require.NoError(t, err)
	assert.NotContains(t, string(suiteCopy), "This test suite covers", "trailing prose is not part of the suite")

	assert.Empty(t, entries(t, f.workRoot), "suite directory is cleaned up")

	recorded, err := store.Recent(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, "run-ping", recorded[0].RunID)
	assert.Equal(t, 1, recorded[0].Passed)
}

func TestRun_KeepSuite(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(fakeRunner(t, pytestJSONRunner))
	cfg.KeepSuite = true
	r, err := New(cfg, stubClient{text: pingResponse})
	require.NoError(t, err)

	rep, err := r.Run(context.Background(), f.contract)
	require.NoError(t, err)
	assert.FileExists(t, rep.Suite.Path)
	assert.Len(t, entries(t, f.workRoot), 1)
}

func TestRun_RunnerNotFound(t *testing.T) {
	f := newFixture(t)
	r, err := New(f.config(filepath.Join(f.dir, "no-such-pytest")), stubClient{text: pingResponse},
		WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	rep, err := r.Run(context.Background(), f.contract)
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.True(t, errors.Is(err, stage.ErrExecution), "got %v", err)
	s, ok := stage.Of(err)
	require.True(t, ok)
	assert.Equal(t, stage.Execute, s)

	assert.Empty(t, entries(t, f.workRoot), "no suite directory left behind")
	assert.Empty(t, entries(t, f.outputRoot), "no output directory left behind")
}

func TestRun_ConsoleFallback(t *testing.T) {
	f := newFixture(t)
	runner := fakeRunner(t, `echo "test_generated_api.py::test_ping PASSED"
echo "test_generated_api.py::test_pong FAILED"
echo "FAILED test_generated_api.py::test_pong - assert 404 == 200"
exit 1
`)
	r, err := New(f.config(runner), stubClient{text: pingResponse})
	require.NoError(t, err)

	rep, err := r.Run(context.Background(), f.contract)
	require.NoError(t, err, "failing tests are a report, not an error")

	assert.Equal(t, results.SourceConsole, rep.Source)
	assert.Equal(t, results.StatusFailed, rep.Status)
	assert.Equal(t, 1, rep.Execution.ExitCode)
	require.Len(t, rep.TestCases, 2)
	assert.Equal(t, "assert 404 == 200", rep.TestCases[1].Message)
	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[0], "structured report missing")
}

func TestRun_GenerationFailure(t *testing.T) {
	f := newFixture(t)
	r, err := New(f.config("unused"), stubClient{err: errors.New("rate limited")},
		WithClock(func() string { return "run-gen" }, nil))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), f.contract)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stage.ErrGeneration))
	assert.Contains(t, err.Error(), "rate limited")
	assert.FileExists(t, filepath.Join(f.outputRoot, "run-gen", report.PromptFile))
}

func TestRun_ExtractionFailure(t *testing.T) {
	f := newFixture(t)
	r, err := New(f.config("unused"), stubClient{text: "\n\n   \n"},
		WithClock(func() string { return "run-ext" }, nil))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), f.contract)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stage.ErrExtraction))
	assert.FileExists(t, filepath.Join(f.outputRoot, "run-ext", report.ResponseFile))
	assert.Empty(t, entries(t, f.workRoot), "nothing executed")
}

func TestRun_BadContract(t *testing.T) {
	f := newFixture(t)
	r, err := New(f.config("unused"), stubClient{text: pingResponse})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), filepath.Join(f.dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, stage.ErrContract))
}

func TestRun_Timeout(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(fakeRunner(t, "exec sleep 10\n"))
	cfg.Timeout = 200 * time.Millisecond
	r, err := New(cfg, stubClient{text: pingResponse})
	require.NoError(t, err)

	start := time.Now()
	rep, err := r.Run(context.Background(), f.contract)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 8*time.Second)
	assert.NotEqual(t, results.StatusPassed, rep.Status)
	terminated := false
	for _, w := range rep.Warnings {
		terminated = terminated || strings.HasPrefix(w, "runner terminated")
	}
	assert.True(t, terminated, "warnings: %v", rep.Warnings)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Kind: suite.Pytest}, nil)
	assert.Error(t, err)
	_, err = New(Config{Kind: "cucumber"}, stubClient{})
	assert.Error(t, err)
}

func TestRunBatch(t *testing.T) {
	f := newFixture(t)
	r, err := New(f.config(fakeRunner(t, pytestJSONRunner)), stubClient{text: pingResponse})
	require.NoError(t, err)

	missing := filepath.Join(f.dir, "missing.json")
	got := r.RunBatch(context.Background(), []string{f.contract, missing, f.contract}, 2)

	require.Len(t, got, 3)
	assert.Equal(t, f.contract, got[0].Contract)
	assert.NoError(t, got[0].Err)
	assert.True(t, got[0].Report.Passed())
	assert.Equal(t, missing, got[1].Contract)
	assert.True(t, errors.Is(got[1].Err, stage.ErrContract))
	assert.NoError(t, got[2].Err)
	assert.NotEqual(t, got[0].Report.RunID, got[2].Report.RunID, "each run gets its own ID")
	assert.False(t, AllPassed(got))
	assert.True(t, AllPassed([]BatchResult{got[0], got[2]}))
	assert.False(t, AllPassed(nil))
}

func TestRunBatch_Cancelled(t *testing.T) {
	f := newFixture(t)
	r, err := New(f.config("unused"), stubClient{text: pingResponse})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := r.RunBatch(ctx, []string{f.contract}, 1)
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, context.Canceled)
}
