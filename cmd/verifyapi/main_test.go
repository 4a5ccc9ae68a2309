package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const pingContract = `{"openapi":"3.0.0","info":{"title":"Ping","version":"1.0"},` +
	`"paths":{"/ping":{"get":{"responses":{"200":{"description":"pong"}}}}}}`

const pingResponse = "```python\nimport requests\n\ndef test_ping():\n" +
	"    assert requests.get(BASE_URL + \"/ping\").status_code == 200\n```\n"

const passingRunner = `for a in "$@"; do
  case "$a" in --json-report-file=*) report="${a#--json-report-file=}";; esac
done
cat > "$report" <<'JSON'
{"exitcode": 0, "tests": [{"nodeid": "test_generated_api.py::test_ping", "outcome": "passed",
  "call": {"duration": 0.02, "outcome": "passed"}}]}
JSON
`

const failingRunner = `echo "test_generated_api.py::test_ping FAILED"
echo "FAILED test_generated_api.py::test_ping - assert 404 == 200"
exit 1
`

// env is an isolated working directory with a contract, a replayable
// response and a fake pytest on the configured runner path.
type env struct {
	dir      string
	contract string
	replay   string
}

func newEnv(t *testing.T, runnerBody string) env {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake runners are shell scripts")
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "VERIFYAPI_") || strings.HasSuffix(key, "_API_KEY") ||
			key == "CI" || key == "NO_COLOR" {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}

	e := env{
		dir:      dir,
		contract: filepath.Join(dir, "ping.json"),
		replay:   filepath.Join(dir, "response.txt"),
	}
	require.NoError(t, os.WriteFile(e.contract, []byte(pingContract), 0o644))
	require.NoError(t, os.WriteFile(e.replay, []byte(pingResponse), 0o644))

	runner := filepath.Join(dir, "pytest.sh")
	require.NoError(t, os.WriteFile(runner, []byte("#!/bin/sh\n"+runnerBody), 0o755))
	t.Setenv("VERIFYAPI_PYTEST_RUNNER", runner)
	t.Setenv("VERIFYAPI_WORK_ROOT", filepath.Join(dir, "work"))
	return e
}

func (e env) run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_PassingSuite(t *testing.T) {
	e := newEnv(t, passingRunner)
	code, stdout, stderr := e.run(t, "run", e.contract, "--replay", e.replay)

	assert.Equal(t, exitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "SCOPE: PASSED Ping 1.0")
	assert.Contains(t, stdout, "test_ping")
	assert.NotContains(t, stdout, "\033[", "piped output has no escape codes")
	assert.Contains(t, stderr, "["+e.contract+"] executing suite")

	runs, err := os.ReadDir(filepath.Join(e.dir, "verifyapi-runs"))
	require.NoError(t, err)
	dirs := 0
	for _, de := range runs {
		if de.IsDir() {
			dirs++
		}
	}
	assert.Equal(t, 1, dirs, "one output directory per run")
	assert.FileExists(t, filepath.Join(e.dir, "verifyapi-runs", "history.db"))
}

func TestRun_QuietHidesProgress(t *testing.T) {
	e := newEnv(t, passingRunner)
	code, _, stderr := e.run(t, "run", e.contract, "--replay", e.replay, "--quiet")
	assert.Equal(t, exitOK, code)
	assert.Empty(t, stderr)
}

func TestRun_FailingSuiteExitsOne(t *testing.T) {
	e := newEnv(t, failingRunner)
	code, stdout, _ := e.run(t, "run", e.contract, "--replay", e.replay)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "SCOPE: FAILED")
	assert.Contains(t, stdout, "assert 404 == 200")
}

func TestRun_StageFailureIsRendered(t *testing.T) {
	e := newEnv(t, passingRunner)
	t.Setenv("VERIFYAPI_PYTEST_RUNNER", filepath.Join(e.dir, "no-such-pytest"))
	code, stdout, _ := e.run(t, "run", e.contract, "--replay", e.replay)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "ERROR "+e.contract)
	assert.Contains(t, stdout, "execute")
}

func TestRun_JSONOutput(t *testing.T) {
	e := newEnv(t, passingRunner)
	code, stdout, _ := e.run(t, "run", e.contract, "--replay", e.replay, "--format", "json", "--history-db", "off")
	require.Equal(t, exitOK, code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc), stdout)
	assert.Equal(t, "1.0", doc["version"])
	assert.Equal(t, "run", doc["kind"])
	assert.Equal(t, "passed", doc["status"])
	runs, ok := doc["runs"].([]any)
	require.True(t, ok, stdout)
	require.Len(t, runs, 1)
	run := runs[0].(map[string]any)
	assert.Equal(t, e.contract, run["contract"])
	assert.NotEmpty(t, run["run_id"])
}

func TestRun_UsageErrors(t *testing.T) {
	e := newEnv(t, passingRunner)
	tests := []struct {
		name string
		args []string
	}{
		{"no contract", []string{"run"}},
		{"unknown command", []string{"frobnicate"}},
		{"invalid format", []string{"run", e.contract, "--replay", e.replay, "--format", "sarif"}},
		{"invalid kind", []string{"run", e.contract, "--replay", e.replay, "--kind", "cucumber"}},
		{"missing api key", []string{"run", e.contract, "--provider", "anthropic"}},
		{"bad flag", []string{"run", "--attempts", "many", e.contract}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := e.run(t, tt.args...)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stderr, "verifyapi:")
		})
	}
}

func TestBatch_MixedResults(t *testing.T) {
	e := newEnv(t, passingRunner)
	missing := filepath.Join(e.dir, "missing.json")
	code, stdout, _ := e.run(t, "batch", e.contract, missing, "--replay", e.replay, "--parallel", "2")

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "BATCH: 2 contracts")
	assert.Contains(t, stdout, "aborted at load")
}

func TestBatch_AllPass(t *testing.T) {
	e := newEnv(t, passingRunner)
	code, stdout, _ := e.run(t, "batch", e.contract, e.contract, "--replay", e.replay)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "all pass")
}

func TestHistory_ListsRecordedRuns(t *testing.T) {
	e := newEnv(t, passingRunner)
	for range 2 {
		code, _, stderr := e.run(t, "run", e.contract, "--replay", e.replay)
		require.Equal(t, exitOK, code, stderr)
	}

	code, stdout, _ := e.run(t, "history", "--limit", "5")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "HISTORY: 2 runs")
	assert.Contains(t, stdout, "100%")
}

func TestHistory_Disabled(t *testing.T) {
	e := newEnv(t, passingRunner)
	code, _, stderr := e.run(t, "history", "--history-db", "off")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "disabled")
}

func TestConfig_PrintsRedactedYAML(t *testing.T) {
	e := newEnv(t, passingRunner)
	t.Setenv("ANTHROPIC_API_KEY", "sk-very-secret")
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, ".verifyapi.yaml"), []byte("kind: robot\n"), 0o600))

	code, stdout, _ := e.run(t, "config", "--model", "claude-test")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "# loaded from .verifyapi.yaml")
	assert.Contains(t, stdout, "kind: robot")
	assert.Contains(t, stdout, "model: claude-test")
	assert.NotContains(t, stdout, "sk-very-secret")
}

func TestVersion(t *testing.T) {
	e := newEnv(t, passingRunner)
	// A broken config file does not stop version.
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, ".verifyapi.yaml"), []byte("kind: [\n"), 0o600))
	code, stdout, _ := e.run(t, "version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(stdout, "verifyapi "), stdout)
}

func TestWatchFile_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openapi: 3.0.0\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	changed := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 50*time.Millisecond, zaptest.NewLogger(t), func() error {
			calls.Add(1)
			changed <- struct{}{}
			return nil
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	for _, v := range []string{"3.0.1", "3.0.2", "3.0.3"} {
		require.NoError(t, os.WriteFile(path, []byte("openapi: "+v+"\n"), 0o644))
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a burst of writes is one change")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
