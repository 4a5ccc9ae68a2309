package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dkoosis/verifyapi/pkg/harness"
	"github.com/dkoosis/verifyapi/pkg/stage"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

func outcomeWithReport(t *testing.T, report, stdout string) harness.Outcome {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".report.json")
	if report != "" {
		require.NoError(t, os.WriteFile(path, []byte(report), 0o644))
	}
	return harness.Outcome{Kind: suite.Pytest, Stdout: stdout, ReportPath: path}
}

func TestNormalize_StructuredWins(t *testing.T) {
	// Console claims everything passed; the report knows better.
	stdout := "test_generated_api.py::test_ping PASSED\ntest_generated_api.py::test_create_user PASSED\n"
	res := Normalize(outcomeWithReport(t, pytestReportJSON, stdout), suite.Pytest, zap.NewNop())

	assert.Equal(t, SourceStructured, res.Source)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Cases, 2)
	assert.Equal(t, Failed, res.Cases[1].Outcome)
	assert.Empty(t, res.Warnings)
	assert.NoError(t, res.ReportErr)
}

func TestNormalize_ConsoleFallback(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	stdout := "test_generated_api.py::test_ping PASSED\ntest_generated_api.py::test_create_user FAILED\n"
	res := Normalize(outcomeWithReport(t, "", stdout), suite.Pytest, zap.New(core))

	assert.Equal(t, SourceConsole, res.Source)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Cases, 2)
	assert.Equal(t, Passed, res.Cases[0].Outcome)
	assert.Equal(t, Failed, res.Cases[1].Outcome)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, logs.FilterMessage("structured report missing, parsing console output").Len())
}

func TestNormalize_CorruptReportIsError(t *testing.T) {
	stdout := "test_generated_api.py::test_ping PASSED\n"
	res := Normalize(outcomeWithReport(t, `{"tests": [`, stdout), suite.Pytest, nil)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, SourceConsole, res.Source)
	assert.Len(t, res.Cases, 1, "console cases are still reported")
	assert.ErrorIs(t, res.ReportErr, stage.ErrReportParse)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "structured report unusable")
}

func TestNormalize_NothingRecovered(t *testing.T) {
	res := Normalize(outcomeWithReport(t, "", "Segmentation fault\n"), suite.Pytest, nil)
	assert.Equal(t, StatusUnknown, res.Status)
	assert.Equal(t, SourceNone, res.Source)
	assert.Empty(t, res.Cases)
}

func TestNormalize_RobotReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.xml")
	require.NoError(t, os.WriteFile(path, []byte(robotOutputXML), 0o644))
	res := Normalize(harness.Outcome{Kind: suite.Robot, ReportPath: path}, suite.Robot, nil)

	assert.Equal(t, SourceStructured, res.Source)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Len(t, res.Cases, 2)
}
