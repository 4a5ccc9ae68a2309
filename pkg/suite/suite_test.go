package suite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]Kind{
		"pytest":          Pytest,
		" PyTest ":        Pytest,
		"python":          Pytest,
		"robot":           Robot,
		"RobotFramework":  Robot,
		"robot-framework": Robot,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("cucumber")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pytest, robot")
}

func TestArgs_PytestSuitePathLast(t *testing.T) {
	d := MustLookup(Pytest)
	out := filepath.Join("runs", "abc")
	args := d.Args(nil, "/tmp/s/test_generated_api.py", out)

	assert.Equal(t, "python3", d.Executable(nil))
	assert.Equal(t, []string{"-m", "pytest"}, args[:2])
	assert.Contains(t, args, "--maxfail=100")
	assert.Contains(t, args, "--json-report-file="+filepath.Join(out, ".report.json"))
	assert.Equal(t, "/tmp/s/test_generated_api.py", args[len(args)-1])
}

func TestArgs_RunnerOverride(t *testing.T) {
	d := MustLookup(Robot)
	args := d.Args([]string{"/opt/venv/bin/robot", "--dryrun"}, "suite.robot", "out")

	assert.Equal(t, "/opt/venv/bin/robot", d.Executable([]string{"/opt/venv/bin/robot", "--dryrun"}))
	assert.Equal(t, "--dryrun", args[0])
	assert.Contains(t, args, "--exitonerror")
	assert.Equal(t, "suite.robot", args[len(args)-1])
}

func TestArgs_FailureLimitOnlyForPytest(t *testing.T) {
	assert.Contains(t, MustLookup(Pytest).Args(nil, "t.py", "out"), "--maxfail=100")
	for _, arg := range MustLookup(Robot).Args(nil, "suite.robot", "out") {
		assert.NotContains(t, arg, "maxfail")
		assert.NotEqual(t, "--exitonfailure", arg, "robot runs every test; the timeout is the bound")
	}
}

func TestKinds_Stable(t *testing.T) {
	assert.Equal(t, []Kind{Pytest, Robot}, Kinds())
}

func TestRobotNeedsKeywordDocs(t *testing.T) {
	assert.True(t, MustLookup(Robot).NeedsKeywordDocs)
	assert.False(t, MustLookup(Pytest).NeedsKeywordDocs)
}
