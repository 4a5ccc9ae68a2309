// Package suite defines the closed set of test-authoring formats the generator
// may produce and everything kind-specific the pipeline needs about them:
// fence tags, section headers, runner flags and report locations.
package suite

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Kind is a supported suite format.
type Kind string

const (
	Pytest Kind = "pytest"
	Robot  Kind = "robot"
)

// ReportFormat identifies the machine-readable report a runner writes.
type ReportFormat string

const (
	ReportPytestJSON ReportFormat = "pytest-json"
	ReportRobotXML   ReportFormat = "robot-xml"
)

// Definition describes one suite kind.
type Definition struct {
	Kind      Kind
	Framework string // human name used in prompts
	FileName  string // name the suite is persisted under

	PrimaryTag      string
	AliasTags       []string
	GenericTags     []string
	SectionHeaders  []string // lines that open a suite document
	TrailingMarkers []string // phrases generators append after the code

	Runner       []string // default runner command, suite path appended last
	ReportFile   string   // structured report name inside the output dir
	ReportFormat ReportFormat

	// NeedsKeywordDocs marks kinds whose prompt must embed the documentation of
	// a keyword library the suite uses instead of an HTTP client.
	NeedsKeywordDocs bool
	// KeywordResource is the file name the suite imports the keyword library
	// under; the harness copies it next to the suite.
	KeywordResource string

	Instructions string
}

var genericTags = []string{"code", ""}

var trailingMarkers = []string{
	"This test file includes:",
	"This test suite includes:",
	"This suite includes:",
	"This test suite covers:",
	"Key features of this",
	"Explanation:",
	"To run these tests",
}

var definitions = map[Kind]Definition{
	Pytest: {
		Kind:            Pytest,
		Framework:       "Python pytest",
		FileName:        "test_generated_api.py",
		PrimaryTag:      "python",
		AliasTags:       []string{"py", "python3", "pytest"},
		GenericTags:     genericTags,
		TrailingMarkers: trailingMarkers,
		Runner:          []string{"python3", "-m", "pytest"},
		ReportFile:      ".report.json",
		ReportFormat:    ReportPytestJSON,
		Instructions: "generate Python pytest test cases using the requests library to test all endpoints. " +
			"The tests should be runnable as a single file.",
	},
	Robot: {
		Kind:      Robot,
		Framework: "Robot Framework",
		FileName:  "generated_api.robot",
		// LLMs tag Robot suites inconsistently; the long form is the most common.
		PrimaryTag:  "robotframework",
		AliasTags:   []string{"robot", "robot-framework", "robotframework-suite"},
		GenericTags: genericTags,
		SectionHeaders: []string{
			"*** Settings ***",
			"*** Variables ***",
			"*** Test Cases ***",
			"*** Keywords ***",
		},
		TrailingMarkers:  append(append([]string(nil), trailingMarkers...), "\n```"),
		Runner:           []string{"robot"},
		ReportFile:       "output.xml",
		ReportFormat:     ReportRobotXML,
		NeedsKeywordDocs: true,
		KeywordResource:  "api_keywords.resource",
		Instructions: "generate a Robot Framework test suite that tests all endpoints. " +
			"Use only the keywords documented below instead of calling an HTTP library directly, " +
			"and import them with `Resource    api_keywords.resource` in the *** Settings *** section. " +
			"The suite should be runnable as a single .robot file.",
	},
}

// Lookup returns the definition for k.
func Lookup(k Kind) (Definition, error) {
	d, ok := definitions[k]
	if !ok {
		return Definition{}, errors.Errorf("unknown suite kind %q (expected %s)", k, strings.Join(names(), ", "))
	}
	return d, nil
}

// MustLookup is Lookup for kinds known at compile time.
func MustLookup(k Kind) Definition {
	d, err := Lookup(k)
	if err != nil {
		panic(err)
	}
	return d
}

// Parse converts a user-supplied name into a Kind.
func Parse(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "robotframework", "robot-framework":
		k = Robot
	case "py", "python":
		k = Pytest
	}
	if _, err := Lookup(k); err != nil {
		return "", err
	}
	return k, nil
}

// Kinds returns all supported kinds in stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(definitions))
	for k := range definitions {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func names() []string {
	var out []string
	for _, k := range Kinds() {
		out = append(out, string(k))
	}
	return out
}

// ReportPath is where the runner writes its structured report.
func (d Definition) ReportPath(outputDir string) string {
	return filepath.Join(outputDir, d.ReportFile)
}

// Args returns the full runner argument list after the executable. runner
// overrides the default command when non-empty; its first element is the
// executable and is not included in the result.
func (d Definition) Args(runner []string, suitePath, outputDir string) []string {
	if len(runner) == 0 {
		runner = d.Runner
	}
	args := append([]string(nil), runner[1:]...)
	switch d.Kind {
	case Pytest:
		args = append(args,
			"-v",
			"-rA",
			"--tb=short",
			"--maxfail=100",
			"--disable-warnings",
			"-p", "no:cacheprovider",
			"--json-report",
			"--json-report-file="+d.ReportPath(outputDir),
		)
	case Robot:
		// Robot has no failure cap like --maxfail; --exitonerror stops only
		// on execution errors. The run timeout bounds a failing suite.
		args = append(args,
			"--outputdir", outputDir,
			"--output", d.ReportFile,
			"--log", "NONE",
			"--report", "NONE",
			"--console", "verbose",
			"--consolecolors", "off",
			"--consolewidth", "120",
			"--exitonerror",
		)
	}
	return append(args, suitePath)
}

// Executable returns the program to spawn.
func (d Definition) Executable(runner []string) string {
	if len(runner) == 0 {
		runner = d.Runner
	}
	return runner[0]
}
