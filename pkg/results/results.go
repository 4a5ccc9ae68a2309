// Package results turns what a runner produced into test cases and an overall
// status. Two independent parsers exist per suite kind: a structured-report
// parser, which is authoritative, and a best-effort console parser used when
// no usable report exists.
package results

import (
	"fmt"
	"strings"
)

// Outcome is the closed set of per-test results.
type Outcome string

const (
	Passed  Outcome = "passed"
	Failed  Outcome = "failed"
	Skipped Outcome = "skipped"
	Error   Outcome = "error"
	Unknown Outcome = "unknown"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{Passed, Failed, Error, Skipped, Unknown}

var outcomeAliases = map[string]Outcome{
	"pass":    Passed,
	"passed":  Passed,
	"ok":      Passed,
	"success": Passed,
	"xpassed": Passed,
	"xpass":   Passed,

	"fail":    Failed,
	"failed":  Failed,
	"failure": Failed,

	"skip":    Skipped,
	"skipped": Skipped,
	"xfailed": Skipped,
	"xfail":   Skipped,
	"not run": Skipped,
	"notrun":  Skipped,

	"error":   Error,
	"errored": Error,
	"broken":  Error,
}

// MapOutcome maps a runner status string onto Outcome. It is total: anything
// unrecognized is Unknown.
func MapOutcome(s string) Outcome {
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if o, ok := outcomeAliases[key]; ok {
		return o
	}
	return Unknown
}

// Status is the overall verdict of a run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// Source records where the test cases came from.
type Source string

const (
	SourceStructured Source = "structured"
	SourceConsole    Source = "console"
	SourceNone       Source = "none"
)

// TestCase is one test's normalized result.
type TestCase struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Outcome     Outcome  `json:"outcome"`
	Duration    *float64 `json:"duration_seconds,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Counts tallies cases per outcome.
type Counts map[Outcome]int

// Count tallies cases.
func Count(cases []TestCase) Counts {
	c := Counts{}
	for _, tc := range cases {
		c[tc.Outcome]++
	}
	return c
}

// Total is the number of cases counted.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// OverallStatus decides the run verdict. A failed report parse always yields
// StatusError; otherwise no cases is unknown, all passed is passed and any
// failure or error is failed. Anything else, such as a mix of passed and
// skipped, is unknown.
func OverallStatus(cases []TestCase, reportParseFailed bool) Status {
	if reportParseFailed {
		return StatusError
	}
	if len(cases) == 0 {
		return StatusUnknown
	}
	c := Count(cases)
	switch {
	case c[Passed] == len(cases):
		return StatusPassed
	case c[Failed] > 0 || c[Error] > 0:
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// uniqueIDs suffixes repeated IDs so every case in a run is addressable.
// The first case keeps its ID; a suffix never reuses an ID already present.
func uniqueIDs(cases []TestCase) []TestCase {
	taken := make(map[string]bool, len(cases))
	for _, c := range cases {
		taken[c.ID] = true
	}
	claimed := make(map[string]bool, len(cases))
	next := make(map[string]int)
	for i := range cases {
		id := cases[i].ID
		if !claimed[id] {
			claimed[id] = true
			continue
		}
		n := max(next[id], 2)
		for taken[fmt.Sprintf("%s #%d", id, n)] {
			n++
		}
		name := fmt.Sprintf("%s #%d", id, n)
		next[id] = n + 1
		taken[name] = true
		claimed[name] = true
		cases[i].ID = name
	}
	return cases
}

func seconds(v float64) *float64 { return &v }
