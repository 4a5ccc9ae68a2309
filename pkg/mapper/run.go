// Package mapper converts run reports and history into visualization
// patterns.
package mapper

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/report"
	"github.com/dkoosis/verifyapi/pkg/results"
	"github.com/dkoosis/verifyapi/pkg/stage"
)

const (
	kindSuccess = "success"
	kindError   = "error"
	kindWarning = "warning"
	kindInfo    = "info"
)

// Options tune how much of a run is shown.
type Options struct {
	TailLines int // stdout/stderr lines kept; 0 = 20
	Slowest   int // leaderboard size; 0 = 5, <0 disables
}

func (o Options) withDefaults() Options {
	if o.TailLines <= 0 {
		o.TailLines = 20
	}
	if o.Slowest == 0 {
		o.Slowest = 5
	}
	return o
}

// FromRunReport renders one run: summary counts, every test in execution
// order, the slowest tests, warnings, then the tails of stdout and stderr.
func FromRunReport(r *report.RunReport, opts Options) []pattern.Pattern {
	opts = opts.withDefaults()
	patterns := []pattern.Pattern{runSummary(r)}

	if len(r.TestCases) > 0 {
		items := make([]pattern.TestTableItem, 0, len(r.TestCases))
		for _, tc := range r.TestCases {
			items = append(items, pattern.TestTableItem{
				Name:     tc.ID,
				Status:   tableStatus(tc.Outcome),
				Duration: formatSeconds(tc.Duration),
				Details:  truncateString(tc.Message, 300),
			})
		}
		patterns = append(patterns, &pattern.TestTable{
			Label:   fmt.Sprintf("Tests (%d, from %s output)", len(r.TestCases), r.Source),
			Source:  r.Contract.Path,
			Results: items,
		})
	}

	if lb := slowest(r.TestCases, opts.Slowest); lb != nil {
		patterns = append(patterns, lb)
	}

	if len(r.Warnings) > 0 {
		items := make([]pattern.TestTableItem, 0, len(r.Warnings))
		for _, w := range r.Warnings {
			items = append(items, pattern.TestTableItem{Name: w, Status: pattern.StatusWarning})
		}
		patterns = append(patterns, &pattern.TestTable{
			Label:   fmt.Sprintf("Warnings (%d)", len(r.Warnings)),
			Source:  r.Contract.Path,
			Results: items,
		})
	}

	for _, stream := range []struct{ label, text string }{
		{"stdout", r.Execution.Stdout},
		{"stderr", r.Execution.Stderr},
	} {
		if t := tail(stream.label, stream.text, opts.TailLines); t != nil {
			patterns = append(patterns, t)
		}
	}
	return patterns
}

func runSummary(r *report.RunReport) *pattern.Summary {
	title := cases.Title(language.English)
	total := len(r.TestCases)
	var metrics []pattern.SummaryItem
	for _, o := range results.Outcomes {
		n := r.Counts[o]
		if n == 0 && o != results.Passed && o != results.Failed {
			continue
		}
		metrics = append(metrics, pattern.SummaryItem{
			Label: title.String(string(o)),
			Value: fmt.Sprintf("%d/%d tests", n, total),
			Kind:  outcomeKind(o, n),
		})
	}
	metrics = append(metrics,
		pattern.SummaryItem{Label: "Source", Value: string(r.Source), Kind: kindInfo},
		pattern.SummaryItem{Label: "Exit code", Value: fmt.Sprintf("%d", r.Execution.ExitCode), Kind: kindInfo},
		pattern.SummaryItem{Label: "Extraction", Value: string(r.Suite.Strategy), Kind: kindInfo},
	)
	if r.Execution.OutputDir != "" {
		metrics = append(metrics, pattern.SummaryItem{Label: "Artifacts", Value: r.Execution.OutputDir, Kind: kindInfo})
	}

	name := contractName(r.Contract)
	label := fmt.Sprintf("%s %s (%s, %d tests, %s)", strings.ToUpper(string(r.Status)), name, r.Kind,
		total, formatDuration(time.Duration(r.Execution.DurationSeconds*float64(time.Second))))
	return &pattern.Summary{
		Label:   label,
		Kind:    pattern.SummaryKindRun,
		Metrics: metrics,
		Runs:    []pattern.RunRef{runRef(r)},
	}
}

func contractName(c report.ContractInfo) string {
	name := c.Title
	if name == "" {
		name = c.Path
	}
	if c.Version != "" {
		name += " " + c.Version
	}
	return name
}

func outcomeKind(o results.Outcome, n int) string {
	switch {
	case n == 0:
		return kindInfo
	case o == results.Passed:
		return kindSuccess
	case o == results.Failed || o == results.Error:
		return kindError
	default:
		return kindWarning
	}
}

// tableStatus is the row status of a test; outcomes pass through as-is.
func tableStatus(o results.Outcome) string {
	if slices.Contains(results.Outcomes, o) {
		return string(o)
	}
	return string(results.Unknown)
}

// runRef is the machine-readable identity of a finished run.
func runRef(r *report.RunReport) pattern.RunRef {
	counts := make(map[string]int, len(r.Counts))
	for o, n := range r.Counts {
		counts[string(o)] = n
	}
	return pattern.RunRef{
		Contract:  r.Contract.Path,
		RunID:     r.RunID,
		SuiteKind: string(r.Kind),
		Status:    string(r.Status),
		Source:    string(r.Source),
		Counts:    counts,
		OutputDir: r.Execution.OutputDir,
	}
}

func slowest(tcs []results.TestCase, n int) *pattern.Leaderboard {
	if n < 0 {
		return nil
	}
	var timed []results.TestCase
	for _, tc := range tcs {
		if tc.Duration != nil {
			timed = append(timed, tc)
		}
	}
	if len(timed) < 2 {
		return nil
	}
	sort.SliceStable(timed, func(i, j int) bool { return *timed[i].Duration > *timed[j].Duration })
	total := len(timed)
	if len(timed) > n {
		timed = timed[:n]
	}
	items := make([]pattern.LeaderboardItem, 0, len(timed))
	for i, tc := range timed {
		items = append(items, pattern.LeaderboardItem{
			Name:   tc.ID,
			Metric: formatSeconds(tc.Duration),
			Value:  *tc.Duration,
			Rank:   i + 1,
		})
	}
	return &pattern.Leaderboard{
		Label:      "Slowest tests",
		MetricName: "Duration",
		Items:      items,
		TotalCount: total,
		ShowRank:   true,
	}
}

func tail(label, text string, n int) *pattern.Tail {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	t := &pattern.Tail{Label: label}
	if len(lines) > n {
		t.Omitted = len(lines) - n
		lines = lines[len(lines)-n:]
	}
	t.Lines = lines
	return t
}

// FromFailure describes a run that stopped with err.
func FromFailure(source string, err error) *pattern.Error {
	e := &pattern.Error{Source: source, Message: err.Error()}
	if s, ok := stage.Of(err); ok {
		e.Stage = string(s)
	}
	return e
}

func formatSeconds(s *float64) string {
	if s == nil {
		return ""
	}
	return formatDuration(time.Duration(*s * float64(time.Second)))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
