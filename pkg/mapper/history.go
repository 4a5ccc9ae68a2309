package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/dkoosis/verifyapi/internal/history"
	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/results"
)

// FromHistory renders recorded runs, newest first as returned by
// history.Store.Recent. Contracts with two or more runs also get a pass-rate
// trend and a latest-vs-previous comparison.
func FromHistory(entries []history.Entry) []pattern.Pattern {
	summary := &pattern.Summary{
		Label: fmt.Sprintf("HISTORY: %d runs", len(entries)),
		Kind:  pattern.SummaryKindHistory,
	}
	if len(entries) == 0 {
		summary.Metrics = []pattern.SummaryItem{{Label: "Runs", Value: "none recorded", Kind: kindInfo}}
		return []pattern.Pattern{summary}
	}

	byContract := map[string][]history.Entry{}
	var order []string
	passed := 0
	items := make([]pattern.TestTableItem, 0, len(entries))
	for _, e := range entries {
		if _, ok := byContract[e.ContractPath]; !ok {
			order = append(order, e.ContractPath)
		}
		byContract[e.ContractPath] = append(byContract[e.ContractPath], e)
		if e.Status == "passed" {
			passed++
		}
		items = append(items, pattern.TestTableItem{
			Name:     fmt.Sprintf("%s %s [%s]", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.ContractPath, e.Kind),
			Status:   historyStatus(e.Status),
			Duration: formatDuration(time.Duration(e.DurationSeconds * float64(time.Second))),
			Count:    e.Total(),
			Details:  entryDetails(e),
		})
	}

	summary.Metrics = []pattern.SummaryItem{
		{Label: "Contracts", Value: fmt.Sprintf("%d", len(order)), Kind: kindInfo},
		{Label: "Passing runs", Value: fmt.Sprintf("%d/%d", passed, len(entries)), Kind: passKind(passed, len(entries))},
		{Label: "Latest", Value: entries[0].RunID, Kind: kindInfo},
	}

	patterns := []pattern.Pattern{summary, &pattern.TestTable{Label: "Recent runs", Results: items}}

	for _, path := range order {
		runs := byContract[path]
		if len(runs) < 2 {
			continue
		}
		rates := make([]float64, len(runs))
		for i, e := range runs {
			// oldest first, left to right
			rates[len(runs)-1-i] = e.PassRate()
		}
		patterns = append(patterns, &pattern.Sparkline{
			Label:  path + " pass rate",
			Values: rates,
			Min:    0,
			Max:    100,
			Unit:   "%",
		})
		patterns = append(patterns, compareRuns(path, runs[1], runs[0]))
	}
	return patterns
}

func compareRuns(path string, before, after history.Entry) *pattern.Comparison {
	return &pattern.Comparison{
		Label: fmt.Sprintf("%s: %s → %s", path, before.RunID, after.RunID),
		Changes: []pattern.ComparisonItem{
			{
				Label:          "Pass rate",
				Before:         fmt.Sprintf("%.0f%%", before.PassRate()),
				After:          fmt.Sprintf("%.0f%%", after.PassRate()),
				Change:         after.PassRate() - before.PassRate(),
				Unit:           "%",
				HigherIsBetter: true,
			},
			{
				Label:  "Failed",
				Before: fmt.Sprintf("%d", before.Failed+before.Errors),
				After:  fmt.Sprintf("%d", after.Failed+after.Errors),
				Change: float64(after.Failed + after.Errors - before.Failed - before.Errors),
			},
			{
				Label:  "Duration",
				Before: fmt.Sprintf("%.1fs", before.DurationSeconds),
				After:  fmt.Sprintf("%.1fs", after.DurationSeconds),
				Change: after.DurationSeconds - before.DurationSeconds,
				Unit:   "s",
			},
		},
	}
}

func historyStatus(s string) string {
	switch o := results.Outcome(s); o {
	case results.Passed, results.Failed, results.Error:
		return string(o)
	default:
		return string(results.Unknown)
	}
}

func entryDetails(e history.Entry) string {
	var parts []string
	for _, c := range []struct {
		n    int
		name string
	}{
		{e.Passed, "passed"}, {e.Failed, "failed"}, {e.Errors, "error"}, {e.Skipped, "skipped"}, {e.Unknown, "unknown"},
	} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.name))
		}
	}
	if len(parts) == 0 {
		return "no tests"
	}
	return strings.Join(parts, ", ")
}

func passKind(passed, total int) string {
	switch {
	case passed == total:
		return kindSuccess
	case passed == 0:
		return kindError
	default:
		return kindWarning
	}
}
