package mapper

import (
	"fmt"
	"strings"

	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/report"
	"github.com/dkoosis/verifyapi/pkg/results"
)

// BatchItem is the result of one contract in a batch. Exactly one of Report
// and Err is set.
type BatchItem struct {
	Contract string
	Report   *report.RunReport
	Err      error
}

// FromBatch renders a batch: one summary line per contract, then the failing
// tests of each failed run and the cause of each aborted run. A broken
// contract does not hide the others.
func FromBatch(items []BatchItem) []pattern.Pattern {
	metrics := make([]pattern.SummaryItem, 0, len(items))
	runs := make([]pattern.RunRef, 0, len(items))
	var details []pattern.Pattern
	pass, fail := 0, 0

	for _, it := range items {
		if it.Err != nil {
			fail++
			f := FromFailure(it.Contract, it.Err)
			metrics = append(metrics, pattern.SummaryItem{
				Label: it.Contract,
				Value: "aborted at " + f.Stage,
				Kind:  kindError,
			})
			runs = append(runs, pattern.RunRef{
				Contract: it.Contract, Status: pattern.RunAborted, Stage: f.Stage, Error: f.Message,
			})
			details = append(details, f)
			continue
		}
		r := it.Report
		ref := runRef(r)
		ref.Contract = it.Contract
		runs = append(runs, ref)
		if r.Passed() {
			pass++
		} else {
			fail++
		}
		kind := kindSuccess
		if !r.Passed() {
			kind = kindError
		}
		metrics = append(metrics, pattern.SummaryItem{
			Label: it.Contract,
			Value: fmt.Sprintf("%s — %d/%d passed (%s)", r.Status, r.Counts[results.Passed], len(r.TestCases), r.RunID),
			Kind:  kind,
		})

		var failing []pattern.TestTableItem
		for _, tc := range r.TestCases {
			if tc.Outcome == results.Failed || tc.Outcome == results.Error {
				failing = append(failing, pattern.TestTableItem{
					Name:     tc.ID,
					Status:   tableStatus(tc.Outcome),
					Duration: formatSeconds(tc.Duration),
					Details:  truncateString(tc.Message, 300),
				})
			}
		}
		if len(failing) > 0 {
			details = append(details, &pattern.TestTable{
				Label:   fmt.Sprintf("%s failures (%d)", it.Contract, len(failing)),
				Source:  it.Contract,
				Results: failing,
			})
		}
	}

	label := fmt.Sprintf("BATCH: %d contracts", len(items))
	if fail == 0 {
		label += " — all pass"
	} else {
		parts := []string{fmt.Sprintf("%d fail", fail)}
		if pass > 0 {
			parts = append(parts, fmt.Sprintf("%d pass", pass))
		}
		label += " — " + strings.Join(parts, ", ")
	}

	summary := &pattern.Summary{Label: label, Kind: pattern.SummaryKindBatch, Metrics: metrics, Runs: runs}
	return append([]pattern.Pattern{summary}, details...)
}
