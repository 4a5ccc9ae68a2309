package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dkoosis/verifyapi/pkg/report"
)

// DefaultParallel is the batch concurrency when none is given.
const DefaultParallel = 2

// BatchResult is the outcome of one contract in a batch. Exactly one of
// Report and Err is set.
type BatchResult struct {
	Contract string
	Report   *report.RunReport
	Err      error
}

// RunBatch runs every contract with at most parallel runs in flight. Results
// keep the order of contracts; one failing contract never stops the others.
func (r *Runner) RunBatch(ctx context.Context, contracts []string, parallel int) []BatchResult {
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	out := make([]BatchResult, len(contracts))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, path := range contracts {
		g.Go(func() error {
			out[i].Contract = path
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Report, out[i].Err = r.Run(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// AllPassed reports whether every run in a batch completed with status passed.
func AllPassed(results []BatchResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, br := range results {
		if br.Err != nil || !br.Report.Passed() {
			return false
		}
	}
	return true
}
