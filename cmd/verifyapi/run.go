package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dkoosis/verifyapi/pkg/mapper"
	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/pipeline"
)

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <contract>",
		Short: "Generate, execute and report a test suite for one contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOne(cmd.Context(), args[0])
		},
	}
}

func (a *app) batchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <contract>...",
		Short: "Run several contracts concurrently",
		Long: "Runs one pipeline per contract with bounded parallelism. Each run has its own\n" +
			"run ID and output directory; a broken contract does not stop the others.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd.Context(), args)
		},
	}
}

// runOne runs a single contract and renders its report. Aborted stages are
// rendered too and exit 1.
func (a *app) runOne(ctx context.Context, path string) error {
	hook, stop := a.startProgress(ctx)
	runner, cleanup, err := a.newRunner(hook)
	if err != nil {
		stop()
		return err
	}
	defer cleanup()

	rep, err := runner.Run(ctx, path)
	stop()

	if err != nil {
		a.code = exitFailed
		return a.render([]pattern.Pattern{mapper.FromFailure(path, err)})
	}
	a.code = exitFailed
	if rep.Passed() {
		a.code = exitOK
	}
	return a.render(mapper.FromRunReport(rep, mapper.Options{}))
}

func (a *app) runBatch(ctx context.Context, paths []string) error {
	hook, stop := a.startProgress(ctx)
	runner, cleanup, err := a.newRunner(hook)
	if err != nil {
		stop()
		return err
	}
	defer cleanup()

	results := runner.RunBatch(ctx, paths, a.cfg.Parallel)
	stop()

	items := make([]mapper.BatchItem, len(results))
	for i, r := range results {
		items[i] = mapper.BatchItem{Contract: r.Contract, Report: r.Report, Err: r.Err}
	}
	a.code = exitFailed
	if pipeline.AllPassed(results) {
		a.code = exitOK
	}
	return a.render(mapper.FromBatch(items))
}
