// verifyapi turns an OpenAPI contract into an executable API test suite with
// an LLM, runs it and reports the normalized results.
//
// Usage:
//
//	verifyapi run openapi.yaml --base-url http://localhost:8000
//	verifyapi run openapi.yaml --kind robot --replay runs/<id>/response.txt
//	verifyapi batch specs/*.yaml --parallel 4
//	verifyapi watch openapi.yaml
//	verifyapi history --limit 10
//
// Output modes (auto-detected):
//
//	terminal  styled Unicode output (default when TTY)
//	plain     plain text without escape codes (default when piped or CI=true)
//	json      structured JSON for automation
//
// Exit codes: 0 when every run passed, 1 for failing suites or aborted
// stages, 2 for usage and configuration errors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dkoosis/verifyapi/internal/config"
	"github.com/dkoosis/verifyapi/internal/history"
	"github.com/dkoosis/verifyapi/internal/logging"
	"github.com/dkoosis/verifyapi/internal/progress"
	"github.com/dkoosis/verifyapi/pkg/generate"
	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/pipeline"
	"github.com/dkoosis/verifyapi/pkg/prompt"
	"github.com/dkoosis/verifyapi/pkg/render"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// retryBackoff is the wait before the second generation attempt; it doubles
// for each further attempt.
const retryBackoff = 2 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app is the state shared by all subcommands of one invocation.
type app struct {
	stdout, stderr io.Writer

	configPath string
	logOpts    logging.Options
	flags      config.Flags

	cfg    *config.Config
	logger *zap.Logger
	code   int
}

// usageError marks errors that exit with code 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usage(err error) error { return usageError{err: err} }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(stderr, "verifyapi: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) || a.code == exitOK {
			return exitUsage
		}
		return a.code
	}
	return a.code
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "verifyapi",
		Short:         "Generate, run and report LLM-written API test suites from OpenAPI contracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["skipConfig"] == "true" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ./"+config.FileName+" or <user config dir>/verifyapi/"+config.FileName+")")
	pf.BoolVarP(&a.logOpts.Verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&a.logOpts.Quiet, "quiet", "q", false, "only log errors")
	pf.BoolVar(&a.logOpts.JSON, "log-json", false, "log as JSON")

	f := &a.flags
	pf.StringVar(&f.Provider, "provider", "", "LLM provider: anthropic, openai, gemini, replay")
	pf.StringVar(&f.Model, "model", "", "model name (default per provider)")
	pf.StringVar(&f.Kind, "kind", "", "suite kind: pytest, robot")
	pf.StringVar(&f.BaseURL, "base-url", "", "base URL of the API under test")
	pf.StringVar(&f.ReplayPath, "replay", "", "reuse an archived response.txt instead of calling a provider")
	pf.StringVar(&f.OutputRoot, "output-root", "", "directory holding one output directory per run")
	pf.StringVar(&f.WorkRoot, "work-root", "", "directory for generated suites (default system temp)")
	pf.StringVar(&f.HistoryDB, "history-db", "", "run history database, or \"off\"")
	pf.StringVar(&f.Format, "format", "", "output format: auto, terminal, plain, json")
	pf.StringVar(&f.Theme, "theme", "", "terminal theme: default, orca, mono")
	pf.DurationVar(&f.Timeout, "timeout", 0, "limit for a whole run")
	pf.IntVar(&f.Attempts, "attempts", 0, "generation attempts per run")
	pf.IntVar(&f.Parallel, "parallel", 0, "concurrent runs in batch mode")
	pf.BoolVar(&f.KeepSuite, "keep-suite", false, "keep the generated suite directory")

	root.AddCommand(
		a.runCommand(),
		a.batchCommand(),
		a.watchCommand(),
		a.historyCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return root
}

// flagNames are the flags that override configuration when given.
var flagNames = []string{
	"provider", "model", "kind", "base-url", "replay", "output-root", "work-root",
	"history-db", "format", "theme", "timeout", "attempts", "parallel", "keep-suite",
}

// setup loads the configuration, applies explicit flags and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return usage(err)
	}
	a.flags.Set = map[string]bool{}
	for _, name := range flagNames {
		if cmd.Flags().Changed(name) {
			a.flags.Set[name] = true
		}
	}
	if err := cfg.ApplyFlags(a.flags); err != nil {
		return usage(err)
	}
	a.cfg = cfg

	opts := a.logOpts
	opts.Output = a.stderr
	a.logger = logging.New(opts)
	a.logger.Debug("configuration loaded", zap.String("path", cfg.Path),
		zap.String("provider", cfg.Provider), zap.String("kind", cfg.Kind))
	return nil
}

// newRunner wires the generation client, history and progress into a
// pipeline runner. The returned cleanup closes what was opened.
func (a *app) newRunner(hook pipeline.StageHook) (*pipeline.Runner, func(), error) {
	cfg := a.cfg
	kind := cfg.SuiteKind()
	client, err := generate.New(cfg.Provider, generate.Params{
		APIKey:      cfg.APIKey(),
		BaseURL:     cfg.APIBaseURL,
		Model:       cfg.Model,
		System:      prompt.NewBuilder(suite.MustLookup(kind)).System(),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		ReplayPath:  cfg.ReplayPath,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, nil, usage(err)
	}
	client = generate.WithRetry(client, cfg.Attempts, retryBackoff, a.logger)

	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	cleanup := func() {}
	if path := cfg.HistoryPath(); path != "" {
		store, err := history.Open(path)
		if err != nil {
			a.logger.Warn("run history disabled", zap.String("path", path), zap.Error(err))
		} else {
			opts = append(opts, pipeline.WithHistory(store))
			cleanup = func() { _ = store.Close() }
		}
	}
	if hook != nil {
		opts = append(opts, pipeline.WithStageHook(hook))
	}

	runner, err := pipeline.New(pipeline.Config{
		Kind:            kind,
		Provider:        cfg.Provider,
		Model:           cfg.Model,
		BaseURL:         cfg.BaseURL,
		OutputRoot:      cfg.OutputRoot,
		WorkRoot:        cfg.WorkRoot,
		Runner:          cfg.Runner(kind),
		KeywordResource: cfg.KeywordResource,
		KeywordDocs:     cfg.KeywordDocs,
		SupportFiles:    cfg.SupportFiles,
		KeepSuite:       cfg.KeepSuite,
		Timeout:         cfg.Timeout,
	}, client, opts...)
	if err != nil {
		cleanup()
		return nil, nil, usage(err)
	}
	return runner, cleanup, nil
}

// startProgress shows the stage spinner when stdout is a terminal rendering
// styled output, and prefixed stage lines on stderr otherwise. The returned
// stop function must be called before rendering.
func (a *app) startProgress(ctx context.Context) (pipeline.StageHook, func()) {
	if a.logOpts.Quiet {
		return nil, func() {}
	}
	if !isTTYWriter(a.stdout) || a.output().Format != render.FormatTerminal {
		return progress.NewLines(a.stderr).Stage, func() {}
	}
	p := progress.Start(ctx, a.stdout)
	return p.Stage, p.Stop
}

func (a *app) output() config.Output {
	return a.cfg.ResolveOutput(isTTYWriter(a.stdout), a.flags.Set["format"], a.flags.Set["theme"])
}

// render writes patterns to stdout in the resolved format.
func (a *app) render(patterns []pattern.Pattern) error {
	out := a.output()
	width, _ := termSize(a.stdout)
	r, err := render.New(out.Format, out.Theme, width)
	if err != nil {
		return usage(err)
	}
	a.logger.Debug("rendering", zap.String("format", out.Format), zap.String("format_source", out.FormatSource),
		zap.String("theme", out.Theme.Name), zap.String("theme_source", out.ThemeSource))
	_, err = io.WriteString(a.stdout, r.Render(patterns))
	return errors.Wrap(err, "write output")
}

// isTTYWriter reports whether w is a terminal.
func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// termSize returns the terminal dimensions for w, defaulting to 80x24.
func termSize(w io.Writer) (width, height int) {
	width, height = 80, 24
	if f, ok := w.(*os.File); ok {
		if tw, th, err := term.GetSize(int(f.Fd())); err == nil {
			if tw > 0 {
				width = tw
			}
			if th > 0 {
				height = th
			}
		}
	}
	return width, height
}
