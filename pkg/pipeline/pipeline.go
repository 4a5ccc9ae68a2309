// Package pipeline drives one contract through every stage: load, prompt,
// generate, extract, execute, normalize and report.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dkoosis/verifyapi/internal/history"
	"github.com/dkoosis/verifyapi/pkg/contract"
	"github.com/dkoosis/verifyapi/pkg/extract"
	"github.com/dkoosis/verifyapi/pkg/generate"
	"github.com/dkoosis/verifyapi/pkg/harness"
	"github.com/dkoosis/verifyapi/pkg/prompt"
	"github.com/dkoosis/verifyapi/pkg/report"
	"github.com/dkoosis/verifyapi/pkg/results"
	"github.com/dkoosis/verifyapi/pkg/stage"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

// Config is everything a run needs besides the generation client.
type Config struct {
	Kind     suite.Kind
	Provider string // recorded in the report only
	Model    string // recorded in the report only
	// BaseURL is the API under test; empty makes the suite use a placeholder.
	BaseURL string

	// OutputRoot holds one output directory per run, named by run ID.
	OutputRoot string
	WorkRoot   string
	Runner     []string

	KeywordResource string
	KeywordDocs     string
	SupportFiles    []string

	// KeepSuite leaves the generated suite directory in place.
	KeepSuite bool
	// Timeout bounds a whole run; 0 means no limit beyond the caller's context.
	Timeout time.Duration
}

// StageHook is told when a run enters a stage. Batch runs call it from
// several goroutines.
type StageHook func(contractPath string, s stage.Stage)

// Runner executes pipelines. It is safe for concurrent use.
type Runner struct {
	cfg     Config
	def     suite.Definition
	client  generate.Client
	history *history.Store
	hook    StageHook
	logger  *zap.Logger
	newID   func() string
	now     func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithHistory records every completed run in s.
func WithHistory(s *history.Store) Option { return func(r *Runner) { r.history = s } }

// WithStageHook reports stage transitions to h.
func WithStageHook(h StageHook) Option { return func(r *Runner) { r.hook = h } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithClock overrides run IDs and timestamps.
func WithClock(newID func() string, now func() time.Time) Option {
	return func(r *Runner) {
		if newID != nil {
			r.newID = newID
		}
		if now != nil {
			r.now = now
		}
	}
}

// New validates cfg and builds a Runner.
func New(cfg Config, client generate.Client, opts ...Option) (*Runner, error) {
	if client == nil {
		return nil, errors.New("pipeline: nil generation client")
	}
	def, err := suite.Lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "verifyapi-runs"
	}
	r := &Runner{
		cfg:    cfg,
		def:    def,
		client: client,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (r *Runner) enter(path string, s stage.Stage) {
	if r.hook != nil {
		r.hook(path, s)
	}
}

// Run takes one contract through the pipeline. Stage failures return a
// stage.Error naming the stage; a failing suite is a normal report.
func (r *Runner) Run(ctx context.Context, contractPath string) (*report.RunReport, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	runID := r.newID()
	outputDir := filepath.Join(r.cfg.OutputRoot, runID)
	logger := r.logger.With(zap.String("run_id", runID), zap.String("contract", contractPath))

	r.enter(contractPath, stage.Load)
	c, err := contract.Load(contractPath)
	if err != nil {
		return nil, err
	}

	r.enter(contractPath, stage.Prompt)
	var warnings []string
	req := prompt.Request{Contract: c, BaseURL: r.cfg.BaseURL}
	if r.def.NeedsKeywordDocs {
		docs, warning := prompt.LoadAuxiliaryDocs(r.cfg.KeywordDocs, logger)
		req.AuxiliaryDocs = docs
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}
	text := prompt.NewBuilder(r.def).Build(req)

	r.enter(contractPath, stage.Generate)
	logger.Debug("generating suite", zap.Int("prompt_len", len(text)))
	raw, err := r.client.Generate(ctx, text)
	if err != nil {
		r.keepInputs(logger, outputDir, report.Artifacts{Prompt: text})
		return nil, asStage(stage.Generate, stage.ErrGeneration, err)
	}

	r.enter(contractPath, stage.Extract)
	s, err := extract.Extract(raw, r.cfg.Kind)
	if err != nil {
		r.keepInputs(logger, outputDir, report.Artifacts{Prompt: text, Response: raw})
		return nil, err
	}
	logger.Debug("suite extracted", zap.String("strategy", string(s.Strategy)))

	r.enter(contractPath, stage.Execute)
	h := harness.New(r.def, harness.Config{
		WorkRoot:        r.cfg.WorkRoot,
		OutputDir:       outputDir,
		Runner:          r.cfg.Runner,
		KeywordResource: r.cfg.KeywordResource,
		SupportFiles:    r.cfg.SupportFiles,
	}, logger)
	out, err := h.Execute(ctx, s)
	if err != nil {
		return nil, err
	}

	r.enter(contractPath, stage.Normalize)
	res := results.Normalize(out, r.cfg.Kind, logger)

	r.enter(contractPath, stage.Report)
	rep := report.Aggregate(report.Input{
		RunID:    runID,
		Provider: r.cfg.Provider,
		Model:    r.cfg.Model,
		Contract: c,
		Suite:    s,
		Outcome:  out,
		Result:   res,
		Warnings: warnings,
		Now:      r.now,
	})
	if _, err := report.WriteArtifacts(out.OutputDir, rep, report.Artifacts{
		Prompt:    text,
		Response:  raw,
		SuiteText: s.Text,
		SuiteExt:  filepath.Ext(r.def.FileName),
	}); err != nil {
		logger.Warn("artifacts not written", zap.Error(err))
	}

	if r.cfg.KeepSuite {
		logger.Info("suite kept", zap.String("dir", out.SuiteDir))
	} else {
		report.Cleanup(out.SuiteDir, logger)
	}

	if r.history != nil {
		// A cancelled run is still worth recording.
		if err := r.history.Record(context.WithoutCancel(ctx), history.EntryFrom(rep)); err != nil {
			logger.Warn("run not recorded in history", zap.Error(err))
		}
	}

	logger.Info("run finished", zap.String("status", string(rep.Status)),
		zap.Int("tests", len(rep.TestCases)), zap.String("output_dir", out.OutputDir))
	return rep, nil
}

// keepInputs saves what was sent and received so an aborted run can be
// inspected.
func (r *Runner) keepInputs(logger *zap.Logger, dir string, a report.Artifacts) {
	if err := report.WriteInputs(dir, a); err != nil {
		logger.Warn("inputs not written", zap.Error(err))
	}
}

// asStage classifies err as kind unless a stage was already recorded.
func asStage(s stage.Stage, kind, err error) error {
	if _, ok := stage.Of(err); ok {
		return err
	}
	return stage.Wrap(s, kind, err)
}
