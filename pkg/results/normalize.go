package results

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dkoosis/verifyapi/internal/detect"
	"github.com/dkoosis/verifyapi/pkg/harness"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

// Result is the reconciled view of one execution.
type Result struct {
	Cases        []TestCase
	Status       Status
	Source       Source
	ReportFormat detect.Format
	// ReportErr is the stage.ErrReportParse error when the structured report
	// was present but unusable.
	ReportErr error
	Warnings  []string
}

// Normalize reconciles the structured report and console output of out. The
// structured report wins whenever it parses; a corrupt report downgrades to
// console parsing and forces StatusError.
func Normalize(out harness.Outcome, kind suite.Kind, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result

	cases, format, err := ReadReport(out.ReportPath)
	res.ReportFormat = format
	switch {
	case err == nil:
		res.Cases = cases
		res.Source = SourceStructured
		if console := ParseConsole(kind, out.Stdout); len(console) != len(cases) && len(console) > 0 {
			logger.Debug("console and report disagree; using report",
				zap.Int("report_cases", len(cases)), zap.Int("console_cases", len(console)))
		}
	case errors.Is(err, ErrNoReport):
		logger.Warn("structured report missing, parsing console output", zap.String("path", out.ReportPath))
		res.Warnings = append(res.Warnings, "structured report missing at "+out.ReportPath+"; used console output")
	default:
		res.ReportErr = err
		logger.Warn("structured report unusable, parsing console output",
			zap.String("path", out.ReportPath), zap.Error(err))
		res.Warnings = append(res.Warnings, "structured report unusable: "+err.Error())
	}

	if res.Source != SourceStructured {
		res.Cases = ParseConsole(kind, out.Stdout)
		res.Source = SourceConsole
		if len(res.Cases) == 0 {
			res.Source = SourceNone
		}
	}

	res.Status = OverallStatus(res.Cases, res.ReportErr != nil)
	logger.Debug("normalized results", zap.String("source", string(res.Source)),
		zap.String("status", string(res.Status)), zap.Int("cases", len(res.Cases)))
	return res
}
