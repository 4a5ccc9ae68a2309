// Package stage names the pipeline stages and the error kinds that abort them.
package stage

import (
	"fmt"

	"github.com/pkg/errors"
)

// Stage identifies one step of the generation-to-execution pipeline.
type Stage string

const (
	Load      Stage = "load"
	Prompt    Stage = "prompt"
	Generate  Stage = "generate"
	Extract   Stage = "extract"
	Execute   Stage = "execute"
	Normalize Stage = "normalize"
	Report    Stage = "report"
)

// Order lists the stages in execution order.
var Order = []Stage{Load, Prompt, Generate, Extract, Execute, Normalize, Report}

// Error kinds. Only ErrReportParse is recoverable: the normalizer downgrades it
// to a warning and falls back to console parsing.
var (
	ErrContract    = errors.New("contract error")
	ErrGeneration  = errors.New("generation error")
	ErrExtraction  = errors.New("extraction error")
	ErrExecution   = errors.New("execution error")
	ErrReportParse = errors.New("report parse error")
)

// Error records which stage failed, the kind of failure and the cause.
type Error struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes the cause so callers can inspect provider or OS errors.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel as well as anything in the cause chain.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Wrap builds a stage error. A nil cause still yields an error carrying kind.
func Wrap(s Stage, kind, err error) error {
	return &Error{Stage: s, Kind: kind, Err: err}
}

// Wrapf builds a stage error whose cause is a formatted message.
func Wrapf(s Stage, kind error, format string, args ...any) error {
	return &Error{Stage: s, Kind: kind, Err: errors.Errorf(format, args...)}
}

// Of reports the stage recorded in err, if any.
func Of(err error) (Stage, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
