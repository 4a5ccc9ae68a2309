// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select level and encoding.
type Options struct {
	Verbose bool // debug level
	Quiet   bool // errors only; ignored when Verbose
	JSON    bool // JSON lines instead of console text
	// Output defaults to stderr so stdout stays free for reports.
	Output io.Writer
}

// Level is the minimum level opts log at. Warnings are on by default since
// stage warnings are part of every run's diagnosis.
func (o Options) Level() zapcore.Level {
	switch {
	case o.Verbose:
		return zapcore.DebugLevel
	case o.Quiet:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// New builds a logger. Call Sync before exit.
func New(opts Options) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), opts.Level())

	var zopts []zap.Option
	if opts.Verbose {
		zopts = append(zopts, zap.AddCaller())
	}
	return zap.New(core, zopts...)
}
