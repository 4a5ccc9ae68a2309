// Package render turns patterns into terminal, plain-text or JSON output.
package render

import (
	"github.com/pkg/errors"

	"github.com/dkoosis/verifyapi/pkg/pattern"
)

// Output formats accepted by New.
const (
	FormatTerminal = "terminal"
	FormatPlain    = "plain"
	FormatJSON     = "json"
)

// FormatVersion is the schema version of JSON output.
const FormatVersion = "1.0"

// Renderer converts patterns to formatted output.
type Renderer interface {
	Render(patterns []pattern.Pattern) string
}

// New returns the renderer for format. Theme and width only affect the
// terminal renderer.
func New(format string, theme Theme, width int) (Renderer, error) {
	switch format {
	case FormatTerminal, "":
		return NewTerminal(theme, width), nil
	case FormatPlain:
		return NewPlain(), nil
	case FormatJSON:
		return NewJSON(), nil
	default:
		return nil, errors.Errorf("unknown output format %q (want terminal, plain or json)", format)
	}
}
