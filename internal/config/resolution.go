package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dkoosis/verifyapi/pkg/render"
)

// Flags holds CLI values. Only names present in Set override the loaded
// configuration, so a flag's zero value never masks the file or environment.
type Flags struct {
	Provider   string
	Model      string
	Kind       string
	BaseURL    string
	ReplayPath string
	OutputRoot string
	WorkRoot   string
	HistoryDB  string
	Format     string
	Theme      string
	Timeout    time.Duration
	Attempts   int
	Parallel   int
	KeepSuite  bool

	// Set lists the flag names the user gave explicitly.
	Set map[string]bool
}

// ApplyFlags applies explicitly set flags on top of c and validates the
// result.
func (c *Config) ApplyFlags(f Flags) error {
	str := map[string]struct {
		dst *string
		val string
	}{
		"provider":    {&c.Provider, f.Provider},
		"model":       {&c.Model, f.Model},
		"kind":        {&c.Kind, f.Kind},
		"base-url":    {&c.BaseURL, f.BaseURL},
		"replay":      {&c.ReplayPath, f.ReplayPath},
		"output-root": {&c.OutputRoot, f.OutputRoot},
		"work-root":   {&c.WorkRoot, f.WorkRoot},
		"history-db":  {&c.HistoryDB, f.HistoryDB},
		"format":      {&c.Format, f.Format},
		"theme":       {&c.Theme, f.Theme},
	}
	for name, s := range str {
		if f.Set[name] {
			*s.dst = s.val
		}
	}
	if f.Set["timeout"] {
		c.Timeout = f.Timeout
	}
	if f.Set["attempts"] {
		c.Attempts = f.Attempts
	}
	if f.Set["parallel"] {
		c.Parallel = f.Parallel
	}
	if f.Set["keep-suite"] {
		c.KeepSuite = f.KeepSuite
	}
	// A replay file given on the command line implies the replay provider.
	if f.Set["replay"] && !f.Set["provider"] {
		c.Provider = "replay"
	}
	return c.Validate()
}

// Output is the resolved presentation of results.
type Output struct {
	Format string
	Theme  render.Theme

	// Resolution metadata (for debugging)
	FormatSource string // "cli", "env", "config", "tty"
	ThemeSource  string
}

// ResolveOutput turns "auto" and the NO_COLOR/CI conventions into a concrete
// format and theme. flagFormat and flagTheme say whether those were given on
// the command line, which beats the environment conventions.
func (c *Config) ResolveOutput(isTTY, flagFormat, flagTheme bool) Output {
	out := Output{Format: c.Format, FormatSource: "config", ThemeSource: "config"}
	themeName := c.Theme

	ci := getEnvBool("VERIFYAPI_CI", "CI")
	noColor := getEnvBool("VERIFYAPI_NO_COLOR", "NO_COLOR")

	switch {
	case flagFormat:
		out.FormatSource = "cli"
	case ci != nil && *ci:
		out.Format = render.FormatPlain
		out.FormatSource = "env"
	}
	if out.Format == FormatAuto {
		out.Format = render.FormatPlain
		if isTTY {
			out.Format = render.FormatTerminal
		}
		out.FormatSource = "tty"
	}

	switch {
	case flagTheme:
		out.ThemeSource = "cli"
	case noColor != nil && *noColor:
		themeName = "mono"
		out.ThemeSource = "env"
	}
	out.Theme = render.ThemeByName(themeName)
	return out
}

// getEnvBool reads a boolean from environment variables, trying multiple keys.
// Returns nil if none are set, or a pointer to the boolean value.
func getEnvBool(keys ...string) *bool {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				return &b
			}
			// NO_COLOR is set-means-true by convention.
			if key == "NO_COLOR" {
				b := true
				return &b
			}
		}
	}
	return nil
}
