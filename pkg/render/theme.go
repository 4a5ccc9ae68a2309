package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/results"
)

// Mark is how one status is drawn.
type Mark struct {
	Icon  string
	Style lipgloss.Style
}

// Theme styles a run report for the terminal. Test rows are drawn by
// outcome; Warning covers advisory rows and Info neutral summary lines.
type Theme struct {
	Name     string
	Title    lipgloss.Style // section headers
	Accent   lipgloss.Style // names and trend labels
	Muted    lipgloss.Style // durations, details, tails
	Outcomes map[results.Outcome]Mark
	Warning  Mark
	Info     Mark
}

// Outcome returns the mark for o; anything unrecognized draws as unknown.
func (t Theme) Outcome(o results.Outcome) Mark {
	if m, ok := t.Outcomes[o]; ok {
		return m
	}
	return t.Outcomes[results.Unknown]
}

// Status returns the mark for a test table status.
func (t Theme) Status(status string) Mark {
	if status == pattern.StatusWarning {
		return t.Warning
	}
	return t.Outcome(results.Outcome(status))
}

// palette holds the colors of a theme; NoColor leaves text unstyled.
type palette struct {
	accent, muted                          lipgloss.TerminalColor
	passed, failed, errored, skipped, warn lipgloss.TerminalColor
}

// glyphs holds a theme's icons, one per outcome plus warning and info.
type glyphs struct {
	passed, failed, errored, skipped, unknown, warn, info string
}

func newTheme(name string, p palette, g glyphs) Theme {
	fg := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}
	return Theme{
		Name:   name,
		Title:  lipgloss.NewStyle().Bold(true),
		Accent: fg(p.accent),
		Muted:  fg(p.muted),
		Outcomes: map[results.Outcome]Mark{
			results.Passed:  {Icon: g.passed, Style: fg(p.passed)},
			results.Failed:  {Icon: g.failed, Style: fg(p.failed)},
			results.Error:   {Icon: g.errored, Style: fg(p.errored).Bold(true)},
			results.Skipped: {Icon: g.skipped, Style: fg(p.skipped)},
			results.Unknown: {Icon: g.unknown, Style: fg(p.muted)},
		},
		Warning: Mark{Icon: g.warn, Style: fg(p.warn)},
		Info:    Mark{Icon: g.info, Style: fg(p.accent)},
	}
}

// DefaultTheme returns a vibrant color theme.
func DefaultTheme() Theme {
	return newTheme("default", palette{
		accent:  lipgloss.Color("39"),  // blue
		muted:   lipgloss.Color("242"), // gray
		passed:  lipgloss.Color("34"),  // green
		failed:  lipgloss.Color("196"), // red
		errored: lipgloss.Color("201"), // magenta
		skipped: lipgloss.Color("110"), // steel blue
		warn:    lipgloss.Color("214"), // orange
	}, glyphs{passed: "✓", failed: "✗", errored: "‼", skipped: "○", unknown: "?", warn: "⚠", info: "●"})
}

// OrcaTheme returns a muted, professional theme.
func OrcaTheme() Theme {
	return newTheme("orca", palette{
		accent:  lipgloss.Color("75"),  // pale blue
		muted:   lipgloss.Color("245"), // lighter gray
		passed:  lipgloss.Color("108"), // sage green
		failed:  lipgloss.Color("167"), // muted red
		errored: lipgloss.Color("132"), // plum
		skipped: lipgloss.Color("103"), // slate
		warn:    lipgloss.Color("179"), // muted gold
	}, glyphs{passed: "✓", failed: "✗", errored: "!!", skipped: "○", unknown: "?", warn: "!", info: "·"})
}

// MonoTheme returns a monochrome theme with ASCII icons.
func MonoTheme() Theme {
	none := lipgloss.NoColor{}
	return newTheme("mono", palette{
		accent: none, muted: none,
		passed: none, failed: none, errored: none, skipped: none, warn: none,
	}, glyphs{passed: "+", failed: "x", errored: "E", skipped: "-", unknown: "?", warn: "!", info: "*"})
}

// Themes lists the names accepted by ThemeByName.
var Themes = []string{"default", "orca", "mono"}

// ThemeByName returns a theme by name, defaulting to DefaultTheme.
func ThemeByName(name string) Theme {
	switch name {
	case "orca":
		return OrcaTheme()
	case "mono":
		return MonoTheme()
	default:
		return DefaultTheme()
	}
}
