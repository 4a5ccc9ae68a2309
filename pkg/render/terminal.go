package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/results"
)

// Terminal renders patterns as styled terminal output via lipgloss.
type Terminal struct {
	theme Theme
	width int
}

// NewTerminal creates a terminal renderer with the given theme.
func NewTerminal(theme Theme, width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{theme: theme, width: width}
}

// Render formats all patterns for terminal display.
func (t *Terminal) Render(patterns []pattern.Pattern) string {
	var sections []string
	for _, p := range patterns {
		s := t.renderOne(p)
		if s != "" {
			sections = append(sections, s)
		}
	}
	return strings.Join(sections, "\n")
}

func (t *Terminal) renderOne(p pattern.Pattern) string {
	switch v := p.(type) {
	case *pattern.Summary:
		return t.renderSummary(v)
	case *pattern.Leaderboard:
		return t.renderLeaderboard(v)
	case *pattern.TestTable:
		return t.renderTestTable(v)
	case *pattern.Sparkline:
		return t.renderSparkline(v)
	case *pattern.Comparison:
		return t.renderComparison(v)
	case *pattern.Tail:
		return t.renderTail(v)
	case *pattern.Error:
		return t.renderError(v)
	default:
		return ""
	}
}

func (t *Terminal) renderSummary(s *pattern.Summary) string {
	var sb strings.Builder
	if s.Label != "" {
		sb.WriteString(t.theme.Title.Render(s.Label))
		sb.WriteString("\n")
	}
	for _, m := range s.Metrics {
		sb.WriteString("  ")
		mark := t.summaryMark(m.Kind)
		sb.WriteString(mark.Style.Render(mark.Icon + " " + m.Label + ": " + m.Value))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *Terminal) renderLeaderboard(l *pattern.Leaderboard) string {
	if len(l.Items) == 0 {
		return ""
	}
	var sb strings.Builder
	if l.Label != "" {
		header := l.Label
		if l.TotalCount > len(l.Items) {
			header += fmt.Sprintf(" (top %d of %d)", len(l.Items), l.TotalCount)
		}
		sb.WriteString(t.theme.Title.Render(header))
		sb.WriteString("\n")
	}

	maxName, maxMetric := 0, 0
	for _, item := range l.Items {
		maxName = max(maxName, runewidth.StringWidth(item.Name))
		maxMetric = max(maxMetric, runewidth.StringWidth(item.Metric))
	}
	maxName = min(maxName, t.nameWidth(50))

	for _, item := range l.Items {
		sb.WriteString("  ")
		if l.ShowRank {
			sb.WriteString(t.theme.Muted.Render(fmt.Sprintf("%2d. ", item.Rank)))
		}
		name := runewidth.Truncate(item.Name, maxName, "...")
		sb.WriteString(t.theme.Accent.Render(padRight(name, maxName)))
		sb.WriteString("  ")
		sb.WriteString(t.theme.Warning.Style.Render(padLeft(item.Metric, maxMetric)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *Terminal) renderTestTable(tt *pattern.TestTable) string {
	if len(tt.Results) == 0 {
		return ""
	}
	var sb strings.Builder
	if tt.Label != "" {
		sb.WriteString(t.theme.Title.Render(tt.Label))
		sb.WriteString("\n")
	}

	maxName, maxDur := 0, 0
	for _, r := range tt.Results {
		maxName = max(maxName, runewidth.StringWidth(r.Name))
		maxDur = max(maxDur, runewidth.StringWidth(r.Duration))
	}
	maxName = min(maxName, t.nameWidth(60))

	for _, r := range tt.Results {
		sb.WriteString("  ")
		mark := t.theme.Status(r.Status)
		sb.WriteString(mark.Style.Render(mark.Icon + " "))

		name := runewidth.Truncate(r.Name, maxName, "...")
		if r.Duration == "" && r.Count == 0 {
			sb.WriteString(name)
		} else {
			sb.WriteString(padRight(name, maxName))
		}

		if r.Count > 0 {
			sb.WriteString(t.theme.Muted.Render(fmt.Sprintf("  %d tests", r.Count)))
		}
		if r.Duration != "" {
			sb.WriteString("  ")
			sb.WriteString(t.theme.Muted.Render(padLeft(r.Duration, maxDur)))
		}

		if r.Details != "" {
			for _, line := range strings.Split(r.Details, "\n") {
				sb.WriteString("\n    ")
				sb.WriteString(t.theme.Muted.Render(runewidth.Truncate(line, t.width-4, "...")))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *Terminal) renderSparkline(s *pattern.Sparkline) string {
	if len(s.Values) == 0 {
		return ""
	}
	var sb strings.Builder
	if s.Label != "" {
		sb.WriteString(t.theme.Accent.Render(s.Label + ": "))
	}

	minVal, maxVal := s.Min, s.Max
	if minVal == 0 && maxVal == 0 {
		minVal, maxVal = s.Values[0], s.Values[0]
		for _, v := range s.Values {
			minVal = min(minVal, v)
			maxVal = max(maxVal, v)
		}
	}
	valueRange := maxVal - minVal
	if valueRange == 0 {
		valueRange = 1
	}

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	var spark strings.Builder
	for _, v := range s.Values {
		idx := int((v - minVal) / valueRange * 7)
		idx = max(0, min(idx, 7))
		spark.WriteRune(blocks[idx])
	}
	sb.WriteString(t.theme.Outcome(results.Passed).Style.Render(spark.String()))

	latest := s.Values[len(s.Values)-1]
	sb.WriteString(t.theme.Muted.Render(fmt.Sprintf(" %.1f%s", latest, s.Unit)))
	sb.WriteString("\n")
	return sb.String()
}

func (t *Terminal) renderComparison(c *pattern.Comparison) string {
	if len(c.Changes) == 0 {
		return ""
	}
	var sb strings.Builder
	if c.Label != "" {
		sb.WriteString(t.theme.Title.Render(c.Label))
		sb.WriteString("\n")
	}
	for _, item := range c.Changes {
		sb.WriteString("  ")
		sb.WriteString(item.Label + ": ")
		sb.WriteString(t.theme.Muted.Render(item.Before + " → " + item.After))
		sb.WriteString(" ")

		rise, fall := t.theme.Warning.Style, t.theme.Outcome(results.Passed).Style
		if item.HigherIsBetter {
			rise, fall = fall, rise
		}
		var arrow string
		var style lipgloss.Style
		switch {
		case item.Change > 0:
			arrow = "↑"
			style = rise
		case item.Change < 0:
			arrow = "↓"
			style = fall
		default:
			arrow = "="
			style = t.theme.Muted
		}
		abs := item.Change
		if abs < 0 {
			abs = -abs
		}
		sb.WriteString(style.Render(fmt.Sprintf("%s %.1f%s", arrow, abs, item.Unit)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *Terminal) renderTail(tl *pattern.Tail) string {
	if len(tl.Lines) == 0 {
		return ""
	}
	var sb strings.Builder
	header := tl.Label
	if tl.Omitted > 0 {
		header += fmt.Sprintf(" (last %d lines, %d omitted)", len(tl.Lines), tl.Omitted)
	}
	sb.WriteString(t.theme.Title.Render(header))
	sb.WriteString("\n")
	for _, line := range tl.Lines {
		sb.WriteString(t.theme.Muted.Render("  │ " + runewidth.Truncate(line, t.width-4, "...")))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *Terminal) renderError(e *pattern.Error) string {
	var sb strings.Builder
	mark := t.theme.Outcome(results.Error)
	head := mark.Icon + " " + e.Source
	if e.Stage != "" {
		head += " (" + e.Stage + ")"
	}
	sb.WriteString(mark.Style.Render(head))
	sb.WriteString("\n  ")
	sb.WriteString(e.Message)
	sb.WriteString("\n")
	return sb.String()
}

// nameWidth caps a name column so short terminals still fit a metric.
func (t *Terminal) nameWidth(limit int) int {
	return max(10, min(limit, t.width-20))
}

// summaryMark draws a summary line by its kind; success and error lines
// take the passed and failed outcome marks.
func (t *Terminal) summaryMark(kind string) Mark {
	switch kind {
	case "success":
		return t.theme.Outcome(results.Passed)
	case "error":
		return t.theme.Outcome(results.Failed)
	case "warning":
		return t.theme.Warning
	default:
		return t.theme.Info
	}
}

func padRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

func padLeft(s string, width int) string {
	return runewidth.FillLeft(s, width)
}
