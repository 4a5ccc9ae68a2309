package render

import (
	"fmt"
	"strings"

	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/results"
)

const maxDetailLines = 3

// Plain renders patterns as terse uncolored text for logs, CI and pipes.
// Zero ANSI codes; pattern order is kept so output is deterministic.
type Plain struct{}

// NewPlain creates a plain-text renderer.
func NewPlain() *Plain {
	return &Plain{}
}

// Render formats all patterns as plain text. The first summary decides the
// layout: batches group details under each contract, runs and history are
// rendered in order.
func (p *Plain) Render(patterns []pattern.Pattern) string {
	var head *pattern.Summary
	for _, pt := range patterns {
		if s, ok := pt.(*pattern.Summary); ok {
			head = s
			break
		}
	}
	if head != nil && head.Kind == pattern.SummaryKindBatch {
		return p.renderBatch(head, patterns)
	}

	var sb strings.Builder
	for _, pt := range patterns {
		switch v := pt.(type) {
		case *pattern.Summary:
			p.writeSummary(&sb, v)
		case *pattern.TestTable:
			sb.WriteString("\n")
			p.writeTable(&sb, v)
		case *pattern.Leaderboard:
			p.writeLeaderboard(&sb, v)
		case *pattern.Sparkline:
			p.writeSparkline(&sb, v)
		case *pattern.Comparison:
			p.writeComparison(&sb, v)
		case *pattern.Tail:
			p.writeTail(&sb, v)
		case *pattern.Error:
			p.writeError(&sb, v)
		}
	}
	return sb.String()
}

func (p *Plain) renderBatch(head *pattern.Summary, patterns []pattern.Pattern) string {
	var sb strings.Builder
	sb.WriteString(head.Label + "\n")

	bySource := make(map[string][]pattern.Pattern)
	for _, pt := range patterns {
		switch v := pt.(type) {
		case *pattern.TestTable:
			bySource[v.Source] = append(bySource[v.Source], v)
		case *pattern.Error:
			bySource[v.Source] = append(bySource[v.Source], v)
		}
	}

	for _, m := range head.Metrics {
		sb.WriteString("\n" + m.Label + ": " + m.Value + "\n")
		for _, pt := range bySource[m.Label] {
			switch v := pt.(type) {
			case *pattern.TestTable:
				for _, item := range v.Results {
					p.writeItem(&sb, item)
				}
			case *pattern.Error:
				sb.WriteString("  " + v.Message + "\n")
			}
		}
	}
	return sb.String()
}

func (p *Plain) writeSummary(sb *strings.Builder, s *pattern.Summary) {
	if s.Kind == pattern.SummaryKindRun {
		sb.WriteString("SCOPE: ")
	}
	sb.WriteString(s.Label + "\n")
	for _, m := range s.Metrics {
		sb.WriteString("  " + m.Label + ": " + m.Value + "\n")
	}
}

func (p *Plain) writeTable(sb *strings.Builder, t *pattern.TestTable) {
	sb.WriteString(t.Label + "\n")
	for _, item := range t.Results {
		p.writeItem(sb, item)
	}
}

func (p *Plain) writeItem(sb *strings.Builder, item pattern.TestTableItem) {
	dur := ""
	if item.Duration != "" {
		dur = " (" + item.Duration + ")"
	}
	sb.WriteString(fmt.Sprintf("  %s %s%s\n", statusWord(item.Status), item.Name, dur))

	if item.Details == "" {
		return
	}
	lines := strings.Split(item.Details, "\n")
	n := min(len(lines), maxDetailLines)
	for _, line := range lines[:n] {
		sb.WriteString("    " + line + "\n")
	}
	if len(lines) > maxDetailLines {
		sb.WriteString(fmt.Sprintf("    ... (%d more lines)\n", len(lines)-maxDetailLines))
	}
}

func (p *Plain) writeLeaderboard(sb *strings.Builder, l *pattern.Leaderboard) {
	if len(l.Items) == 0 {
		return
	}
	sb.WriteString("\n" + l.Label + "\n")
	for _, item := range l.Items {
		sb.WriteString(fmt.Sprintf("  %d. %s %s\n", item.Rank, item.Name, item.Metric))
	}
}

func (p *Plain) writeSparkline(sb *strings.Builder, s *pattern.Sparkline) {
	if len(s.Values) == 0 {
		return
	}
	vals := make([]string, len(s.Values))
	for i, v := range s.Values {
		vals[i] = fmt.Sprintf("%.0f%s", v, s.Unit)
	}
	sb.WriteString("\n" + s.Label + ": " + strings.Join(vals, " ") + "\n")
}

func (p *Plain) writeComparison(sb *strings.Builder, c *pattern.Comparison) {
	sb.WriteString(c.Label + "\n")
	for _, item := range c.Changes {
		sb.WriteString(fmt.Sprintf("  %s: %s -> %s (%+.1f%s)\n", item.Label, item.Before, item.After, item.Change, item.Unit))
	}
}

func (p *Plain) writeTail(sb *strings.Builder, t *pattern.Tail) {
	if len(t.Lines) == 0 {
		return
	}
	header := t.Label
	if t.Omitted > 0 {
		header += fmt.Sprintf(" (%d earlier lines omitted)", t.Omitted)
	}
	sb.WriteString("\n" + header + "\n")
	for _, line := range t.Lines {
		sb.WriteString("  | " + line + "\n")
	}
}

func (p *Plain) writeError(sb *strings.Builder, e *pattern.Error) {
	stage := ""
	if e.Stage != "" {
		stage = " [" + e.Stage + "]"
	}
	sb.WriteString(fmt.Sprintf("ERROR %s%s: %s\n", e.Source, stage, e.Message))
}

var statusWords = map[string]string{
	string(results.Passed):  "PASS",
	string(results.Failed):  "FAIL",
	string(results.Error):   "ERR ",
	string(results.Skipped): "SKIP",
	pattern.StatusWarning:   "WARN",
}

func statusWord(status string) string {
	if w, ok := statusWords[status]; ok {
		return w
	}
	return "????"
}
