package render

import (
	"encoding/json"

	"github.com/dkoosis/verifyapi/pkg/pattern"
	"github.com/dkoosis/verifyapi/pkg/results"
)

// JSON renders a report as one document for automation: what was run and
// how each run ended, followed by the patterns a terminal would show.
type JSON struct{}

// NewJSON creates a JSON renderer.
func NewJSON() *JSON {
	return &JSON{}
}

// jsonOutput is the top-level document. Status is passed only when every
// run passed; history listings carry no status.
type jsonOutput struct {
	Version  string           `json:"version"`
	Kind     string           `json:"kind,omitempty"`
	Label    string           `json:"label,omitempty"`
	Status   string           `json:"status,omitempty"`
	Runs     []pattern.RunRef `json:"runs,omitempty"`
	Patterns []jsonPattern    `json:"patterns"`
}

type jsonPattern struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Render formats all patterns as JSON.
func (j *JSON) Render(patterns []pattern.Pattern) string {
	out := jsonOutput{
		Version:  FormatVersion,
		Patterns: make([]jsonPattern, 0, len(patterns)),
	}

	var head *pattern.Summary
	var aborted []pattern.RunRef
	for _, p := range patterns {
		switch v := p.(type) {
		case *pattern.Summary:
			if head == nil {
				head = v
			}
		case *pattern.Error:
			aborted = append(aborted, pattern.RunRef{
				Contract: v.Source, Status: pattern.RunAborted, Stage: v.Stage, Error: v.Message,
			})
		}
		out.Patterns = append(out.Patterns, jsonPattern{
			Type: string(p.Type()),
			Data: p,
		})
	}

	switch {
	case head != nil:
		out.Kind = string(head.Kind)
		out.Label = head.Label
		out.Runs = head.Runs
	case len(aborted) > 0:
		// A single run that failed before reporting has no summary.
		out.Kind = string(pattern.SummaryKindRun)
		out.Runs = aborted
	}
	if out.Kind != string(pattern.SummaryKindHistory) && len(out.Runs) > 0 {
		out.Status = overallStatus(out.Runs)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		errJSON, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(errJSON)
	}
	return string(data) + "\n"
}

func overallStatus(runs []pattern.RunRef) string {
	for _, r := range runs {
		if r.Status != string(results.StatusPassed) {
			return string(results.StatusFailed)
		}
	}
	return string(results.StatusPassed)
}
