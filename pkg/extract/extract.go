// Package extract recovers one runnable suite document from free-form
// generator output. Each strategy is a pure attempt; the first that matches
// wins.
package extract

import (
	"strings"

	"github.com/dkoosis/verifyapi/pkg/stage"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

// Strategy names the attempt that produced a Suite.
type Strategy string

const (
	StrategyPrimaryFence  Strategy = "primary-fence"
	StrategyAliasFence    Strategy = "alias-fence"
	StrategySectionHeader Strategy = "section-header"
	StrategyGenericFence  Strategy = "generic-fence"
	StrategyRaw           Strategy = "raw"
)

// Suite is the extracted document. Text is never empty.
type Suite struct {
	Kind     suite.Kind
	Text     string
	Strategy Strategy
}

type attempt func(raw string, def suite.Definition) (string, bool)

var chain = []struct {
	strategy Strategy
	try      attempt
}{
	{StrategyPrimaryFence, func(raw string, def suite.Definition) (string, bool) {
		return firstFence(raw, []string{def.PrimaryTag})
	}},
	{StrategyAliasFence, func(raw string, def suite.Definition) (string, bool) {
		return firstFence(raw, def.AliasTags)
	}},
	{StrategySectionHeader, sectionByHeader},
	{StrategyGenericFence, func(raw string, def suite.Definition) (string, bool) {
		return firstFence(raw, def.GenericTags)
	}},
	{StrategyRaw, func(raw string, _ suite.Definition) (string, bool) {
		return raw, true
	}},
}

// Extract runs the fallback chain for kind over raw.
func Extract(raw string, kind suite.Kind) (Suite, error) {
	def, err := suite.Lookup(kind)
	if err != nil {
		return Suite{}, stage.Wrap(stage.Extract, stage.ErrExtraction, err)
	}
	for _, step := range chain {
		text, ok := step.try(raw, def)
		if !ok {
			continue
		}
		if strings.TrimSpace(text) == "" {
			return Suite{}, stage.Wrapf(stage.Extract, stage.ErrExtraction,
				"%s strategy produced empty %s suite", step.strategy, kind)
		}
		return Suite{Kind: kind, Text: text, Strategy: step.strategy}, nil
	}
	// unreachable: the raw step always matches
	return Suite{}, stage.Wrapf(stage.Extract, stage.ErrExtraction, "no strategy matched")
}

// fence is one fenced block found in the text.
type fence struct {
	tag  string
	body string
}

// fences scans raw line by line for ``` blocks. An unclosed block runs to the
// end of the text.
func fences(raw string) []fence {
	lines := strings.Split(raw, "\n")
	var out []fence
	for i := 0; i < len(lines); i++ {
		open := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(open, "```") {
			continue
		}
		tag := fenceTag(open)
		var body []string
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
				break
			}
			body = append(body, lines[j])
		}
		out = append(out, fence{tag: tag, body: strings.Join(body, "\n")})
		i = j
	}
	return out
}

// fenceTag returns the lowercased first word of the info string.
func fenceTag(open string) string {
	info := strings.TrimSpace(strings.TrimLeft(open, "`"))
	if f := strings.Fields(info); len(f) > 0 {
		info = f[0]
	}
	return strings.ToLower(info)
}

func firstFence(raw string, tags []string) (string, bool) {
	if len(tags) == 0 {
		return "", false
	}
	for _, f := range fences(raw) {
		for _, t := range tags {
			if f.tag == strings.ToLower(t) {
				return stripBlank(f.body), true
			}
		}
	}
	return "", false
}

// sectionByHeader finds the first line equal to a section header and returns
// the text from it up to the first trailing marker after it.
func sectionByHeader(raw string, def suite.Definition) (string, bool) {
	if len(def.SectionHeaders) == 0 {
		return "", false
	}
	start := -1
	offset := 0
	for _, line := range strings.SplitAfter(raw, "\n") {
		trimmed := strings.TrimRight(line, " \t\r\n")
		for _, h := range def.SectionHeaders {
			if trimmed == h {
				start = offset
				break
			}
		}
		if start >= 0 {
			break
		}
		offset += len(line)
	}
	if start < 0 {
		return "", false
	}

	body := raw[start:]
	end := len(body)
	for _, m := range def.TrailingMarkers {
		if i := strings.Index(body, m); i > 0 && i < end {
			end = i
		}
	}
	return stripBlank(body[:end]), true
}

// stripBlank drops leading blank lines and trailing whitespace. Indentation of
// the first non-blank line is preserved.
func stripBlank(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	for {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 || strings.TrimSpace(s[:nl]) != "" {
			break
		}
		s = s[nl+1:]
	}
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
