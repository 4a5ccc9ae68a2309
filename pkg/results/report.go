package results

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dkoosis/verifyapi/internal/detect"
	"github.com/dkoosis/verifyapi/pkg/stage"
)

// ErrNoReport means the runner did not leave a structured report.
var ErrNoReport = errors.New("structured report not found")

// ReadReport parses the structured report at path. A missing or empty file
// returns ErrNoReport; anything present but unusable returns
// stage.ErrReportParse.
func ReadReport(path string) ([]TestCase, detect.Format, error) {
	if path == "" {
		return nil, detect.Unknown, ErrNoReport
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, detect.Unknown, ErrNoReport
		}
		return nil, detect.Unknown, stage.Wrap(stage.Normalize, stage.ErrReportParse, errors.Wrap(err, "read report"))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, detect.Unknown, ErrNoReport
	}
	return ParseReport(data)
}

// ParseReport sniffs data and parses it with the matching parser.
func ParseReport(data []byte) ([]TestCase, detect.Format, error) {
	format := detect.Report(data)
	var (
		cases []TestCase
		err   error
	)
	switch format {
	case detect.PytestJSON:
		cases, err = parsePytestJSON(data)
	case detect.RobotXML:
		cases, err = parseRobotXML(data)
	case detect.JUnitXML:
		cases, err = parseJUnitXML(data)
	default:
		err = errors.New("unrecognized report format")
	}
	if err != nil {
		return nil, format, stage.Wrap(stage.Normalize, stage.ErrReportParse, err)
	}
	return uniqueIDs(cases), format, nil
}

// pytest-json-report

type pytestReport struct {
	Tests      *[]pytestTest     `json:"tests"`
	Collectors []pytestCollector `json:"collectors"`
}

type pytestTest struct {
	NodeID   string       `json:"nodeid"`
	Outcome  string       `json:"outcome"`
	Setup    *pytestPhase `json:"setup"`
	Call     *pytestPhase `json:"call"`
	Teardown *pytestPhase `json:"teardown"`
}

type pytestPhase struct {
	Duration float64         `json:"duration"`
	Outcome  string          `json:"outcome"`
	Crash    *pytestCrash    `json:"crash"`
	Longrepr json.RawMessage `json:"longrepr"`
}

type pytestCrash struct {
	Message string `json:"message"`
}

type pytestCollector struct {
	NodeID   string          `json:"nodeid"`
	Outcome  string          `json:"outcome"`
	Longrepr json.RawMessage `json:"longrepr"`
}

func parsePytestJSON(data []byte) ([]TestCase, error) {
	var rep pytestReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, errors.Wrap(err, "decode pytest report")
	}
	if rep.Tests == nil {
		return nil, errors.New("pytest report has no tests array")
	}

	var cases []TestCase
	// Collection errors leave no test entries; surface them so a suite that
	// does not even import is not reported as empty.
	for _, c := range rep.Collectors {
		if c.Outcome != "failed" {
			continue
		}
		id := c.NodeID
		if id == "" {
			id = "collection"
		}
		cases = append(cases, TestCase{
			ID:          "collect " + id,
			Description: "collection of " + id,
			Outcome:     Error,
			Message:     firstLine(longrepr(c.Longrepr)),
		})
	}

	for _, t := range *rep.Tests {
		tc := TestCase{
			ID:          pytestID(t.NodeID),
			Description: t.NodeID,
			Outcome:     MapOutcome(t.Outcome),
		}
		var total float64
		var timed bool
		for _, ph := range []*pytestPhase{t.Setup, t.Call, t.Teardown} {
			if ph == nil {
				continue
			}
			total += ph.Duration
			timed = true
			if tc.Message == "" && ph.Outcome != "" && ph.Outcome != "passed" {
				tc.Message = phaseMessage(ph)
			}
		}
		if timed {
			tc.Duration = seconds(total)
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

func phaseMessage(ph *pytestPhase) string {
	if ph.Crash != nil && ph.Crash.Message != "" {
		return ph.Crash.Message
	}
	return firstLine(longrepr(ph.Longrepr))
}

// longrepr is a string in current pytest-json-report but older versions
// emitted structured objects.
func longrepr(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	// pytest puts the assertion on the last "E " line
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); strings.HasPrefix(l, "E ") {
			return strings.TrimSpace(strings.TrimPrefix(l, "E "))
		}
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Robot Framework output.xml

type robotOutput struct {
	XMLName xml.Name     `xml:"robot"`
	Suites  []robotSuite `xml:"suite"`
}

type robotSuite struct {
	Name   string       `xml:"name,attr"`
	Suites []robotSuite `xml:"suite"`
	Tests  []robotTest  `xml:"test"`
}

type robotTest struct {
	Name   string      `xml:"name,attr"`
	Doc    string      `xml:"doc"`
	Status robotStatus `xml:"status"`
}

type robotStatus struct {
	Status    string `xml:"status,attr"`
	StartTime string `xml:"starttime,attr"` // RF < 7
	EndTime   string `xml:"endtime,attr"`
	Elapsed   string `xml:"elapsed,attr"` // RF >= 7
	Message   string `xml:",chardata"`
}

const robotTimeLayout = "20060102 15:04:05.000"

func parseRobotXML(data []byte) ([]TestCase, error) {
	var out robotOutput
	if err := xml.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "decode robot output")
	}
	var cases []TestCase
	var walk func(s robotSuite, path []string)
	walk = func(s robotSuite, path []string) {
		path = append(path, s.Name)
		for _, t := range s.Tests {
			desc := strings.TrimSpace(t.Doc)
			if desc == "" {
				desc = strings.Join(append(append([]string(nil), path...), t.Name), ".")
			}
			cases = append(cases, TestCase{
				ID:          t.Name,
				Description: desc,
				Outcome:     MapOutcome(t.Status.Status),
				Duration:    robotDuration(t.Status),
				Message:     strings.TrimSpace(t.Status.Message),
			})
		}
		for _, child := range s.Suites {
			walk(child, path)
		}
	}
	for _, s := range out.Suites {
		walk(s, nil)
	}
	return cases, nil
}

func robotDuration(st robotStatus) *float64 {
	if st.Elapsed != "" {
		if v, err := strconv.ParseFloat(st.Elapsed, 64); err == nil {
			return seconds(v)
		}
	}
	if st.StartTime == "" || st.EndTime == "" || st.StartTime == "N/A" {
		return nil
	}
	start, err1 := time.Parse(robotTimeLayout, st.StartTime)
	end, err2 := time.Parse(robotTimeLayout, st.EndTime)
	if err1 != nil || err2 != nil {
		return nil
	}
	return seconds(end.Sub(start).Seconds())
}

// JUnit XML

type junitNode struct {
	Suites []junitNode `xml:"testsuite"`
	Cases  []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure"`
	Error     *junitProblem `xml:"error"`
	Skipped   *junitProblem `xml:"skipped"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

func (p *junitProblem) text() string {
	if p.Message != "" {
		return p.Message
	}
	return firstLine(p.Text)
}

func parseJUnitXML(data []byte) ([]TestCase, error) {
	var root junitNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "decode junit report")
	}
	var cases []TestCase
	var walk func(n junitNode)
	walk = func(n junitNode) {
		for _, c := range n.Cases {
			tc := TestCase{ID: c.Name, Description: c.Name, Outcome: Passed}
			if c.ClassName != "" {
				tc.Description = c.ClassName + "." + c.Name
			}
			switch {
			case c.Error != nil:
				tc.Outcome, tc.Message = Error, c.Error.text()
			case c.Failure != nil:
				tc.Outcome, tc.Message = Failed, c.Failure.text()
			case c.Skipped != nil:
				tc.Outcome, tc.Message = Skipped, c.Skipped.text()
			}
			if v, err := strconv.ParseFloat(c.Time, 64); err == nil {
				tc.Duration = seconds(v)
			}
			cases = append(cases, tc)
		}
		for _, s := range n.Suites {
			walk(s)
		}
	}
	walk(root)
	return cases, nil
}
