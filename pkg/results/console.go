package results

import (
	"regexp"
	"strings"

	"github.com/dkoosis/verifyapi/pkg/suite"
)

// ParseConsole recovers test cases from runner stdout. Lines that match no
// known shape are ignored; it never fails.
func ParseConsole(kind suite.Kind, stdout string) []TestCase {
	switch kind {
	case suite.Pytest:
		return parsePytestConsole(stdout)
	case suite.Robot:
		return parseRobotConsole(stdout)
	default:
		return nil
	}
}

var (
	// test_api.py::test_ping PASSED                                [ 50%]
	pytestVerboseLine = regexp.MustCompile(`^(\S+::\S+)\s+(PASSED|FAILED|SKIPPED|ERROR|XFAIL|XPASS)\b`)
	// FAILED test_api.py::test_ping - assert 404 == 200
	pytestSummaryLine = regexp.MustCompile(`^(PASSED|FAILED|SKIPPED|ERROR|XFAIL|XPASS)\s+(\S+::\S+)(?:\s+-\s+(.*))?$`)
)

func parsePytestConsole(stdout string) []TestCase {
	var cases []TestCase
	index := map[string]int{}

	add := func(nodeid, status, msg string) {
		id := pytestID(nodeid)
		if i, ok := index[id]; ok {
			if cases[i].Message == "" {
				cases[i].Message = msg
			}
			return
		}
		index[id] = len(cases)
		cases = append(cases, TestCase{
			ID:          id,
			Description: nodeid,
			Outcome:     MapOutcome(status),
			Message:     msg,
		})
	}

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, " \r")
		if m := pytestVerboseLine.FindStringSubmatch(line); m != nil {
			add(m[1], m[2], "")
			continue
		}
		if m := pytestSummaryLine.FindStringSubmatch(line); m != nil {
			add(m[2], m[1], strings.TrimSpace(m[3]))
		}
	}
	return cases
}

// pytestID drops the module path from a node id; every run has one file.
func pytestID(nodeid string) string {
	if i := strings.Index(nodeid, "::"); i >= 0 && strings.HasSuffix(nodeid[:i], ".py") {
		return nodeid[i+2:]
	}
	return nodeid
}

var (
	// Get Ping Returns 200                                         | PASS |
	robotResultLine = regexp.MustCompile(`^(.*\S)\s+\|\s+(PASS|FAIL|SKIP|NOT RUN)\s+\|\s*$`)
	// 2 tests, 1 passed, 1 failed
	robotStatsLine = regexp.MustCompile(`^\d+ tests?, \d+ passed, \d+ failed`)
)

func parseRobotConsole(stdout string) []TestCase {
	lines := strings.Split(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n")
	var cases []TestCase
	for i := 0; i < len(lines); i++ {
		m := robotResultLine.FindStringSubmatch(strings.TrimRight(lines[i], " "))
		if m == nil {
			continue
		}
		// Suite totals are followed by a stats line.
		msg, next := robotMessage(lines, i+1)
		if isSuiteTotals(msg) {
			i = next - 1
			continue
		}
		cases = append(cases, TestCase{
			ID:          strings.TrimSpace(m[1]),
			Description: strings.TrimSpace(m[1]),
			Outcome:     MapOutcome(m[2]),
			Message:     msg,
		})
		i = next - 1
	}
	return uniqueIDs(cases)
}

// robotMessage collects the lines after a result line up to the next
// separator or result line.
func robotMessage(lines []string, from int) (string, int) {
	var msg []string
	i := from
	for ; i < len(lines); i++ {
		l := strings.TrimRight(lines[i], " ")
		if strings.HasPrefix(l, "---") || strings.HasPrefix(l, "===") || robotResultLine.MatchString(l) {
			break
		}
		if strings.TrimSpace(l) != "" {
			msg = append(msg, l)
		}
	}
	return strings.Join(msg, "\n"), i
}

func isSuiteTotals(msg string) bool {
	for _, l := range strings.Split(msg, "\n") {
		if robotStatsLine.MatchString(strings.TrimSpace(l)) {
			return true
		}
	}
	return false
}
