// Package detect sniffs contract documents and runner reports to determine
// their format.
package detect

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"path/filepath"
	"strings"
)

// Format represents a recognized input format.
type Format int

const (
	Unknown    Format = iota
	JSON              // JSON document
	YAML              // YAML document
	PytestJSON        // pytest-json-report document
	RobotXML          // Robot Framework output.xml
	JUnitXML          // JUnit/xUnit XML
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	case PytestJSON:
		return "pytest-json"
	case RobotXML:
		return "robot-xml"
	case JUnitXML:
		return "junit-xml"
	default:
		return "unknown"
	}
}

// Document determines whether a contract is JSON or YAML. The file extension
// wins when it is conclusive; otherwise the content decides. Any non-JSON
// document is treated as YAML since YAML is a superset.
func Document(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return YAML
	case ".json":
		return JSON
	}
	data = trimLeft(data)
	if len(data) == 0 {
		return Unknown
	}
	if data[0] == '{' && json.Valid(data) {
		return JSON
	}
	return YAML
}

// Report examines a runner report to determine its format.
func Report(data []byte) Format {
	data = trimLeft(data)
	if len(data) == 0 {
		return Unknown
	}
	switch data[0] {
	case '{':
		if isPytestJSON(data) {
			return PytestJSON
		}
	case '<':
		return sniffXML(data)
	}
	return Unknown
}

func isPytestJSON(data []byte) bool {
	var shape struct {
		Tests    []json.RawMessage `json:"tests"`
		ExitCode *int              `json:"exitcode"`
		Summary  json.RawMessage   `json:"summary"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return false
	}
	return shape.Tests != nil || shape.ExitCode != nil || shape.Summary != nil
}

// sniffXML looks only at the root element name, so truncated documents still
// sniff correctly and fail later in the real parser.
func sniffXML(data []byte) Format {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return Unknown
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch se.Name.Local {
			case "robot":
				return RobotXML
			case "testsuites", "testsuite":
				return JUnitXML
			default:
				return Unknown
			}
		}
	}
}

func trimLeft(data []byte) []byte {
	// UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return bytes.TrimLeft(data, " \t\r\n")
}
