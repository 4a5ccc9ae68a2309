// Package contract loads OpenAPI documents (JSON or YAML) into an immutable,
// canonically serialized value for the prompt builder.
package contract

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/go-openapi/spec"
	"github.com/go-openapi/swag"
	"github.com/pkg/errors"

	"github.com/dkoosis/verifyapi/internal/detect"
	"github.com/dkoosis/verifyapi/pkg/stage"
)

// Contract is a decoded API contract. Treat it as read-only.
type Contract struct {
	Path     string
	Format   detect.Format
	Document map[string]any

	canonical []byte
}

// Info is the descriptive metadata of a contract.
type Info struct {
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
	// Spec is the OpenAPI or Swagger version the document declares.
	Spec string `json:"spec,omitempty"`
}

// Operation is one method/path pair.
type Operation struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	ID      string `json:"operationId,omitempty"`
	Summary string `json:"summary,omitempty"`
}

func (o Operation) String() string { return o.Method + " " + o.Path }

// Load reads and decodes the contract at path.
func Load(path string) (*Contract, error) {
	// #nosec G304 -- the contract path is the user's explicit input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stage.Wrap(stage.Load, stage.ErrContract, errors.Wrap(err, "read contract"))
	}
	return Parse(path, data)
}

// Parse decodes contract bytes. name is only used for format sniffing.
func Parse(name string, data []byte) (*Contract, error) {
	format := detect.Document(name, data)
	var raw []byte
	switch format {
	case detect.JSON:
		raw = data
	case detect.YAML:
		doc, err := swag.BytesToYAMLDoc(data)
		if err != nil {
			return nil, stage.Wrap(stage.Load, stage.ErrContract, errors.Wrap(err, "decode yaml contract"))
		}
		js, err := swag.YAMLToJSON(doc)
		if err != nil {
			return nil, stage.Wrap(stage.Load, stage.ErrContract, errors.Wrap(err, "convert yaml contract"))
		}
		raw = js
	default:
		return nil, stage.Wrapf(stage.Load, stage.ErrContract, "empty contract %s", name)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	// Numbers stay json.Number so the canonical form reproduces them exactly.
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, stage.Wrap(stage.Load, stage.ErrContract, errors.Wrap(err, "decode contract"))
	}
	if doc == nil {
		return nil, stage.Wrapf(stage.Load, stage.ErrContract, "contract %s is not an object", name)
	}

	canonical, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, stage.Wrap(stage.Load, stage.ErrContract, errors.Wrap(err, "serialize contract"))
	}
	return &Contract{Path: name, Format: format, Document: doc, canonical: canonical}, nil
}

// Serialized returns the canonical JSON form of the whole document. Map keys
// are sorted, so the output is deterministic for a given document.
func (c *Contract) Serialized() string {
	return string(c.canonical)
}

// Info extracts title, version and declared spec version.
func (c *Contract) Info() Info {
	var info Info
	if v, ok := c.Document["openapi"].(string); ok {
		info.Spec = "OpenAPI " + v
	} else if v, ok := c.Document["swagger"].(string); ok {
		info.Spec = "Swagger " + v
	}
	sw, err := c.swagger()
	if err == nil && sw.Info != nil {
		info.Title = sw.Info.Title
		info.Version = sw.Info.Version
	}
	return info
}

// Operations lists every operation sorted by path then method. Swagger 2.0 and
// OpenAPI 3 share the paths object layout, so one decoder serves both.
func (c *Contract) Operations() ([]Operation, error) {
	sw, err := c.swagger()
	if err != nil {
		return nil, err
	}
	if sw.Paths == nil {
		return nil, nil
	}
	var ops []Operation
	for path, item := range sw.Paths.Paths {
		for _, m := range []struct {
			method string
			op     *spec.Operation
		}{
			{"GET", item.Get},
			{"PUT", item.Put},
			{"POST", item.Post},
			{"DELETE", item.Delete},
			{"OPTIONS", item.Options},
			{"HEAD", item.Head},
			{"PATCH", item.Patch},
		} {
			if m.op == nil {
				continue
			}
			ops = append(ops, Operation{
				Method:  m.method,
				Path:    path,
				ID:      m.op.ID,
				Summary: strings.TrimSpace(m.op.Summary),
			})
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return methodRank(ops[i].Method) < methodRank(ops[j].Method)
	})
	return ops, nil
}

func (c *Contract) swagger() (*spec.Swagger, error) {
	var sw spec.Swagger
	if err := json.Unmarshal(c.canonical, &sw); err != nil {
		return nil, errors.Wrap(err, "decode paths")
	}
	return &sw, nil
}

var methodOrder = map[string]int{"GET": 0, "POST": 1, "PUT": 2, "PATCH": 3, "DELETE": 4, "HEAD": 5, "OPTIONS": 6}

func methodRank(m string) int {
	return methodOrder[m]
}
