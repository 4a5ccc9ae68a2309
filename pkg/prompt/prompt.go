// Package prompt renders the generation prompt for a contract.
package prompt

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dkoosis/verifyapi/pkg/contract"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

// PlaceholderBaseURL is the variable name generators are told to define when
// no base URL is supplied.
const PlaceholderBaseURL = "BASE_URL"

// Request is everything a prompt is built from.
type Request struct {
	Contract      *contract.Contract
	BaseURL       string
	AuxiliaryDocs string
}

// Builder renders prompts for one suite kind.
type Builder struct {
	def suite.Definition
}

// NewBuilder creates a builder for def.
func NewBuilder(def suite.Definition) *Builder {
	return &Builder{def: def}
}

// System returns the system instruction sent alongside the prompt.
func (b *Builder) System() string {
	return "You are a helpful assistant that writes " + b.def.Framework + " code."
}

// Build renders the prompt. The contract is embedded in full; nothing is
// summarized or truncated.
func (b *Builder) Build(req Request) string {
	var sb strings.Builder

	sb.WriteString("Given the following OpenAPI spec, ")
	sb.WriteString(b.def.Instructions)
	sb.WriteString("\n")

	if req.BaseURL != "" {
		sb.WriteString("The base URL for all requests is: " + req.BaseURL + "\n")
		sb.WriteString("Use this fixed base URL; do not read it from the environment.\n")
	} else {
		sb.WriteString("No base URL is known. Define a variable named " + PlaceholderBaseURL +
			" with a placeholder value at the top of the suite and build every request URL from it.\n")
	}
	sb.WriteString("Return the complete suite in a single ```" + b.def.PrimaryTag + " fenced code block.\n")

	if b.def.NeedsKeywordDocs {
		sb.WriteString("\nKeyword documentation:\n")
		sb.WriteString(req.AuxiliaryDocs)
		if req.AuxiliaryDocs != "" && !strings.HasSuffix(req.AuxiliaryDocs, "\n") {
			sb.WriteString("\n")
		}
	}

	if req.Contract != nil {
		if ops, err := req.Contract.Operations(); err == nil && len(ops) > 0 {
			sb.WriteString("\nEndpoints to cover:\n")
			for _, op := range ops {
				sb.WriteString("- " + op.String())
				if op.Summary != "" {
					sb.WriteString(": " + op.Summary)
				}
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\nOpenAPI Spec:\n")
		sb.WriteString(req.Contract.Serialized())
		sb.WriteString("\n")
	}
	return sb.String()
}

// LoadAuxiliaryDocs reads keyword documentation once. A missing or unreadable
// file yields empty docs and a warning; it never fails generation.
func LoadAuxiliaryDocs(path string, logger *zap.Logger) (docs string, warning string) {
	if path == "" {
		warning = "no keyword documentation configured; prompting without it"
		logger.Warn(warning)
		return "", warning
	}
	// #nosec G304 -- path comes from the user's configuration
	data, err := os.ReadFile(path)
	if err != nil {
		warning = "keyword documentation unavailable: " + err.Error()
		logger.Warn("keyword documentation unavailable", zap.String("path", path), zap.Error(err))
		return "", warning
	}
	return string(data), ""
}
