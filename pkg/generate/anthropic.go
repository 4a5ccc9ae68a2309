package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com/v1"
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-sonnet-4-5"
)

// Anthropic calls the Messages API directly.
type Anthropic struct {
	p Params
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropic creates an Anthropic client.
func NewAnthropic(p Params) (*Anthropic, error) {
	p = p.withDefaults()
	if p.APIKey == "" {
		return nil, errors.New("anthropic: API key not configured (set ANTHROPIC_API_KEY)")
	}
	if p.BaseURL == "" {
		p.BaseURL = anthropicBaseURL
	}
	if p.Model == "" {
		p.Model = anthropicDefaultModel
	}
	return &Anthropic{p: p}, nil
}

// Generate sends prompt as the single user message.
func (c *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	c.p.Logger.Debug("sending prompt", zap.String("provider", ProviderAnthropic),
		zap.String("model", c.p.Model), zap.Int("prompt_len", len(prompt)))

	body, err := json.Marshal(anthropicRequest{
		Model:       c.p.Model,
		MaxTokens:   c.p.MaxTokens,
		System:      c.p.System,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Temperature: c.p.Temperature,
	})
	if err != nil {
		return "", failed(errors.Wrap(err, "marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.p.BaseURL, "/")+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", failed(errors.Wrap(err, "create request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.p.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.p.HTTPClient.Do(req)
	if err != nil {
		return "", failed(errors.Wrap(err, "anthropic request failed"))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", failed(errors.Wrap(err, "read response"))
	}
	if resp.StatusCode != http.StatusOK {
		return "", failedf("anthropic returned status %d: %s", resp.StatusCode, truncate(string(data), 300))
	}

	var out anthropicResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", failed(errors.Wrap(err, "parse response"))
	}
	if out.Error != nil {
		return "", failedf("anthropic API error: %s", out.Error.Message)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", failedf("no completion returned")
	}
	if out.StopReason == "max_tokens" {
		c.p.Logger.Warn("response truncated at max tokens", zap.Int("max_tokens", c.p.MaxTokens))
	}
	c.p.Logger.Debug("received response", zap.String("provider", ProviderAnthropic),
		zap.Duration("elapsed", time.Since(start)), zap.Int("response_len", len(text)))
	return text, nil
}
