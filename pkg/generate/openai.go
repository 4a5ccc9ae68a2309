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
	openAIBaseURL      = "https://api.openai.com/v1"
	openAIDefaultModel = "gpt-4o"
)

// OpenAI calls the Chat Completions API.
type OpenAI struct {
	p Params
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(p Params) (*OpenAI, error) {
	p = p.withDefaults()
	if p.APIKey == "" {
		return nil, errors.New("openai: API key not configured (set OPENAI_API_KEY)")
	}
	if p.BaseURL == "" {
		p.BaseURL = openAIBaseURL
	}
	if p.Model == "" {
		p.Model = openAIDefaultModel
	}
	return &OpenAI{p: p}, nil
}

// Generate sends the system instruction and prompt as a two-message chat.
func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	c.p.Logger.Debug("sending prompt", zap.String("provider", ProviderOpenAI),
		zap.String("model", c.p.Model), zap.Int("prompt_len", len(prompt)))

	var msgs []openAIMessage
	if c.p.System != "" {
		msgs = append(msgs, openAIMessage{Role: "system", Content: c.p.System})
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(openAIRequest{
		Model:       c.p.Model,
		Messages:    msgs,
		MaxTokens:   c.p.MaxTokens,
		Temperature: c.p.Temperature,
	})
	if err != nil {
		return "", failed(errors.Wrap(err, "marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.p.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", failed(errors.Wrap(err, "create request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.p.APIKey)

	resp, err := c.p.HTTPClient.Do(req)
	if err != nil {
		return "", failed(errors.Wrap(err, "openai request failed"))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", failed(errors.Wrap(err, "read response"))
	}
	if resp.StatusCode != http.StatusOK {
		return "", failedf("openai returned status %d: %s", resp.StatusCode, truncate(string(data), 300))
	}

	var out openAIResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", failed(errors.Wrap(err, "parse response"))
	}
	if out.Error != nil {
		return "", failedf("openai API error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return "", failedf("response has no message content")
	}
	text := *out.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", failedf("no completion returned")
	}
	if out.Choices[0].FinishReason == "length" {
		c.p.Logger.Warn("response truncated at max tokens", zap.Int("max_tokens", c.p.MaxTokens))
	}
	c.p.Logger.Debug("received response", zap.String("provider", ProviderOpenAI),
		zap.Duration("elapsed", time.Since(start)), zap.Int("response_len", len(text)))
	return text, nil
}
