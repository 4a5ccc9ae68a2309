package generate

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.5-flash"

// Gemini uses the Google GenAI SDK against the Gemini API backend.
type Gemini struct {
	p Params
}

// NewGemini creates a Gemini client. The SDK client itself is created per
// call so the request context governs its setup.
func NewGemini(p Params) (*Gemini, error) {
	p = p.withDefaults()
	if p.APIKey == "" {
		return nil, errors.New("gemini: API key not configured (set GEMINI_API_KEY)")
	}
	if p.Model == "" {
		p.Model = geminiDefaultModel
	}
	return &Gemini{p: p}, nil
}

func (c *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	c.p.Logger.Debug("sending prompt", zap.String("provider", ProviderGemini),
		zap.String("model", c.p.Model), zap.Int("prompt_len", len(prompt)))

	cfg := &genai.ClientConfig{
		APIKey:     c.p.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.p.HTTPClient,
	}
	if c.p.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.p.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", failed(errors.Wrap(err, "create gemini client"))
	}

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.p.Temperature)),
		MaxOutputTokens: int32(c.p.MaxTokens),
	}
	if c.p.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(c.p.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, c.p.Model, genai.Text(prompt), gc)
	if err != nil {
		return "", failed(errors.Wrap(err, "gemini request failed"))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", failedf("response has no candidates")
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", failedf("no completion returned")
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		c.p.Logger.Warn("response truncated at max tokens", zap.Int("max_tokens", c.p.MaxTokens))
	}
	c.p.Logger.Debug("received response", zap.String("provider", ProviderGemini),
		zap.Duration("elapsed", time.Since(start)), zap.Int("response_len", len(text)))
	return text, nil
}
