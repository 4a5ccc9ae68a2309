// Package generate sends prompts to an LLM provider and returns the raw text
// of its answer. Clients never retry; WithRetry is for callers that want it.
package generate

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dkoosis/verifyapi/pkg/stage"
)

// Client turns a prompt into raw response text.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderReplay    = "replay"
)

// Defaults favor deterministic, syntactically valid output.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.2
	DefaultTimeout     = 5 * time.Minute
)

// Params configures a provider client.
type Params struct {
	APIKey      string
	BaseURL     string // provider API root; empty = provider default
	Model       string
	System      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// ReplayPath is the archived response a replay client returns.
	ReplayPath string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (p Params) withDefaults() Params {
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.HTTPClient == nil {
		p.HTTPClient = &http.Client{Timeout: p.Timeout}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// New builds the client for provider.
func New(provider string, p Params) (Client, error) {
	p = p.withDefaults()
	switch strings.ToLower(provider) {
	case ProviderAnthropic, "":
		return NewAnthropic(p)
	case ProviderOpenAI:
		return NewOpenAI(p)
	case ProviderGemini:
		return NewGemini(p)
	case ProviderReplay:
		return NewReplay(p)
	default:
		return nil, errors.Errorf("unknown provider %q (expected anthropic, openai, gemini, replay)", provider)
	}
}

func failed(err error) error {
	return stage.Wrap(stage.Generate, stage.ErrGeneration, err)
}

func failedf(format string, args ...any) error {
	return stage.Wrapf(stage.Generate, stage.ErrGeneration, format, args...)
}

// truncate keeps provider error bodies readable in logs and messages.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// WithRetry retries failed generations up to attempts times in total. Each
// attempt is an independent call with the same prompt. Context cancellation
// stops retrying.
func WithRetry(c Client, attempts int, backoff time.Duration, logger *zap.Logger) Client {
	if attempts <= 1 {
		return c
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retrying{next: c, attempts: attempts, backoff: backoff, logger: logger}
}

type retrying struct {
	next     Client
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

func (r *retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			wait := r.backoff * time.Duration(1<<uint(i-1))
			r.logger.Warn("retrying generation", zap.Int("attempt", i+1), zap.Duration("wait", wait), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", failed(errors.Wrap(ctx.Err(), "retry aborted"))
			case <-time.After(wait):
			}
		}
		out, err := r.next.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", lastErr
}
