package generate

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Replay returns a previously archived response instead of calling a
// provider. It makes runs reproducible and works offline.
type Replay struct {
	path   string
	logger *zap.Logger
}

func NewReplay(p Params) (*Replay, error) {
	p = p.withDefaults()
	if p.ReplayPath == "" {
		return nil, errors.New("replay: no response file configured")
	}
	return &Replay{path: p.ReplayPath, logger: p.Logger}, nil
}

func (r *Replay) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", failed(err)
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return "", failed(errors.Wrapf(err, "read replay file %s", r.path))
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", failedf("replay file %s is empty", r.path)
	}
	r.logger.Debug("replaying response", zap.String("path", r.path), zap.Int("response_len", len(data)))
	return string(data), nil
}
