package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchDebounce absorbs the burst of events editors emit for one save.
const watchDebounce = 300 * time.Millisecond

func (a *app) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <contract>",
		Short: "Rerun the pipeline whenever the contract changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			if err := a.runOne(ctx, path); err != nil {
				return err
			}
			err := watchFile(ctx, path, watchDebounce, a.logger, func() error {
				a.logger.Info("contract changed, rerunning", zap.String("contract", path))
				return a.runOne(ctx, path)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// watchFile calls onChange after path was written, created or renamed into
// place, once per burst of events within debounce. It watches the parent
// directory so editors that replace the file are followed. It returns
// ctx.Err() when ctx is done, or the first error from onChange.
func watchFile(ctx context.Context, path string, debounce time.Duration, logger *zap.Logger, onChange func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			if err := onChange(); err != nil {
				return err
			}
		}
	}
}
