package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the file must stay quiet before it is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	logger   zerolog.Logger
	onError  func(error)
}

// WithDebounce sets the debounce duration for rapid changes.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithLogger sets the logger used for reload messages.
func WithLogger(l zerolog.Logger) WatchOption {
	return func(c *watchConfig) {
		c.logger = l
	}
}

// WithErrorHandler receives files that fail to load and watcher errors. By
// default they are only logged.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(c *watchConfig) {
		c.onError = fn
	}
}

// Watch reloads path whenever it is written or created and passes each
// successfully loaded File to fn. It blocks until ctx is done. The parent
// directory is watched so editors that replace the file atomically are seen.
func Watch(ctx context.Context, path string, fn func(*File), opts ...WatchOption) error {
	cfg := watchConfig{
		debounce: DefaultDebounce,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if _, err := FormatFromPath(absPath); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(absPath), err)
	}

	fail := func(err error) {
		cfg.logger.Warn().Err(err).Str("path", absPath).Msg("config reload failed")
		if cfg.onError != nil {
			cfg.onError(err)
		}
	}

	timer := time.NewTimer(cfg.debounce)
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
			if filepath.Clean(ev.Name) != absPath || !isReloadOp(ev.Op) {
				continue
			}
			timer.Reset(cfg.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fail(err)

		case <-timer.C:
			f, err := Load(absPath)
			if err != nil {
				fail(err)
				continue
			}
			cfg.logger.Info().
				Str("path", absPath).
				Int("bindings", len(f.Bindings)).
				Msg("config reloaded")
			fn(f)
		}
	}
}

func isReloadOp(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create)
}
