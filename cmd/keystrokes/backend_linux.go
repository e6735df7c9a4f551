//go:build linux

package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/dshills/keystrokes/internal/binding/evdev"
	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/logging"
)

type evdevBackend struct {
	binder *evdev.Binder
	out    io.Writer
}

func newEvdevBackend(f listenFlags, stdout io.Writer, logger zerolog.Logger) (*evdevBackend, error) {
	return &evdevBackend{
		binder: evdev.New(
			evdev.WithDevices(f.devices...),
			evdev.WithLogger(logging.Component(logger, "evdev")),
		),
		out: stdout,
	}, nil
}

func (e *evdevBackend) options(opts input.Options) input.Options {
	return e.binder.Options(opts)
}

func (e *evdevBackend) run(ctx context.Context) error {
	return e.binder.Run(ctx)
}

func (e *evdevBackend) output() io.Writer {
	return e.out
}

func (e *evdevBackend) close() {}
