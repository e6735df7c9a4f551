//go:build !linux

package main

import (
	"errors"
	"io"

	"github.com/rs/zerolog"
)

func newEvdevBackend(listenFlags, io.Writer, zerolog.Logger) (backend, error) {
	return nil, errors.New("the evdev backend is only available on linux")
}
