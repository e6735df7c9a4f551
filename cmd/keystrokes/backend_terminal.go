package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/keystrokes/internal/binding/terminal"
	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/logging"
)

// maxViewLines bounds the scrollback kept by screenView.
const maxViewLines = 500

type terminalBackend struct {
	screen tcell.Screen
	binder *terminal.Binder
	view   *screenView
	once   sync.Once
}

func newTerminalBackend(f listenFlags, logger zerolog.Logger) (*terminalBackend, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize screen: %w", err)
	}
	screen.EnableFocus()

	view := &screenView{screen: screen}
	logger = logger.Output(zerolog.ConsoleWriter{Out: view, NoColor: true})
	return &terminalBackend{
		screen: screen,
		binder: terminal.New(screen,
			terminal.WithHoldWindow(f.hold),
			terminal.WithLogger(logging.Component(logger, "terminal")),
		),
		view: view,
	}, nil
}

func (t *terminalBackend) options(opts input.Options) input.Options {
	return t.binder.Options(opts)
}

func (t *terminalBackend) run(ctx context.Context) error {
	return t.binder.Run(ctx)
}

func (t *terminalBackend) output() io.Writer {
	return t.view
}

// logWriter sends log output to the screen while it is in raw mode.
func (t *terminalBackend) logWriter() io.Writer {
	return t.view
}

func (t *terminalBackend) close() {
	t.once.Do(t.screen.Fini)
}

// screenView prints lines at the bottom of a tcell screen, scrolling up.
type screenView struct {
	mu     sync.Mutex
	screen tcell.Screen
	lines  []string
}

func (v *screenView) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	text := strings.TrimRight(string(p), "\n")
	v.lines = append(v.lines, strings.Split(text, "\n")...)
	if over := len(v.lines) - maxViewLines; over > 0 {
		v.lines = v.lines[over:]
	}
	v.draw()
	return len(p), nil
}

func (v *screenView) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()
	lines := v.lines
	if len(lines) > h {
		lines = lines[len(lines)-h:]
	}
	for y, line := range lines {
		x := 0
		for _, r := range line {
			if x >= w {
				break
			}
			v.screen.SetContent(x, y, r, nil, tcell.StyleDefault)
			x++
		}
	}
	v.screen.Show()
}
