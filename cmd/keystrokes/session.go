package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/keystrokes/internal/binding/terminal"
	"github.com/dshills/keystrokes/internal/config"
	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/combo"
	"github.com/dshills/keystrokes/internal/input/handler"
	"github.com/dshills/keystrokes/internal/keymap"
	"github.com/dshills/keystrokes/internal/logging"
)

// configKeymap is the keymap name used for bindings from the config file.
const configKeymap = "config"

// listenFlags are shared by the listen and run commands.
type listenFlags struct {
	backend string
	config  string
	watch   bool
	devices []string
	hold    time.Duration
	quit    string
}

func (f *listenFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.backend, "backend", "b", "terminal", "Input backend (terminal, evdev)")
	fs.StringVarP(&f.config, "config", "c", "", "Path to a TOML or YAML bindings file")
	fs.BoolVarP(&f.watch, "watch", "w", false, "Reload the config file when it changes")
	fs.StringSliceVar(&f.devices, "device", nil, "evdev device path (default: every keyboard)")
	fs.DurationVar(&f.hold, "hold", terminal.DefaultHoldWindow, "How long a terminal key counts as held")
	fs.StringVar(&f.quit, "quit", "ctrl+c", "Combo that stops listening (empty to disable)")
}

func (f *listenFlags) validate() error {
	if f.watch && f.config == "" {
		return errors.New("--watch requires --config")
	}
	if f.quit != "" {
		if _, err := combo.Parse(f.quit); err != nil {
			return fmt.Errorf("--quit: %w", err)
		}
	}
	return nil
}

// backend is an environment the session reads keys from.
type backend interface {
	// options installs the backend's binders.
	options(input.Options) input.Options
	run(ctx context.Context) error
	// output is where fired combos are reported.
	output() io.Writer
	close()
}

func newBackend(f listenFlags, stdout io.Writer, logger zerolog.Logger) (backend, error) {
	switch f.backend {
	case "terminal":
		return newTerminalBackend(f, logger)
	case "evdev":
		return newEvdevBackend(f, stdout, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q (must be terminal or evdev)", f.backend)
	}
}

// session owns a dispatcher driven by an event loop and fed by a backend.
type session struct {
	flags   listenFlags
	logger  zerolog.Logger
	backend backend
	loop    *input.Loop
	ks      *input.Keystrokes
	keymaps *keymap.Registry
	out     io.Writer

	// cancel stops run. It is set before the loop starts.
	cancel context.CancelFunc
}

func newSession(ctx context.Context, f listenFlags, stdout io.Writer) (*session, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	logger := *logging.FromContext(ctx)

	var file *config.File
	if f.config != "" {
		var err error
		if file, err = config.Load(f.config); err != nil {
			return nil, err
		}
	}

	b, err := newBackend(f, stdout, logger)
	if err != nil {
		return nil, err
	}
	if lw, ok := b.(interface{ logWriter() io.Writer }); ok {
		logger = logger.Output(zerolog.ConsoleWriter{Out: lw.logWriter(), NoColor: true})
	}

	s := &session{
		flags:   f,
		logger:  logger,
		backend: b,
		loop:    input.NewLoop(64),
		out:     b.output(),
	}

	opts := input.DefaultOptions()
	opts.Logger = logging.Component(logger, "dispatcher")
	if file != nil {
		opts = file.Apply(opts)
	}
	opts = s.loop.Bind(b.options(opts))
	s.ks = input.New(opts)
	s.keymaps = keymap.NewRegistry(s.ks,
		keymap.WithLogger(logging.Component(logger, "keymap")),
		keymap.WithFallback(s.report),
	)

	if file != nil {
		if _, err := s.keymaps.Register(keymap.FromConfig(configKeymap, file)); err != nil {
			b.close()
			return nil, err
		}
	}
	if f.quit != "" {
		err := s.ks.BindKeyCombo(f.quit, &handler.Callbacks[combo.Event]{
			OnPressed: func(combo.Event) { s.stop() },
		})
		if err != nil {
			b.close()
			return nil, err
		}
	}
	return s, nil
}

// bindEcho reports every press and release of raw.
func (s *session) bindEcho(raw string) error {
	return s.ks.BindKeyCombo(raw, &handler.Callbacks[combo.Event]{
		OnPressed: func(e combo.Event) {
			fmt.Fprintf(s.out, "pressed  %s (%s)\n", e.Combo, e.FinalKeyEvent.Key)
		},
		OnReleased: func(e combo.Event) {
			fmt.Fprintf(s.out, "released %s (%s)\n", e.Combo, e.FinalKeyEvent.Key)
		},
	})
}

// report prints an action that has no handler of its own.
func (s *session) report(inv keymap.Invocation) {
	line := fmt.Sprintf("%s  %s", inv.Binding.Action, inv.Combo)
	if inv.Binding.Description != "" {
		line += "  # " + inv.Binding.Description
	}
	fmt.Fprintln(s.out, line)
}

func (s *session) stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// reload replaces the config keymap. It runs on the loop goroutine.
func (s *session) reload(f *config.File) {
	if f.SequenceTimeout > 0 {
		s.ks.SetSequenceTimeout(time.Duration(f.SequenceTimeout))
	}
	ids, err := s.keymaps.Register(keymap.FromConfig(configKeymap, f))
	if err != nil {
		s.logger.Error().Err(err).Msg("config bindings rejected")
		return
	}
	s.logger.Info().Int("bindings", len(ids)).Msg("config bindings replaced")
}

// run drives the loop, the backend and the config watcher until ctx is done,
// the quit combo is pressed or one of them fails.
func (s *session) run(ctx context.Context) error {
	defer s.backend.close()

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop.Run(gctx)
	})
	g.Go(func() error {
		err := s.backend.run(gctx)
		// A backend that stops on its own ends the session.
		cancel()
		return err
	})
	if s.flags.watch {
		g.Go(func() error {
			return config.Watch(gctx, s.flags.config, func(f *config.File) {
				_ = s.loop.Post(func() { s.reload(f) })
			},
				config.WithLogger(logging.Component(s.logger, "config")),
			)
		})
	}

	s.logger.Info().Str("backend", s.flags.backend).Msg("listening")
	err := g.Wait()
	if errors.Is(err, context.Canceled) && parent.Err() == nil {
		return nil
	}
	return err
}
