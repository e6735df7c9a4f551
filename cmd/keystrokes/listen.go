package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/keystrokes/internal/script"
)

func newListenCmd() *cobra.Command {
	var flags listenFlags

	cmd := &cobra.Command{
		Use:   "listen [combo]...",
		Short: "Report combos as they are pressed and released",
		Long: `listen reads keyboard input and prints every press and release of the given
combos, plus the action of every binding in the config file as it fires.`,
		Example: `  keystrokes listen "ctrl+k > ctrl+c" "a+b, c"
  keystrokes listen --config keys.toml --watch
  keystrokes listen --backend evdev --device /dev/input/event3 "shift+a"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && flags.config == "" {
				return fmt.Errorf("nothing to listen for: pass combos or --config")
			}

			s, err := newSession(cmd.Context(), flags, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, raw := range args {
				if err := s.bindEcho(raw); err != nil {
					s.backend.close()
					return err
				}
			}
			return s.run(cmd.Context())
		},
	}
	flags.bind(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		flags   listenFlags
		timeout = script.DefaultExecutionTimeout
	)

	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Run a Lua script that binds combos",
		Long: `run loads a Lua script with the keystrokes module and then listens for keys.
Scripts bind with keystrokes.bind_combo and keystrokes.bind_key, and handle
config file bindings with keystrokes.action.`,
		Example: `  keystrokes run bindings.lua --config keys.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), flags, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			engine := script.New(s.ks,
				script.WithLogger(s.logger),
				script.WithExecutionTimeout(timeout),
				script.WithKeymap(s.keymaps),
			)
			defer engine.Close()

			if err := engine.DoFile(args[0]); err != nil {
				s.backend.close()
				return fmt.Errorf("script %s: %w", args[0], err)
			}
			return s.run(cmd.Context())
		},
	}
	flags.bind(cmd)
	cmd.Flags().DurationVar(&timeout, "script-timeout", timeout, "Maximum run time of one script call")
	return cmd
}
