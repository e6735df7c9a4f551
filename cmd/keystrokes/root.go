package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/keystrokes/internal/logging"
)

type rootFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd(version, commit, date string) *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:   "keystrokes",
		Short: "Parse key combos and bind them to keyboard input",
		Long: `keystrokes parses key combo strings such as "ctrl+k > ctrl+c, s" and
matches them against live keyboard input from a terminal or, on Linux, from
evdev input devices.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			switch flags.logFormat {
			case "json", "console":
			default:
				return fmt.Errorf("invalid log format %q (must be json or console)", flags.logFormat)
			}

			cfg := logging.DefaultConfig()
			cfg.Level = level
			cfg.Format = flags.logFormat
			cfg.Output = cmd.ErrOrStderr()
			cmd.SetContext(logging.WithContext(cmd.Context(), logging.New(cfg)))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "console", "Log format (json, console)")

	root.AddCommand(
		newParseCmd(),
		newNormalizeCmd(),
		newListenCmd(),
		newRunCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "keystrokes %s\n", version)
				fmt.Fprintf(out, "commit: %s\n", commit)
				fmt.Fprintf(out, "built: %s\n", date)
			},
		},
	)
	return root
}
