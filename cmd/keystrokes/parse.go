package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/keystrokes/internal/input/combo"
)

// parsedCombo is the document printed by the parse command.
type parsedCombo struct {
	Input      string       `yaml:"input"`
	Normalized string       `yaml:"normalized"`
	Sequences  [][][]string `yaml:"sequences"`
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <combo>...",
		Short: "Print the sequences, units and keys of each combo",
		Example: `  keystrokes parse "ctrl+k > ctrl+c"
  keystrokes parse "a+b, c" "\+"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]parsedCombo, 0, len(args))
			var errs []error
			for _, raw := range args {
				c, err := combo.Parse(raw)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				docs = append(docs, parsedCombo{
					Input:      raw,
					Normalized: c.String(),
					Sequences:  sequences(c),
				})
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			for _, doc := range docs {
				if err := enc.Encode(doc); err != nil {
					return fmt.Errorf("encode: %w", err)
				}
			}
			if err := enc.Close(); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			return errors.Join(errs...)
		},
	}
}

func sequences(c combo.Combo) [][][]string {
	out := make([][][]string, len(c))
	for i, seq := range c {
		out[i] = make([][]string, len(seq))
		for j, unit := range seq {
			out[i][j] = []string(unit)
		}
	}
	return out
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "normalize <combo>...",
		Short:   "Print the normalized form of each combo",
		Example: `  keystrokes normalize "Ctrl + S" "a>b , c"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, raw := range args {
				norm, err := combo.Normalize(raw)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), norm)
			}
			return errors.Join(errs...)
		},
	}
}
