package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/blockdoc/internal/textdiff"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	File string
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a batch of block actions",
		Long: `Apply a batch of block actions to the document and journal the change.

The batch is atomic: if any action fails, nothing is journaled. A block's
delta is its proposed full text; it is diffed against the stored text.

Exit codes:
  0 - Batch applied
  1 - Batch rejected (the error kind is reported)
  2 - Command error (unreadable file, journal, or schema)

Examples:
  blockdoc apply --file edits.yaml
  blockdoc apply --file edits.json --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "actions file, JSON or YAML (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runApply(opts *ApplyOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	actions, err := LoadActions(opts.File)
	if err != nil {
		return formatter.Fail("failed to load actions", err)
	}
	formatter.VerboseLog("loaded %d action(s) from %s", len(actions), opts.File)

	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("failed to open document", err)
	}
	defer s.Close()

	update, err := s.engine.ApplyActions(actions, textdiff.New().Diff)
	if err != nil {
		return formatter.Fail("actions rejected", err)
	}
	return commit(ctx, s, formatter, update, len(actions))
}

// NewSetRootCommand creates the set-root command.
func NewSetRootCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set-root <block-id>",
		Short:         "Record the document's root block",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			formatter := rootOpts.formatter(cmd)

			s, err := openSession(ctx, rootOpts, cmd)
			if err != nil {
				return formatter.Fail("failed to open document", err)
			}
			defer s.Close()

			update, err := s.engine.SetRootNodeID(args[0])
			if err != nil {
				return formatter.Fail("failed to set root", err)
			}
			return commit(ctx, s, formatter, update, 0)
		},
	}
}
