package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the document as one binary update",
		Long: `Write everything this journal knows about the document as one binary
update. Importing the file into another journal brings that replica up to date.

Examples:
  blockdoc export --db laptop.db -o inbox.bin
  blockdoc import --db phone.db inbox.bin`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			s, err := openSession(context.Background(), rootOpts, cmd)
			if err != nil {
				return formatter.Fail("failed to open document", err)
			}
			defer s.Close()

			update, err := s.engine.EncodeState()
			if err != nil {
				return formatter.Fail("failed to encode document", err)
			}
			if err := os.WriteFile(output, update, 0644); err != nil {
				formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", output, err), nil)
				return WrapExitError(ExitCommandError, "failed to write update", err)
			}
			return formatter.Success(MergeResult{Inputs: s.updates, Bytes: len(update), Output: output})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "update file (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// ImportResult describes imported update files.
type ImportResult struct {
	DocID     string `json:"doc_id"`
	Updates   int    `json:"updates"`
	Journaled int    `json:"journaled"`
}

func (r ImportResult) String() string {
	return fmt.Sprintf("✓ %s: imported %d update(s), %d new", r.DocID, r.Updates, r.Journaled)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <update-file>...",
		Short: "Apply binary updates from other replicas",
		Long: `Apply binary update files to the document and journal them.

Every file is decoded before anything is applied. If any file is not a
valid update, nothing is imported and the indexes of every bad file are
reported.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args, cmd)
		},
	}
}

func runImport(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	updates, err := readUpdateFiles(paths)
	if err != nil {
		return formatter.Fail("failed to read updates", err)
	}

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return formatter.Fail("failed to open document", err)
	}
	defer s.Close()

	if err := s.engine.ApplyUpdates(updates); err != nil {
		return formatter.Fail("import rejected", err)
	}

	result := ImportResult{DocID: opts.DocID, Updates: len(updates)}
	for _, u := range updates {
		_, inserted, err := s.record(ctx, u)
		if err != nil {
			return formatter.Fail("failed to journal update", err)
		}
		if inserted {
			result.Journaled++
		}
	}
	return formatter.Success(result)
}
