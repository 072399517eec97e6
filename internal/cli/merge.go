package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/journal"
)

// MergeResult describes a merge of update files.
type MergeResult struct {
	Inputs int    `json:"inputs"`
	Bytes  int    `json:"bytes"`
	Output string `json:"output"`
}

func (r MergeResult) String() string {
	return fmt.Sprintf("✓ merged %d update(s) into %s (%d bytes)", r.Inputs, r.Output, r.Bytes)
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "merge <update-file>...",
		Short: "Merge binary update files into one",
		Long: `Merge binary update files into one update without applying them.

Applying the merged update has the same effect as applying every input.
Any undecodable input fails the whole merge.

Examples:
  blockdoc merge a.bin b.bin -o merged.bin`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			updates, err := readUpdateFiles(args)
			if err != nil {
				return formatter.Fail("failed to read updates", err)
			}
			eng, err := newEngine(rootOpts, rootOpts.DocID, cmd)
			if err != nil {
				return formatter.Fail("failed to create replica", err)
			}
			merged, err := eng.MergeUpdates(updates)
			if err != nil {
				return formatter.Fail("merge failed", err)
			}
			if err := os.WriteFile(output, merged, 0644); err != nil {
				formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", output, err), nil)
				return WrapExitError(ExitCommandError, "failed to write merged update", err)
			}
			return formatter.Success(MergeResult{Inputs: len(updates), Bytes: len(merged), Output: output})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "merged update file (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func readUpdateFiles(paths []string) ([][]byte, error) {
	updates := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		updates = append(updates, data)
	}
	return updates, nil
}

// CompactResult describes a journal compaction.
type CompactResult struct {
	DocID    string `json:"doc_id"`
	Removed  int    `json:"removed"`
	UpdateID string `json:"update_id,omitempty"`
	Bytes    int    `json:"bytes"`
}

func (r CompactResult) String() string {
	if r.UpdateID == "" {
		return fmt.Sprintf("✓ %s: nothing to compact", r.DocID)
	}
	return fmt.Sprintf("✓ %s: %d update(s) compacted into %.12s (%d bytes)", r.DocID, r.Removed, r.UpdateID, r.Bytes)
}

// NewCompactCommand creates the compact command.
func NewCompactCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Merge the document's journal into one update",
		Long: `Replace every journaled update of the document with their merge.

The document state is unchanged. Updates journaled later are appended
after the merged one as usual.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(rootOpts, cmd)
		},
	}
}

func runCompact(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	j, err := journal.Open(opts.Database)
	if err != nil {
		return formatter.Fail("failed to open journal", err)
	}
	defer j.Close()

	entries, err := j.ReadUpdates(ctx, opts.DocID)
	if err != nil {
		return formatter.Fail("failed to read journal", err)
	}
	if len(entries) < 2 {
		return formatter.Success(CompactResult{DocID: opts.DocID, Removed: 0})
	}

	eng, err := newEngine(opts, opts.DocID, cmd)
	if err != nil {
		return formatter.Fail("failed to create replica", err)
	}
	merged, err := eng.MergeUpdates(journal.Payloads(entries))
	if err != nil {
		return formatter.Fail("merge failed", err)
	}

	removed, err := j.Compact(ctx, opts.DocID, eng.ReplicaID(), merged)
	if err != nil {
		return formatter.Fail("compaction failed", err)
	}
	return formatter.Success(CompactResult{
		DocID:    opts.DocID,
		Removed:  removed,
		UpdateID: ir.UpdateID(merged),
		Bytes:    len(merged),
	})
}
