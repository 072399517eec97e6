package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/journal"
)

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the document",
		Long: `Replay the journal and print the document.

Text output is an outline of the block tree in reconciled order. JSON
output is the full document state: every block plus the ordered children
of each parent.

Examples:
  blockdoc state --doc inbox
  blockdoc state --doc inbox --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(rootOpts, cmd)
		},
	}
}

func runState(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, err := openSession(context.Background(), opts, cmd)
	if err != nil {
		return formatter.Fail("failed to open document", err)
	}
	defer s.Close()

	state, err := s.engine.GetDocumentState()
	if err != nil {
		return formatter.Fail("failed to read document", err)
	}
	formatter.VerboseLog("replayed %d update(s)", s.updates)

	if opts.Format == "json" {
		return formatter.Success(state)
	}
	renderOutline(formatter.Writer, state)
	return nil
}

// renderOutline prints the block tree. Blocks whose parent does not exist
// are listed after the tree under their missing parent.
func renderOutline(w io.Writer, state ir.DocumentState) {
	fmt.Fprintf(w, "%s (%d blocks)", state.DocID, len(state.Blocks))
	if state.RootID != "" {
		fmt.Fprintf(w, " root=%s", state.RootID)
	}
	fmt.Fprintln(w)

	printed := make(map[string]bool, len(state.Blocks))
	var walk func(group string, depth int)
	walk = func(group string, depth int) {
		for _, id := range state.Children[group] {
			if printed[id] {
				continue
			}
			printed[id] = true
			fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", depth), describe(state.Blocks[id]))
			walk(id, depth+1)
		}
	}
	walk(ir.TopLevelGroup, 0)

	for _, group := range slices.Sorted(maps.Keys(state.Children)) {
		if group == ir.TopLevelGroup {
			continue
		}
		if _, ok := state.Blocks[group]; ok {
			continue
		}
		fmt.Fprintf(w, "(missing parent %s)\n", group)
		walk(group, 1)
	}
}

func describe(b ir.Block) string {
	line := fmt.Sprintf("%s [%s]", b.ID, b.Type)
	if txt := b.Delta.PlainText(); txt != "" {
		line += " " + strconv.Quote(txt)
	}
	return line
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List journaled documents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			j, err := journal.Open(rootOpts.Database)
			if err != nil {
				return formatter.Fail("failed to open journal", err)
			}
			defer j.Close()

			docs, err := j.ListDocuments(context.Background())
			if err != nil {
				return formatter.Fail("failed to list documents", err)
			}
			if rootOpts.Format == "json" {
				return formatter.Success(docs)
			}
			if len(docs) == 0 {
				fmt.Fprintln(formatter.Writer, "No documents found in journal.")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintf(formatter.Writer, "%s\t%d update(s)\t%d bytes\n", d.DocID, d.Updates, d.Bytes)
			}
			return nil
		},
	}
}
