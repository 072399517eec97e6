package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/journal"
)

// ReplayDocResult holds the replay result for a single document.
type ReplayDocResult struct {
	DocID         string `json:"doc_id"`
	Updates       int    `json:"updates"`
	Blocks        int    `json:"blocks"`
	Digest        string `json:"digest,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Documents        []ReplayDocResult `json:"documents"`
	TotalDocuments   int               `json:"total_documents"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify convergence",
		Long: `Rebuild documents from the journal in several delivery orders and
verify that every order yields the same state.

Each document is rebuilt three times: from all updates applied as one
batch, from each update applied in journal order, and from each update
applied in reverse order. Only the document named by --doc is replayed
when the flag is given; otherwise every journaled document is.

Exit codes:
  0 - All documents converge
  1 - A document diverged or could not be rebuilt
  2 - Command error (journal not found, etc.)

Examples:
  blockdoc replay --db notes.db
  blockdoc replay --db notes.db --doc inbox --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var docIDs []string
	if cmd.Flags().Changed("doc") {
		docIDs = []string{opts.DocID}
	} else {
		docs, err := j.ListDocuments(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list documents", err)
		}
		for _, d := range docs {
			docIDs = append(docIDs, d.DocID)
		}
	}

	if len(docIDs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{
				Documents:        []ReplayDocResult{},
				AllDeterministic: true,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No documents found in journal.")
		return nil
	}

	result := ReplayResult{
		Documents:        make([]ReplayDocResult, 0, len(docIDs)),
		TotalDocuments:   len(docIDs),
		AllDeterministic: true,
	}
	for _, docID := range docIDs {
		docResult, err := replayDocument(ctx, opts, j, docID, cmd)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay %s", docID), err)
		}
		result.Documents = append(result.Documents, docResult)
		if !docResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayDocument rebuilds one document in every delivery order and
// compares the resulting state digests.
func replayDocument(ctx context.Context, opts *RootOptions, j *journal.Journal, docID string, cmd *cobra.Command) (ReplayDocResult, error) {
	entries, err := j.ReadUpdates(ctx, docID)
	if err != nil {
		return ReplayDocResult{}, err
	}
	updates := journal.Payloads(entries)
	result := ReplayDocResult{DocID: docID, Updates: len(updates)}

	reversed := slices.Clone(updates)
	slices.Reverse(reversed)
	orders := []struct {
		name    string
		batches [][][]byte
	}{
		{"batch", [][][]byte{updates}},
		{"journal order", singles(updates)},
		{"reverse order", singles(reversed)},
	}

	for _, order := range orders {
		state, err := rebuild(opts, docID, order.batches, cmd)
		if err != nil {
			result.Error = fmt.Sprintf("%s: %v", order.name, err)
			return result, nil
		}
		digest, err := ir.StateDigest(state)
		if err != nil {
			return ReplayDocResult{}, err
		}
		if result.Digest == "" {
			result.Digest = digest
			result.Blocks = len(state.Blocks)
			result.Deterministic = true
			continue
		}
		if digest != result.Digest {
			result.Deterministic = false
			result.Error = fmt.Sprintf("%s diverged from batch replay", order.name)
			return result, nil
		}
	}
	return result, nil
}

func singles(updates [][]byte) [][][]byte {
	out := make([][][]byte, len(updates))
	for i, u := range updates {
		out[i] = [][]byte{u}
	}
	return out
}

func rebuild(opts *RootOptions, docID string, batches [][][]byte, cmd *cobra.Command) (ir.DocumentState, error) {
	eng, err := newEngine(opts, docID, cmd)
	if err != nil {
		return ir.DocumentState{}, err
	}
	for _, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		if err := eng.ApplyUpdates(batch); err != nil {
			return ir.DocumentState{}, err
		}
	}
	return eng.GetDocumentState()
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_CONVERGENCE",
			Message: "convergence verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "convergence verification failed")
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d document(s)\n", result.TotalDocuments)
	fmt.Fprintln(w)

	for _, doc := range result.Documents {
		status := "✓"
		if !doc.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Document: %s\n", status, doc.DocID)
		fmt.Fprintf(w, "  Updates: %d, blocks: %d\n", doc.Updates, doc.Blocks)
		if verbose && doc.Digest != "" {
			fmt.Fprintf(w, "  Digest: %s\n", doc.Digest)
		}
		if doc.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", doc.Error)
		}
	}

	fmt.Fprintln(w)
	if !result.AllDeterministic {
		fmt.Fprintln(w, "✗ Convergence verification failed")
		return NewExitError(ExitFailure, "convergence verification failed")
	}
	fmt.Fprintln(w, "✓ All documents converge")
	return nil
}
