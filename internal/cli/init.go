package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// WriteResult describes an update written to the journal.
type WriteResult struct {
	DocID     string `json:"doc_id"`
	ReplicaID string `json:"replica_id"`
	UpdateID  string `json:"update_id"`
	Bytes     int    `json:"bytes"`
	Journaled bool   `json:"journaled"`
	Actions   int    `json:"actions,omitempty"`
}

func (r WriteResult) String() string {
	note := ""
	if !r.Journaled {
		note = " (already journaled)"
	}
	return fmt.Sprintf("✓ %s: update %.12s, %d bytes%s", r.DocID, r.UpdateID, r.Bytes, note)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the document",
		Long: `Initialize the document in the journal.

Initializing a document that already exists changes nothing.

Examples:
  blockdoc init --db notes.db --doc inbox`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return formatter.Fail("failed to open document", err)
	}
	defer s.Close()

	update, err := s.engine.InitEmptyDocument()
	if err != nil {
		return formatter.Fail("failed to initialize document", err)
	}
	return commit(ctx, s, formatter, update, 0)
}

// commit journals update and reports it.
func commit(ctx context.Context, s *session, formatter *OutputFormatter, update []byte, actions int) error {
	id, inserted, err := s.record(ctx, update)
	if err != nil {
		return formatter.Fail("failed to journal update", err)
	}
	formatter.VerboseLog("journaled update %s (%d bytes)", id, len(update))

	return formatter.Success(WriteResult{
		DocID:     s.opts.DocID,
		ReplicaID: s.engine.ReplicaID(),
		UpdateID:  id,
		Bytes:     len(update),
		Journaled: inserted,
		Actions:   actions,
	})
}
