package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/blockdoc/internal/engine"
	"github.com/roach88/blockdoc/internal/journal"
)

// session is a replica rebuilt from the journal for one command.
type session struct {
	opts    *RootOptions
	journal *journal.Journal
	engine  *engine.Engine
	updates int
}

// openSession opens the journal and replays the document into a fresh
// replica.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	j, err := journal.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}

	eng, err := newEngine(opts, opts.DocID, cmd)
	if err != nil {
		j.Close()
		return nil, err
	}

	entries, err := j.ReadUpdates(ctx, opts.DocID)
	if err != nil {
		j.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if len(entries) > 0 {
		if err := eng.ApplyUpdates(journal.Payloads(entries)); err != nil {
			j.Close()
			return nil, err
		}
	}

	return &session{
		opts:    opts,
		journal: j,
		engine:  eng,
		updates: len(entries),
	}, nil
}

// newEngine creates an empty replica configured from the global flags.
func newEngine(opts *RootOptions, docID string, cmd *cobra.Command) (*engine.Engine, error) {
	s, err := opts.loadSchema()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	engOpts := []engine.Option{
		engine.WithLogger(opts.logger(cmd.ErrOrStderr())),
		engine.WithSchema(s),
	}
	if opts.Replica != "" {
		engOpts = append(engOpts, engine.WithReplicaID(opts.Replica))
	}
	return engine.New(docID, engOpts...), nil
}

// record journals an update produced or received by this replica.
func (s *session) record(ctx context.Context, update []byte) (string, bool, error) {
	return s.journal.Append(ctx, s.opts.DocID, s.engine.ReplicaID(), update)
}

func (s *session) Close() error {
	return s.journal.Close()
}
