package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/blockdoc/internal/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	DocID      string
	Replica    string // empty: a fresh UUIDv7 per invocation
	SchemaPath string // empty: the embedded schema
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the blockdoc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "blockdoc",
		Short: "blockdoc - replicated block documents",
		Long: `A block-document engine whose replicas converge without coordination.

Every edit is journaled as an opaque binary update. Replaying the journal
rebuilds the document; exchanging updates between journals syncs replicas.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "blockdoc.db", "path to the SQLite journal")
	cmd.PersistentFlags().StringVar(&opts.DocID, "doc", "default", "document id")
	cmd.PersistentFlags().StringVar(&opts.Replica, "replica", "", "replica id (default: generated)")
	cmd.PersistentFlags().StringVar(&opts.SchemaPath, "schema", "", "CUE block schema (default: built in)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewSetRootCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewCompactCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes engine logs to w: warnings by default, everything with
// --verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) loadSchema() (*schema.Schema, error) {
	if o.SchemaPath == "" {
		return schema.Default()
	}
	return schema.Load(o.SchemaPath)
}
