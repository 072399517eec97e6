// Command blockdoc edits, syncs, and verifies replicated block documents
// stored in a SQLite journal.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/blockdoc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
