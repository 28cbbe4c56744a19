// Command scrubfs walks a configured set of filesystem paths, maintains a
// per-path metadata record, and periodically re-reads and re-hashes file
// contents to surface silent bit rot: content changes that occur without a
// corresponding filesystem-visible metadata change.
package main

import (
	"os"

	"github.com/arrowheadlabs/scrubfs/internal/cmdutil"
)

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmdutil.Fatal(err)
	}
	os.Exit(cmdutil.ExitSuccess)
}
