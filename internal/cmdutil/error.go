// Package cmdutil provides small command-line error-reporting helpers.
package cmdutil

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arrowheadlabs/scrubfs/internal/store"
)

// Exit codes: configuration errors and integrity-check failures are
// distinguished from each other and from success.
const (
	ExitSuccess          = 0
	ExitConfigurationErr = 1
	ExitIntegrityErr     = 2
)

// Warning prints a warning message to standard error.
func Warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), message)
}

// Error prints an error message to standard error.
func Error(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
}

// FatalConfiguration reports a configuration-loading error and terminates
// the process with ExitConfigurationErr.
func FatalConfiguration(err error) {
	Error(err)
	os.Exit(ExitConfigurationErr)
}

// FatalIntegrity reports a metadata sidecar integrity-check failure and
// terminates the process with ExitIntegrityErr.
func FatalIntegrity(err error) {
	Error(err)
	os.Exit(ExitIntegrityErr)
}

// Fatal reports a generic run-time error and terminates the process with
// ExitConfigurationErr, for errors that don't fall into either special
// category above.
func Fatal(err error) {
	Error(err)
	os.Exit(ExitConfigurationErr)
}

// Mainify wraps a Cobra entry point that returns an error into the standard
// Cobra Run signature, picking an exit code based on the error's kind:
// integrity failures are classified separately from configuration/run-time
// errors.
func Mainify(entry func(*cobra.Command, []string) error) func(*cobra.Command, []string) {
	return func(command *cobra.Command, arguments []string) {
		err := entry(command, arguments)
		if err == nil {
			return
		}
		if errors.Is(err, store.ErrIntegrityCheckFailed) {
			FatalIntegrity(err)
		}
		Fatal(err)
	}
}
