package cmdutil

import (
	"os"
	"syscall"
)

// TerminationSignals are the signals that request a graceful shutdown: the
// in-progress file is abandoned but the metadata store is flushed and
// closed cleanly before the process exits.
var TerminationSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}
