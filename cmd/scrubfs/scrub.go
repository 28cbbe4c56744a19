package main

import (
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/arrowheadlabs/scrubfs/internal/cmdutil"
	"github.com/arrowheadlabs/scrubfs/internal/ratelimit"
	"github.com/arrowheadlabs/scrubfs/internal/scrub"
	"github.com/arrowheadlabs/scrubfs/internal/store"
	"github.com/arrowheadlabs/scrubfs/internal/walk"
)

func scrubMain(command *cobra.Command, arguments []string) error {
	cfg, err := loadConfiguration()
	if err != nil {
		return errors.Wrap(err, "unable to load configuration")
	}
	log := newLogger(cfg)

	st, err := store.Open(cfg.Storage.Metadata.DB, cfg.Storage.Metadata.DBParity, log.Sublogger("store"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			cmdutil.Error(errors.Wrap(cerr, "failed to close metadata store cleanly"))
		}
	}()

	roots := cfg.Storage.Path
	roots = append(roots, scrubConfiguration.extraPaths...)

	var rules []walk.Rule
	for _, spec := range cfg.Storage.Filter {
		rule, err := walk.ParseRule(spec)
		if err != nil {
			return errors.Wrapf(err, "invalid filter rule %q", spec)
		}
		rules = append(rules, rule)
	}
	walker := walk.New(roots, cfg.Storage.Xdev, rules, log.Sublogger("walk"))

	newHash, err := scrub.ResolveDigest(cfg.Operation.Checksum)
	if err != nil {
		return errors.Wrap(err, "unable to resolve digest algorithm")
	}

	scanLimit, err := ratelimit.ParseSpec("scan", cfg.Operation.RateLimit.Scan)
	if err != nil {
		return err
	}
	readLimit, err := ratelimit.ParseSpec("read", cfg.Operation.RateLimit.Read)
	if err != nil {
		return err
	}

	schedConfig := scrub.Config{
		SkipFor:            hoursToDuration(cfg.Operation.SkipForHours),
		BlockSize:          cfg.Operation.ReadBlock,
		ScanOnly:           scrubConfiguration.scanOnly,
		ScanLimit:          scanLimit,
		ReadLimit:          readLimit,
		NewHash:            newHash,
		CheckpointInterval: scrub.DefaultCheckpointInterval,
	}

	// A signal arriving mid-run must not lose the whole pass: Go does not
	// run deferred functions (including the st.Close() above) on an
	// unhandled SIGINT/SIGTERM, so we catch both here, tell the scheduler to
	// abort (abandoning any partially hashed file), and let scrubMain return
	// normally so the deferred Close still flushes and closes the store
	// cleanly.
	stop := make(chan struct{})
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, cmdutil.TerminationSignals...)
	defer signal.Stop(signals)
	go func() {
		if sig, ok := <-signals; ok {
			log.Warn("received %s, abandoning the current file and closing the store", sig)
			close(stop)
		}
	}()

	scheduler := scrub.New(walker, st, schedConfig, log.Sublogger("scheduler"))
	return scheduler.Run(stop)
}

var scrubCommand = &cobra.Command{
	Use:   "scrub",
	Short: "Walk the configured paths and scrub file contents for bit rot",
	Run:   cmdutil.Mainify(scrubMain),
}

var scrubConfiguration struct {
	// help indicates whether help information should be shown.
	help bool
	// scanOnly restricts the run to metadata scanning, skipping all
	// content hashing.
	scanOnly bool
	// extraPaths names additional roots to walk beyond storage.path.
	extraPaths []string
}

func init() {
	flags := scrubCommand.Flags()
	flags.SortFlags = false

	flags.BoolVarP(&scrubConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVar(&scrubConfiguration.scanOnly, "scan-only", false, "Only scan metadata; skip content hashing")
	flags.StringArrayVar(&scrubConfiguration.extraPaths, "extra-paths", nil, "Walk an additional path beyond storage.path (may be repeated)")
}
