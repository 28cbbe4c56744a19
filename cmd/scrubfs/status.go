package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/arrowheadlabs/scrubfs/internal/cmdutil"
	"github.com/arrowheadlabs/scrubfs/internal/store"
)

func statusMain(command *cobra.Command, arguments []string) error {
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

	records, err := st.ListPaths()
	if err != nil {
		return errors.Wrap(err, "unable to list stored paths")
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer writer.Flush()

	if statusConfiguration.long {
		fmt.Fprintln(writer, "PATH\tSTATE\tLAST SCRUB\tLAST SKIP\tCHECKSUM")
	} else {
		fmt.Fprintln(writer, "PATH\tSTATE")
	}

	for _, rec := range records {
		if len(arguments) > 0 && !matchesPathFilter(rec.Path, arguments) {
			continue
		}
		if !matchesStateFilter(&rec) {
			continue
		}
		state := recordState(&rec)
		if statusConfiguration.long {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
				rec.Path, state, formatTime(rec.LastScrub), formatTime(rec.LastSkip), formatChecksum(rec.Checksum))
		} else {
			fmt.Fprintf(writer, "%s\t%s\n", rec.Path, state)
		}
	}
	return nil
}

func recordState(rec *store.Record) string {
	switch {
	case rec.Checksum == nil:
		return "not-checked"
	case rec.Dirty:
		return "dirty"
	case rec.Clean:
		return "clean"
	default:
		return "unclean"
	}
}

func matchesPathFilter(path string, filters []string) bool {
	for _, f := range filters {
		if path == f || strings.HasPrefix(path, strings.TrimSuffix(f, "/")+"/") {
			return true
		}
	}
	return false
}

func matchesStateFilter(rec *store.Record) bool {
	if !statusConfiguration.dirty && !statusConfiguration.checked && !statusConfiguration.notChecked {
		return true
	}
	state := recordState(rec)
	if statusConfiguration.dirty && state == "dirty" {
		return true
	}
	if statusConfiguration.checked && (state == "clean" || state == "unclean" || state == "dirty") {
		return true
	}
	if statusConfiguration.notChecked && state == "not-checked" {
		return true
	}
	return false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatChecksum(sum []byte) string {
	if sum == nil {
		return "-"
	}
	return hex.EncodeToString(sum)
}

var statusCommand = &cobra.Command{
	Use:   "status [<path>...]",
	Short: "List the metadata store's recorded state for every tracked path",
	Run:   cmdutil.Mainify(statusMain),
}

var statusConfiguration struct {
	// help indicates whether help information should be shown.
	help bool
	// long requests the extended table (timestamps and checksum).
	long bool
	// dirty restricts the listing to dirty records.
	dirty bool
	// checked restricts the listing to records with a recorded checksum.
	checked bool
	// notChecked restricts the listing to records with no recorded checksum
	// yet.
	notChecked bool
}

func init() {
	flags := statusCommand.Flags()
	flags.SortFlags = false

	flags.BoolVarP(&statusConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&statusConfiguration.long, "verbose", "v", false, "Show timestamps and checksums")
	flags.BoolVarP(&statusConfiguration.dirty, "dirty", "d", false, "Only show dirty paths")
	flags.BoolVarP(&statusConfiguration.checked, "checked", "c", false, "Only show paths with a recorded checksum")
	flags.BoolVarP(&statusConfiguration.notChecked, "not-checked", "u", false, "Only show paths with no recorded checksum")
}
