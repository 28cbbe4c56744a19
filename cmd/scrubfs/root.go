package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arrowheadlabs/scrubfs/internal/version"
)

func rootMain(command *cobra.Command, arguments []string) {
	if rootConfiguration.version {
		fmt.Println(version.Semantic)
		return
	}
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "scrubfs",
	Short: "scrubfs detects silent filesystem bit rot by periodically re-hashing file contents",
	Run:   rootMain,
}

var rootConfiguration struct {
	// help indicates whether help information should be shown.
	help bool
	// version indicates whether version information should be shown.
	version bool
	// configPaths holds the repeated --config flag values, layered in
	// order. No shorthand is bound for this flag: "status" already uses
	// "-c" for "--checked", and Cobra refuses to execute a command whose
	// inherited and local flag sets both claim the same shorthand.
	configPaths []string
	// debug forces debug-level logging regardless of the configured level.
	debug bool
}

func init() {
	// help and version are local to the root command only: each
	// subcommand binds its own "-h" locally, which would collide with an
	// inherited persistent "-h" from here.
	rootFlags := rootCommand.Flags()
	rootFlags.SortFlags = false
	rootFlags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	rootFlags.BoolVarP(&rootConfiguration.version, "version", "v", false, "Show version information")

	persistent := rootCommand.PersistentFlags()
	persistent.SortFlags = false
	persistent.StringArrayVar(&rootConfiguration.configPaths, "config", nil, "Layer a YAML configuration file (may be repeated)")
	persistent.BoolVar(&rootConfiguration.debug, "debug", false, "Force debug-level logging")

	cobra.EnableCommandSorting = false

	rootCommand.AddCommand(
		scrubCommand,
		statusCommand,
	)
}
