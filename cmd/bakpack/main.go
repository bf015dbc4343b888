// Command bakpack performs incremental, content-addressed backups: it
// scans a source directory, deduplicates against an optional reference
// run, packs new content into numbered bak files, and writes a SQLite
// index describing where every file's bytes live.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AumSahayata/bakpack/internal/config"
	"github.com/AumSahayata/bakpack/internal/logging"
	"github.com/AumSahayata/bakpack/internal/runner"
)

var (
	flagOutDir     string
	flagRefIndex   string
	flagChunkSize  string
	flagBackupSize string
	flagVerbose    bool

	// filterArgv is populated by splitFilterArgv before cobra ever sees
	// the command line: -f/--backup-output-filter consumes every token
	// after it verbatim as the filter command and its own arguments, so it
	// cannot be parsed as an ordinary pflag value (those would otherwise
	// choke on something like "-9" in "zstd -9").
	filterArgv []string
)

func main() {
	os.Exit(run())
}

// run executes the command and converts an invariant-violation panic from
// deep inside runner.Run into a logged message and nonzero exit, rather
// than letting it escape as a raw Go stack trace: the panic itself is an
// intentional crash on a condition that should never happen, but the CLI's
// top-level boundary still owns how that crash is reported to a user.
func run() int {
	rest, filter := splitFilterArgv(os.Args[1:])
	filterArgv = filter

	root := newRootCmd()
	root.SetArgs(rest)

	exitCode := 0
	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.New(os.Stderr, flagVerbose).Error().Interface("panic", r).Msg("internal invariant violation")
				exitCode = 2
			}
		}()
		if err := root.Execute(); err != nil {
			exitCode = 1
		}
	}()
	return exitCode
}

// splitFilterArgv scans args for the first occurrence of -f or
// --backup-output-filter. Everything before it is returned unchanged for
// cobra to parse as normal flags; everything after it is returned as the
// external filter command's argv and is never seen by the flag parser.
func splitFilterArgv(args []string) (rest, filter []string) {
	for i, a := range args {
		if a == "-f" || a == "--backup-output-filter" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bakpack <source-dir> -o <out-dir> [-r <ref-index>] [-c <chunk-size>] [-s <backup-size>] [-f <filter-cmd> [filter-args...]]",
		Short: "Incremental, content-addressed directory backup",
		Long: `bakpack performs an incremental, content-addressed backup of a source directory.

-f/--backup-output-filter is not an ordinary flag: once it appears, every
remaining token on the command line is taken as the external command (and
its arguments) that every bak file's payload is piped through, e.g.:

  bakpack ./data -o ./out -f zstd -9 --long=27`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBackup,
	}

	root.Flags().StringVarP(&flagOutDir, "out-dir", "o", "", "output directory for bak files and index.db (required)")
	root.Flags().StringVarP(&flagRefIndex, "ref-index", "r", "", "path to a prior run's index.db; enables differential mode")
	root.Flags().StringVarP(&flagChunkSize, "chunk-size", "c", config.DefaultChunkSize, "fixed chunk size, e.g. 128MiB")
	root.Flags().StringVarP(&flagBackupSize, "backup-size", "s", config.DefaultBackupSize, "maximum size per bak file, e.g. 3GiB")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	_ = root.MarkFlagRequired("out-dir")

	return root
}

func runBackup(cmd *cobra.Command, args []string) error {
	log := logging.New(os.Stderr, flagVerbose)

	cfg, err := config.New(args[0], flagOutDir, flagRefIndex, flagChunkSize, flagBackupSize, filterArgv)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	stats, err := runner.Run(context.Background(), cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files (%d chunks), copied %d files (%d chunks) forward, %d duplicate within this run\n",
		stats.FilesWritten, stats.ChunksWritten, stats.FilesCopied, stats.ChunksCopied, stats.FilesDuplicate)
	return nil
}
