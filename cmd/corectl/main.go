// corectl is the storage core's operator CLI: bring a database directory
// up, force recovery, inspect what is on disk, or run a throughput
// microbenchmark against it. It replaces the teacher's scattered
// go-run-able debug programs (cmd/seed, cmd/inspect_idx, cmd/dump_sample)
// with a single Cobra command tree, following the subcommand-with-local-
// flag-vars style the rest of the corpus uses for its CLIs.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"corestore/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "corectl",
		Short: "Operate a corestore database directory",
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var logLevel string
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cobra.OnInitialize(func() {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "corectl: %v\n", err)
			os.Exit(1)
		}
		logging.SetLevel(level)
	})

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRecoverCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newBenchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
