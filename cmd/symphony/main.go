// Command symphony is the operator CLI for the rebalancing engine
// (spec.md §6): start the scheduler or its beat/worker halves, run a
// single window on demand, reconcile positions, or structurally
// validate a symphony file. Grounded on NimbleMarkets-dbn-go's
// cmd/dbn-go-hist package-level cobra.Command tree, replacing the
// teacher's bare flag package in cmd/server/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes per spec.md §6.
const (
	exitSuccess          = 0
	exitValidationError  = 1
	exitRuntimeError     = 2
	exitDeadlineExceeded = 3
)

var (
	configPath string
	dataDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "symphony",
	Short: "Operator CLI for the symphony rebalancing engine",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./data", "persistent store directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(schedulerCmd, workerCmd, beatCmd, runOnceCmd, reconcilePositionsCmd, validateSymphonyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeError)
	}
}
