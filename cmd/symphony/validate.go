package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlas-desktop/trading-backend/internal/tree"
)

// validateSymphonyCmd parses and structurally validates a symphony
// file, printing a short report: unique ticker count and metric
// requirement count on success, the failing engineerr.Kind and message
// on failure.
var validateSymphonyCmd = &cobra.Command{
	Use:   "validate-symphony <file>",
	Short: "Structurally validate a symphony JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading %s: %v\n", args[0], err)
			os.Exit(exitValidationError)
		}

		root, err := tree.Parse(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			os.Exit(exitValidationError)
		}
		if err := tree.Validate(root); err != nil {
			fmt.Fprintf(os.Stderr, "validation error: %v\n", err)
			os.Exit(exitValidationError)
		}

		manifest := tree.BuildManifest(root)
		fmt.Printf("valid symphony: %d unique tickers, %d metric requirements\n", len(manifest.Tickers), len(manifest.Requirements))
		os.Exit(exitSuccess)
	},
}
