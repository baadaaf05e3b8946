package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sectorindex",
	Short: "Chain-linked sector index calculation service",
	Long: `Sector Index Service

Computes free-float market-cap weighted sector indices from stored
market ticks, chain-linked against a per-session baseline, with
end-of-day capture and carry-forward.

Usage:
  go run ./cmd/sectorindex [command]

Examples:
  go run ./cmd/sectorindex serve
  go run ./cmd/sectorindex calculate
  go run ./cmd/sectorindex historical --from 2026-08-01 --to 2026-08-15
  go run ./cmd/sectorindex migrate
  go run ./cmd/sectorindex status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
