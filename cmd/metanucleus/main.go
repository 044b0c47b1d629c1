// Package main implements the metanucleus CLI: the illustrative
// command-line surface of §6.2 over the library entry point in
// internal/engine. Grounded on the teacher's cmd/nerd/main.go root-command
// dispatch (rootCmd + PersistentPreRunE logger bootstrap, subcommands split
// across files by concern), trimmed to this Runtime's flag set — no TUI,
// no shard spawning, no auth.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metanucleus/metanucleus/internal/logging"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "metanucleus",
	Short: "Metanúcleo — deterministic neuro-symbolic reasoning runtime",
	Long: `Metanúcleo classifies text into a route (math, logic, code, instinct,
text), compiles a Φ-plan, executes it against an evolving symbolic state, and
emits an answer plus a reproducible auditable meta-summary.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Configure(verbose, jsonLogs, nil)
		return nil
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs")

	rootCmd.AddCommand(runCmd, queryCmd, verifySnapshotCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
