package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metanucleus/metanucleus/internal/config"
	"github.com/metanucleus/metanucleus/internal/engine"
	"github.com/metanucleus/metanucleus/internal/phi"
)

// queryCmd is the read-only counterpart of `run`: it executes the turn the
// same way but prints only the derived ontology, mirroring the teacher's
// cmd_query.go queryFacts() surface (inspect derived facts without the full
// response record).
var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Run text and print only the derived relations",
	RunE:  runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	text, err := readInput(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	outcome, err := engine.RunText(text, cfg)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(outcome.ISR.Relations) == 0 {
		fmt.Fprintln(w, "(no relations derived)")
		return nil
	}
	for _, name := range phi.RelationKeys(outcome.ISR.Relations) {
		fmt.Fprintln(w, strings.TrimSpace(name))
	}
	return nil
}
