package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metanucleus/metanucleus/internal/config"
	"github.com/metanucleus/metanucleus/internal/engine"
	"github.com/metanucleus/metanucleus/internal/fingerprint"
	"github.com/metanucleus/metanucleus/internal/logging"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/serialize"
	"github.com/metanucleus/metanucleus/internal/vm"
)

var (
	flagEnableContradictions  bool
	flagDisableContradictions bool
	flagFormat                string
	flagIncludeMeta           bool
	flagIncludeStats          bool
	flagIncludeExplanation    bool
	flagIncludeReport         bool
	flagIncludeLCMeta         bool
	flagExpectMetaDigest      string
	flagExpectCodeDigest      string
	flagCalcMode              string
	flagStepBudget            int
	flagSnapshotOut           string
	flagBytecodeOut           string
)

// runCmd implements §6.2's `run` surface: classify stdin/argv text, execute
// its Φ-plan, and print the requested record sections.
var runCmd = &cobra.Command{
	Use:   "run [text]",
	Short: "Run one turn of text through the Runtime",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&flagEnableContradictions, "enable-contradictions", false, "halt INFER on a detected contradiction")
	runCmd.Flags().BoolVar(&flagDisableContradictions, "disable-contradictions", false, "never halt on contradictions")
	runCmd.Flags().StringVar(&flagFormat, "format", "text", "output format: text | json | both")
	runCmd.Flags().BoolVar(&flagIncludeMeta, "include-meta", false, "include the full meta_summary record")
	runCmd.Flags().BoolVar(&flagIncludeStats, "include-stats", false, "include trace/quality statistics")
	runCmd.Flags().BoolVar(&flagIncludeExplanation, "include-explanation", false, "include the per-step trace")
	runCmd.Flags().BoolVar(&flagIncludeReport, "include-report", false, "include meta + stats + explanation")
	runCmd.Flags().BoolVar(&flagIncludeLCMeta, "include-lc-meta", false, "include the TEXT route's lc_meta node")
	runCmd.Flags().StringVar(&flagExpectMetaDigest, "expect-meta-digest", "", "exit non-zero unless meta_digest matches this hex value")
	runCmd.Flags().StringVar(&flagExpectCodeDigest, "expect-code-digest", "", "exit non-zero unless the code_ast fingerprint matches this hex value")
	runCmd.Flags().StringVar(&flagCalcMode, "calc-mode", "", "full | plan_only (overrides config)")
	runCmd.Flags().IntVar(&flagStepBudget, "step-budget", 0, "override the scheduler step budget (0 = config default)")
	runCmd.Flags().StringVar(&flagSnapshotOut, "snapshot-out", "", "write a .svms ΣVM snapshot of the cross-check run to this path")
	runCmd.Flags().StringVar(&flagBytecodeOut, "bytecode-out", "", "write the compiled plan's .svmb bytecode to this path")
}

func runRun(cmd *cobra.Command, args []string) error {
	text, err := readInput(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyRunFlags(cfg)

	outcome, err := engine.RunText(text, cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if err := writeSideFiles(outcome, cfg); err != nil {
		return err
	}

	printRecord(cmd.OutOrStdout(), outcome, cfg)

	if flagExpectMetaDigest != "" {
		if got := metaDigestOf(outcome); !strings.EqualFold(got, flagExpectMetaDigest) {
			fmt.Fprintf(cmd.ErrOrStderr(), "meta digest mismatch: want %s got %s\n", flagExpectMetaDigest, got)
			os.Exit(2)
		}
	}
	if flagExpectCodeDigest != "" {
		got := fingerprint.MustOf(codeASTOrNil(outcome)).String()
		if !strings.EqualFold(got, flagExpectCodeDigest) {
			fmt.Fprintf(cmd.ErrOrStderr(), "code digest mismatch: want %s got %s\n", flagExpectCodeDigest, got)
			os.Exit(2)
		}
	}
	return nil
}

func readInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func applyRunFlags(cfg *config.Config) {
	if flagEnableContradictions {
		cfg.Scheduler.ContradictionsEnabled = true
	}
	if flagDisableContradictions {
		cfg.Scheduler.ContradictionsEnabled = false
	}
	if flagCalcMode != "" {
		cfg.Scheduler.CalcMode = flagCalcMode
	}
	if flagStepBudget > 0 {
		cfg.Scheduler.StepBudget = flagStepBudget
	}
	if flagIncludeReport {
		flagIncludeMeta = true
		flagIncludeStats = true
		flagIncludeExplanation = true
	}
}

func codeASTOrNil(outcome *engine.RunOutcome) *node.Node {
	if outcome.CodeAST == nil {
		return node.Nil
	}
	return outcome.CodeAST
}

func metaDigestOf(outcome *engine.RunOutcome) string {
	if v, ok := outcome.MetaSummary.Field("meta_digest"); ok {
		return v.Text
	}
	return ""
}

func printRecord(w io.Writer, outcome *engine.RunOutcome, cfg *config.Config) {
	fmt.Fprintf(w, "route: %s\n", outcome.Route)
	fmt.Fprintf(w, "answer: %s\n", outcome.Answer)
	fmt.Fprintf(w, "quality: %.3f\n", outcome.Quality)
	fmt.Fprintf(w, "halt_reason: %s\n", outcome.HaltReason)

	if flagIncludeStats {
		fmt.Fprintf(w, "steps: %d\n", len(outcome.Trace.Steps))
		fmt.Fprintf(w, "relations: %d\n", len(outcome.ISR.Relations))
		fmt.Fprintf(w, "context_size: %d\n", len(outcome.ISR.Context))
	}
	if flagIncludeExplanation {
		for _, step := range outcome.Trace.Steps {
			fmt.Fprintf(w, "trace[%d] %s Δquality=%.3f Δrelations=%d context=%d\n",
				step.Order, step.Label, step.DeltaQuality, step.DeltaRelations, step.ContextSize)
		}
	}
	if flagIncludeLCMeta && outcome.LCMeta != nil && !node.IsNil(outcome.LCMeta) {
		renderNode(w, "lc_meta", outcome.LCMeta, cfg.Output.Format)
	}
	if flagIncludeMeta {
		renderNode(w, "meta_summary", outcome.MetaSummary, cfg.Output.Format)
	}
}

func renderNode(w io.Writer, name string, n *node.Node, format string) {
	effective := flagFormat
	if effective == "" {
		effective = format
	}
	if effective == "" {
		effective = "text"
	}
	if effective == "text" || effective == "both" {
		fmt.Fprintf(w, "%s: %s\n", name, serialize.ToSExpr(n))
	}
	if effective == "json" || effective == "both" {
		data, err := serialize.ToJSON(n)
		if err == nil {
			fmt.Fprintf(w, "%s: %s\n", name, string(data))
		}
	}
}

func writeSideFiles(outcome *engine.RunOutcome, cfg *config.Config) error {
	if flagBytecodeOut == "" && flagSnapshotOut == "" {
		return nil
	}
	logging.For(logging.CategoryVM).Debugw("writing ΣVM side files", "bytecode", flagBytecodeOut, "snapshot", flagSnapshotOut)

	if flagBytecodeOut != "" {
		f, err := os.Create(flagBytecodeOut)
		if err != nil {
			return fmt.Errorf("bytecode-out: %w", err)
		}
		defer f.Close()
		if err := vm.WriteBytecode(f, outcome.Plan.Program); err != nil {
			return fmt.Errorf("bytecode-out: %w", err)
		}
	}

	if flagSnapshotOut != "" {
		if outcome.CalcResult.Snapshot == nil {
			return fmt.Errorf("snapshot-out: no snapshot available (cross-check run failed: %s)", outcome.CalcResult.Error)
		}
		data, err := vm.Save(outcome.CalcResult.Snapshot)
		if err != nil {
			return fmt.Errorf("snapshot-out: %w", err)
		}
		if err := os.WriteFile(flagSnapshotOut, data, 0o644); err != nil {
			return fmt.Errorf("snapshot-out: %w", err)
		}
	}
	return nil
}
