package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/metanucleus/metanucleus/internal/logging"
)

func init() {
	logging.Configure(false, false, nil)
}

func TestRunRun_MathRoutePrintsAnswer(t *testing.T) {
	configPath = ""
	flagFormat = "text"
	defer resetRunFlags()

	cmd := &cobra.Command{}
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	if err := runRun(cmd, []string{"2", "+", "2"}); err != nil {
		t.Fatalf("runRun failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "route: math") {
		t.Errorf("expected route: math in output, got %q", out)
	}
	if !strings.Contains(out, "answer: 2 + 2 = 4") {
		t.Errorf("expected the evaluated answer, got %q", out)
	}
}

func TestRunRun_IncludeReportExpandsSections(t *testing.T) {
	configPath = ""
	flagIncludeReport = true
	defer resetRunFlags()

	cmd := &cobra.Command{}
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	if err := runRun(cmd, []string{"FACT", "engine", "PART_OF", "car"}); err != nil {
		t.Fatalf("runRun failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "meta_summary:") {
		t.Errorf("expected meta_summary section with --include-report, got %q", out)
	}
	if !strings.Contains(out, "steps:") {
		t.Errorf("expected stats section with --include-report, got %q", out)
	}
}

func TestRunQuery_PrintsDerivedRelations(t *testing.T) {
	configPath = ""

	cmd := &cobra.Command{}
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	if err := runQuery(cmd, []string{"FACT", "engine", "PART_OF", "car"}); err != nil {
		t.Fatalf("runQuery failed: %v", err)
	}

	out := buf.String()
	if strings.TrimSpace(out) == "(no relations derived)" {
		t.Errorf("expected derived relations, got %q", out)
	}
}

func resetRunFlags() {
	flagEnableContradictions = false
	flagDisableContradictions = false
	flagFormat = "text"
	flagIncludeMeta = false
	flagIncludeStats = false
	flagIncludeExplanation = false
	flagIncludeReport = false
	flagIncludeLCMeta = false
	flagExpectMetaDigest = ""
	flagExpectCodeDigest = ""
	flagCalcMode = ""
	flagStepBudget = 0
	flagSnapshotOut = ""
	flagBytecodeOut = ""
}
