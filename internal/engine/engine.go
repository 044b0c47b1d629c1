// Package engine implements the library entry point of §6.1: `RunText`,
// which wires the Meta-Transformer, Φ-operator scheduler, and Meta-Summary
// assembler into one turn and returns the full auditable RunOutcome.
//
// Grounded on the teacher's cmd/nerd root-command flow (parse input →
// dispatch shard → assemble response) generalized into a library call with
// no CLI or I/O attached, plus the Design Note "expose as a Runtime handle
// that owns both [atom table and arena]; make it cheaply cloneable... the
// default process-wide singleton is a convenience layer, not a
// requirement".
package engine

import (
	"fmt"
	"strings"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/config"
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/ontology"
	"github.com/metanucleus/metanucleus/internal/phi"
	"github.com/metanucleus/metanucleus/internal/router"
	"github.com/metanucleus/metanucleus/internal/scheduler"
	"github.com/metanucleus/metanucleus/internal/summary"
	"github.com/metanucleus/metanucleus/internal/vm"
)

// Runtime owns the process-wide-by-convention atom table and node arena a
// turn needs. Nothing about RunText requires the singleton: callers that
// want isolated turns (tests, multi-tenant hosts) construct their own with
// NewRuntime.
type Runtime struct {
	Table *atomtable.Table
	Arena *node.Arena
}

// NewRuntime builds a Runtime with a fresh atom table and arena, isolated
// from any other Runtime.
func NewRuntime() *Runtime {
	return &Runtime{Table: atomtable.New(), Arena: node.NewArena()}
}

var singleton = &Runtime{Table: atomtable.Default, Arena: node.NewArena()}

// Default returns the process-wide convenience Runtime (§5: the atom table
// and arena are the only state shared across turns, and only because they
// grow monotonically and are never mutated in place).
func Default() *Runtime { return singleton }

// RunOutcome is §6.1's RunOutcome: the answer, its quality, why the
// scheduler halted, the final ISR and trace, the assembled meta-summary,
// and the VM/Φ consistency detail.
type RunOutcome struct {
	Answer      string
	Quality     float64
	HaltReason  scheduler.HaltReason
	ISR         *isr.ISR
	Trace       *isr.Trace
	MetaSummary *node.Node
	CalcResult  summary.CalcExec

	// Route, LCMeta, and CodeAST surface route-level detail the
	// meta-summary only partially flattens (§6.2 --include-lc-meta,
	// --expect-code-digest), so CLI callers don't need to re-classify.
	Route   router.Route
	LCMeta  *node.Node
	CodeAST *node.Node
	Plan    router.Plan
}

// haltError is the halt_reason recorded when a Φ-operator itself failed
// mid-run (§7: "scheduler/VM errors are captured into the meta-summary and
// the answer text becomes a diagnostic string").
const haltError scheduler.HaltReason = "ERROR"

// RunText runs one turn against the default Runtime.
func RunText(text string, cfg *config.Config) (*RunOutcome, error) {
	return Default().RunText(text, cfg)
}

// RunText classifies text, executes its Φ-plan, and assembles the
// meta-summary (§2 data flow: text → Meta-Transformer → Scheduler loop →
// final ISR → Meta-Summary). Classify/Assemble failures that indicate a
// caller bug (ill-formed constructions) are returned as errors; Φ-operator
// or VM failures during the turn are instead captured into the outcome's
// meta-summary per §7's propagation policy — RunText only returns an error
// when the outcome itself could not be assembled.
func (rt *Runtime) RunText(text string, cfg *config.Config) (*RunOutcome, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	trimmed := strings.TrimSpace(text)

	route := router.Classify(trimmed, rt.Table, cfg)

	ont, err := ontology.New(cfg.Ontology.FactLimit)
	if err != nil {
		return nil, fmt.Errorf("engine: ontology init: %w", err)
	}

	session := isr.NewSession(rt.Arena, cfg.Scheduler.StepBudget, cfg.Scheduler.QualityThreshold, cfg.Scheduler.ContradictionsEnabled)
	session.LanguageHint = string(route.LanguageProfile.Code)

	for _, fact := range route.OntologyFacts {
		session.ISR.AddOntologyFact(fact)
		if err := ont.AddRelation(fact); err != nil {
			return nil, fmt.Errorf("engine: seed ontology fact: %w", err)
		}
	}

	seedContext(session.ISR, route)

	if route.HasPreseed {
		session.ISR.Answer = rt.Arena.Canonical(node.NewText(route.PreseedAnswer))
		session.ISR.BumpQuality(route.PreseedQuality)
	}
	for _, op := range route.SeedOps {
		session.ISR.PushOp(op)
	}

	deps := phi.Deps{Table: rt.Table, Arena: rt.Arena, Ontology: ont, ContextCap: cfg.Scheduler.ContextCap}

	var (
		halt   scheduler.HaltReason
		runErr error
	)
	if cfg.Scheduler.CalcMode == "plan_only" {
		m := vm.New(rt.Table, rt.Arena, deps, session.ISR)
		_, runErr = m.Run(route.Plan.Program)
		halt = scheduler.HaltPlanExecuted
	} else {
		halt, runErr = scheduler.Run(session, deps, cfg.Scheduler.ContradictionsEnabled)
	}

	if runErr != nil {
		halt = haltError
		session.ISR.Answer = rt.Arena.Canonical(node.NewText(fmt.Sprintf("diagnóstico: %v", runErr)))
	}

	metaSummary, calcResult, err := summary.Assemble(summary.Input{
		Table:      rt.Table,
		Arena:      rt.Arena,
		InputText:  trimmed,
		Session:    session,
		Route:      route,
		HaltReason: halt,
		RunErr:     runErr,
		Deps:       deps,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: assemble meta-summary: %w", err)
	}

	return &RunOutcome{
		Answer:      textOf(session.ISR.Answer),
		Quality:     session.ISR.Quality,
		HaltReason:  halt,
		ISR:         session.ISR,
		Trace:       session.Trace,
		MetaSummary: metaSummary,
		CalcResult:  calcResult,
		Route:       route.Route,
		LCMeta:      route.LCMeta,
		CodeAST:     route.CodeAST,
		Plan:        route.Plan,
	}, nil
}

// seedContext pushes the Meta-Transformer's always-on context nodes (§4.6:
// "every route emits at least a meta_route node, a meta_input node... a
// meta_plan node, and a language_profile node"), plus route-specific
// STRUCT/lc_meta nodes when present.
func seedContext(state *isr.ISR, route *router.Result) {
	push := func(n *node.Node) {
		if n != nil && !node.IsNil(n) {
			state.PushContext(n)
		}
	}
	push(route.MetaRoute)
	push(route.MetaInput)
	push(route.MetaPlan)
	push(route.LanguageProfileNode)
	push(route.StructNode)
	push(route.LCMeta)
	push(route.CodeAST)
	push(route.CodeSummary)
	push(route.MathAST)
}

func textOf(n *node.Node) string {
	if n == nil || n.Kind != node.KindText {
		return ""
	}
	return n.Text
}
