package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/config"
	"github.com/metanucleus/metanucleus/internal/fingerprint"
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/ontology"
	"github.com/metanucleus/metanucleus/internal/phi"
	"github.com/metanucleus/metanucleus/internal/router"
	"github.com/metanucleus/metanucleus/internal/scheduler"
)

// runTurn drives the same classify/seed/scheduler sequence as
// internal/engine, kept independent so this package's tests don't import
// engine (which itself depends on summary).
func runTurn(t *testing.T, text string, cfg *config.Config) (*isr.Session, *router.Result, phi.Deps, scheduler.HaltReason) {
	t.Helper()
	table := atomtable.New()
	arena := node.NewArena()

	route := router.Classify(text, table, cfg)
	ont, err := ontology.New(cfg.Ontology.FactLimit)
	require.NoError(t, err)

	session := isr.NewSession(arena, cfg.Scheduler.StepBudget, cfg.Scheduler.QualityThreshold, cfg.Scheduler.ContradictionsEnabled)
	for _, fact := range route.OntologyFacts {
		session.ISR.AddOntologyFact(fact)
		require.NoError(t, ont.AddRelation(fact))
	}
	if route.HasPreseed {
		session.ISR.Answer = arena.Canonical(node.NewText(route.PreseedAnswer))
		session.ISR.BumpQuality(route.PreseedQuality)
	}
	for _, op := range route.SeedOps {
		session.ISR.PushOp(op)
	}

	deps := phi.Deps{Table: table, Arena: arena, Ontology: ont, ContextCap: cfg.Scheduler.ContextCap}
	halt, err := scheduler.Run(session, deps, cfg.Scheduler.ContradictionsEnabled)
	require.NoError(t, err)

	return session, route, deps, halt
}

func TestAssemble_MathRoute_ConsistentCrossCheck(t *testing.T) {
	cfg := config.Default()
	table := atomtable.New()
	arena := node.NewArena()
	route := router.Classify("2 + 2", table, cfg)

	ont, err := ontology.New(cfg.Ontology.FactLimit)
	require.NoError(t, err)
	session := isr.NewSession(arena, cfg.Scheduler.StepBudget, cfg.Scheduler.QualityThreshold, cfg.Scheduler.ContradictionsEnabled)
	session.ISR.Answer = arena.Canonical(node.NewText(route.PreseedAnswer))
	session.ISR.BumpQuality(route.PreseedQuality)

	deps := phi.Deps{Table: table, Arena: arena, Ontology: ont, ContextCap: cfg.Scheduler.ContextCap}

	summaryNode, calcExec, err := Assemble(Input{
		Table:      table,
		Arena:      arena,
		InputText:  "2 + 2",
		Session:    session,
		Route:      route,
		HaltReason: scheduler.HaltQueueEmpty,
		Deps:       deps,
	})
	require.NoError(t, err)
	assert.True(t, calcExec.Consistent, "cross-check should reproduce the preseeded answer: %s", calcExec.Error)
	assert.Empty(t, calcExec.Error)

	digestField, ok := summaryNode.Field("meta_digest")
	require.True(t, ok)
	assert.NotEmpty(t, digestField.Text)

	routeField, ok := summaryNode.Field("route")
	require.True(t, ok)
	assert.Equal(t, "math", routeField.Text)
}

func TestAssemble_TextRoute_RunsThroughFullScheduler(t *testing.T) {
	cfg := config.Default()
	text := "o que aconteceu aqui?"
	session, route, deps, halt := runTurn(t, text, cfg)

	summaryNode, calcExec, err := Assemble(Input{
		Table:      deps.Table,
		Arena:      session.ISR.Arena,
		InputText:  text,
		Session:    session,
		Route:      route,
		HaltReason: halt,
		Deps:       deps,
	})
	require.NoError(t, err)
	assert.NotNil(t, summaryNode)

	langCat, ok := summaryNode.Field("language_category")
	require.True(t, ok)
	assert.Equal(t, "text", langCat.Text)

	assert.True(t, calcExec.Consistent, "cross-check should pass once the answer is substituted in: %s", calcExec.Error)
	assert.NotEmpty(t, calcExec.SnapshotDigest)
}

// TestAssemble_TextRoute_ConsistencyDependsOnAnswerSubstitution locks in the
// named deviation documented in runCalcExec and SPEC_FULL.md's consistency
// check section: the text route's sole VM constant (the lc_meta_calc
// descriptor) does not already equal the scheduler's final answer, so the
// check can only pass because runCalcExec substitutes the real answer in
// before re-running. If that substitution were ever removed, the VM would
// re-emit the raw descriptor and calcExec.Consistent would flip to false.
func TestAssemble_TextRoute_ConsistencyDependsOnAnswerSubstitution(t *testing.T) {
	cfg := config.Default()
	text := "o que aconteceu aqui?"
	session, route, deps, halt := runTurn(t, text, cfg)

	finalFP := fingerprint.MustOf(session.ISR.Answer)

	require.Len(t, route.Plan.Program.Constants, 1, "text route program must carry exactly the lc_meta_calc descriptor")
	rawFP := fingerprint.MustOf(route.Plan.Program.Constants[0])
	assert.NotEqual(t, finalFP, rawFP, "lc_meta_calc payload must differ from the final answer for the substitution to matter")

	_, calcExec, err := Assemble(Input{
		Table:      deps.Table,
		Arena:      session.ISR.Arena,
		InputText:  text,
		Session:    session,
		Route:      route,
		HaltReason: halt,
		Deps:       deps,
	})
	require.NoError(t, err)
	assert.True(t, calcExec.Consistent)
	assert.Equal(t, finalFP.String(), calcExec.AnswerFingerprint)
}

func TestAssemble_MetaDigestIsDeterministic(t *testing.T) {
	cfg := config.Default()
	build := func() *node.Node {
		table := atomtable.New()
		arena := node.NewArena()
		route := router.Classify("2 + 2", table, cfg)
		ont, err := ontology.New(cfg.Ontology.FactLimit)
		require.NoError(t, err)
		session := isr.NewSession(arena, cfg.Scheduler.StepBudget, cfg.Scheduler.QualityThreshold, cfg.Scheduler.ContradictionsEnabled)
		session.ISR.Answer = arena.Canonical(node.NewText(route.PreseedAnswer))
		session.ISR.BumpQuality(route.PreseedQuality)
		deps := phi.Deps{Table: table, Arena: arena, Ontology: ont, ContextCap: cfg.Scheduler.ContextCap}
		n, _, err := Assemble(Input{
			Table: table, Arena: arena, InputText: "2 + 2", Session: session,
			Route: route, HaltReason: scheduler.HaltQueueEmpty, Deps: deps,
		})
		require.NoError(t, err)
		return n
	}

	a := build()
	b := build()

	fa, err := fingerprint.Of(a)
	require.NoError(t, err)
	fb, err := fingerprint.Of(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb, "identical inputs must assemble identical meta-summaries")
}
