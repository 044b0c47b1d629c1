package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/ontology"
	"github.com/metanucleus/metanucleus/internal/phi"
)

func newDeps(t *testing.T) (phi.Deps, *atomtable.Table) {
	t.Helper()
	table := atomtable.New()
	arena := node.NewArena()
	ont, err := ontology.New(0)
	require.NoError(t, err)
	return phi.Deps{Table: table, Arena: arena, Ontology: ont}, table
}

func TestRun_QueueEmptyHaltsImmediately(t *testing.T) {
	deps, _ := newDeps(t)
	session := isr.NewSession(deps.Arena, 32, 1.0, true)

	halt, err := Run(session, deps, true)
	require.NoError(t, err)
	assert.Equal(t, HaltQueueEmpty, halt)
	assert.Empty(t, session.Trace.Steps)
}

func TestRun_StepBudgetExhausted(t *testing.T) {
	deps, table := newDeps(t)
	session := isr.NewSession(deps.Arena, 3, 10.0, true) // unreachable quality threshold
	for i := 0; i < 10; i++ {
		op, err := node.NewOp(table, "NORMALIZE")
		require.NoError(t, err)
		session.ISR.PushOp(op)
	}

	halt, err := Run(session, deps, true)
	require.NoError(t, err)
	assert.Equal(t, HaltStepBudget, halt)
	assert.Len(t, session.Trace.Steps, 3)
}

func TestRun_QualityThresholdHaltsOnceAnswerIsSet(t *testing.T) {
	deps, table := newDeps(t)
	session := isr.NewSession(deps.Arena, 32, 0.2, true)
	msg, err := node.NewStruct(map[string]*node.Node{"text": node.NewText("oi")})
	require.NoError(t, err)
	op, err := node.NewOp(table, "ANSWER", msg)
	require.NoError(t, err)
	session.ISR.PushOp(op)

	halt, err := Run(session, deps, true)
	require.NoError(t, err)
	assert.Equal(t, HaltQualityThreshold, halt)
	assert.False(t, node.IsNil(session.ISR.Answer))
}

func TestRun_ContradictionHaltsWhenEnabled(t *testing.T) {
	deps, table := newDeps(t)
	a, err := node.NewEntity(table, "x")
	require.NoError(t, err)
	b, err := node.NewEntity(table, "y")
	require.NoError(t, err)
	eq, err := node.NewRel(table, "EQUAL", a, b)
	require.NoError(t, err)
	neq, err := node.NewRel(table, "NEQ", a, b)
	require.NoError(t, err)
	require.NoError(t, deps.Ontology.AddRelation(eq))
	require.NoError(t, deps.Ontology.AddRelation(neq))

	session := isr.NewSession(deps.Arena, 32, 1.0, true)
	op, err := node.NewOp(table, "INFER")
	require.NoError(t, err)
	session.ISR.PushOp(op)

	halt, err := Run(session, deps, true)
	require.NoError(t, err)
	assert.Equal(t, HaltContradiction, halt)
}

func TestRun_ContradictionIgnoredWhenDisabled(t *testing.T) {
	deps, table := newDeps(t)
	a, err := node.NewEntity(table, "x")
	require.NoError(t, err)
	b, err := node.NewEntity(table, "y")
	require.NoError(t, err)
	eq, err := node.NewRel(table, "EQUAL", a, b)
	require.NoError(t, err)
	neq, err := node.NewRel(table, "NEQ", a, b)
	require.NoError(t, err)
	require.NoError(t, deps.Ontology.AddRelation(eq))
	require.NoError(t, deps.Ontology.AddRelation(neq))

	session := isr.NewSession(deps.Arena, 1, 1.0, false)
	op, err := node.NewOp(table, "INFER")
	require.NoError(t, err)
	session.ISR.PushOp(op)

	halt, err := Run(session, deps, false)
	require.NoError(t, err)
	assert.NotEqual(t, HaltContradiction, halt)
}

func TestRun_OperatorErrorPropagatesWithEmptyHalt(t *testing.T) {
	deps, table := newDeps(t)
	session := isr.NewSession(deps.Arena, 32, 1.0, true)
	op, err := node.NewOp(table, "BOGUS")
	require.NoError(t, err)
	session.ISR.PushOp(op)

	halt, err := Run(session, deps, true)
	assert.Error(t, err)
	assert.Equal(t, HaltReason(""), halt)
}

func TestRun_DefaultsStepBudgetWhenUnset(t *testing.T) {
	deps, table := newDeps(t)
	session := isr.NewSession(deps.Arena, 0, 10.0, true)
	for i := 0; i < 40; i++ {
		op, err := node.NewOp(table, "NORMALIZE")
		require.NoError(t, err)
		session.ISR.PushOp(op)
	}

	halt, err := Run(session, deps, true)
	require.NoError(t, err)
	assert.Equal(t, HaltStepBudget, halt)
	assert.Len(t, session.Trace.Steps, 32)
}
