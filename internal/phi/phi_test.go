package phi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/normalize"
	"github.com/metanucleus/metanucleus/internal/ontology"
)

func newDeps(t *testing.T) (Deps, *atomtable.Table) {
	t.Helper()
	table := atomtable.New()
	arena := node.NewArena()
	ont, err := ontology.New(0)
	require.NoError(t, err)
	return Deps{Table: table, Arena: arena, Ontology: ont}, table
}

func TestApply_UnknownOperatorErrors(t *testing.T) {
	deps, table := newDeps(t)
	state := isr.New(deps.Arena)
	op, err := node.NewOp(table, "BOGUS")
	require.NoError(t, err)

	_, err = Apply(state, op, deps)
	assert.Error(t, err)
}

func TestApply_NormalizeTruncatesContextAndBumpsQuality(t *testing.T) {
	deps, _ := newDeps(t)
	state := isr.New(deps.Arena)
	for i := 0; i < 20; i++ {
		state.PushContext(node.NewNumber(float64(i)))
	}

	result, err := Apply(state, mustOp(t, deps.Table, "NORMALIZE"), deps)
	require.NoError(t, err)
	assert.Equal(t, 0.05, result.DeltaQuality)
	assert.Len(t, state.Context, isr.ContextCap)
	assert.Equal(t, 0.05, state.Quality)
}

func TestApply_IntentGreetingCascadesToAnswer(t *testing.T) {
	deps, table := newDeps(t)
	state := isr.New(deps.Arena)
	msg, err := node.NewStruct(map[string]*node.Node{"text": node.NewText("Oi tudo bem?")})
	require.NoError(t, err)
	op, err := node.NewOp(table, "INTENT", msg)
	require.NoError(t, err)

	_, err = Apply(state, op, deps)
	require.NoError(t, err)
	require.Len(t, state.OpsQueue, 2)
	assert.Equal(t, "STRUCTURE", state.OpsQueue[0].Label.String())
	assert.Equal(t, "SEMANTICS", state.OpsQueue[1].Label.String())

	for len(state.OpsQueue) > 0 {
		next, ok := state.PopOp()
		require.True(t, ok)
		_, err := Apply(state, next, deps)
		require.NoError(t, err)
	}

	require.NotNil(t, state.Answer)
	assert.NotEmpty(t, state.Answer.Text)
	assert.True(t, state.Quality > 0)
}

func TestApply_CalculusAndAnswerProduceExpressionResult(t *testing.T) {
	deps, table := newDeps(t)
	state := isr.New(deps.Arena)
	msg, err := node.NewStruct(map[string]*node.Node{"text": node.NewText("quanto é 2 + 2?")})
	require.NoError(t, err)
	op, err := node.NewOp(table, "CALCULUS", msg)
	require.NoError(t, err)

	_, err = Apply(state, op, deps)
	require.NoError(t, err)
	require.Len(t, state.OpsQueue, 1)
	assert.Equal(t, "ANSWER", state.OpsQueue[0].Label.String())

	next, ok := state.PopOp()
	require.True(t, ok)
	result, err := Apply(state, next, deps)
	require.NoError(t, err)
	assert.Equal(t, 0.2, result.DeltaQuality)
	require.NotNil(t, state.Answer)
	assert.Contains(t, state.Answer.Text, "2 + 2 = 4")
}

func TestApply_InferMergesOntologyRelations(t *testing.T) {
	deps, table := newDeps(t)
	state := isr.New(deps.Arena)

	a, err := node.NewEntity(table, "engine")
	require.NoError(t, err)
	b, err := node.NewEntity(table, "car")
	require.NoError(t, err)
	c, err := node.NewEntity(table, "vehicle")
	require.NoError(t, err)
	rel1, err := node.NewRel(table, "PART_OF", a, b)
	require.NoError(t, err)
	rel2, err := node.NewRel(table, "PART_OF", b, c)
	require.NoError(t, err)
	require.NoError(t, deps.Ontology.AddRelation(rel1))
	require.NoError(t, deps.Ontology.AddRelation(rel2))

	result, err := Apply(state, mustOp(t, table, "INFER"), deps)
	require.NoError(t, err)
	assert.False(t, result.Contradiction)
	assert.True(t, result.DeltaRelations > 0)

	found := false
	for _, k := range RelationKeys(state.Relations) {
		if k == "PART_OF(engine,vehicle)" {
			found = true
		}
	}
	assert.True(t, found, "expected transitively derived PART_OF(engine,vehicle), got %v", RelationKeys(state.Relations))
}

func TestApply_SummarizeIsIdempotent(t *testing.T) {
	deps, table := newDeps(t)
	state := isr.New(deps.Arena)

	_, err := Apply(state, mustOp(t, table, "SUMMARIZE"), deps)
	require.NoError(t, err)
	firstLen := len(state.Context)

	_, err = Apply(state, mustOp(t, table, "SUMMARIZE"), deps)
	require.NoError(t, err)
	assert.Equal(t, firstLen+1, len(state.Context))
}

func TestApply_StateQueryRunsNormalizeInferSummarizeInline(t *testing.T) {
	deps, table := newDeps(t)
	state := isr.New(deps.Arena)

	result, err := Apply(state, mustOp(t, table, "STATE_QUERY"), deps)
	require.NoError(t, err)
	assert.Equal(t, 0.05, result.DeltaQuality)
	assert.NotEmpty(t, state.Context)
}

func TestRelationKeys_SortedDeterministically(t *testing.T) {
	rs := []normalize.Relation{{Label: "B", Args: []string{"x"}}, {Label: "A", Args: []string{"y"}}}
	keys := RelationKeys(rs)
	assert.Equal(t, []string{"A(y)", "B(x)"}, keys)
}

func mustOp(t *testing.T, table *atomtable.Table, label string, args ...*node.Node) *node.Node {
	t.Helper()
	op, err := node.NewOp(table, label, args...)
	require.NoError(t, err)
	return op
}
