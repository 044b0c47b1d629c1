package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/config"
	"github.com/metanucleus/metanucleus/internal/router"
	"github.com/metanucleus/metanucleus/internal/scheduler"
)

func TestRunText_MathRouteHaltsQueueEmpty(t *testing.T) {
	rt := NewRuntime()
	outcome, err := rt.RunText("2 + 2", config.Default())
	require.NoError(t, err)

	assert.Equal(t, router.RouteMath, outcome.Route)
	assert.Equal(t, "2 + 2 = 4", outcome.Answer)
	assert.Equal(t, scheduler.HaltQueueEmpty, outcome.HaltReason)
	assert.Equal(t, 1.0, outcome.Quality)
	assert.NotNil(t, outcome.MetaSummary)
}

func TestRunText_LogicFactSeedsOntology(t *testing.T) {
	rt := NewRuntime()
	outcome, err := rt.RunText("FACT engine PART_OF car", config.Default())
	require.NoError(t, err)

	assert.Equal(t, router.RouteLogic, outcome.Route)
	require.Len(t, outcome.ISR.Ontology, 1)
}

func TestRunText_TextRouteRunsFullPhiChain(t *testing.T) {
	rt := NewRuntime()
	outcome, err := rt.RunText("o que é um motor?", config.Default())
	require.NoError(t, err)

	assert.Equal(t, router.RouteText, outcome.Route)
	assert.NotEmpty(t, outcome.Trace.Steps)
	assert.True(t, outcome.Quality > 0)
}

func TestRunText_PlanOnlyCalcModeSkipsScheduler(t *testing.T) {
	rt := NewRuntime()
	cfg := config.Default()
	cfg.Scheduler.CalcMode = "plan_only"

	outcome, err := rt.RunText("2 + 2", cfg)
	require.NoError(t, err)
	assert.Equal(t, scheduler.HaltPlanExecuted, outcome.HaltReason)
}

func TestDefault_ReturnsProcessWideSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestNewRuntime_IsolatesState(t *testing.T) {
	a, b := NewRuntime(), NewRuntime()
	assert.NotSame(t, a.Table, b.Table)
	assert.NotSame(t, a.Arena, b.Arena)
}

// TestRunText_InstinctGreetingMeetsQualityFloor reproduces the end-to-end
// scenario table's S3: a Portuguese greeting routes to INSTINCT with quality
// at least 0.85.
func TestRunText_InstinctGreetingMeetsQualityFloor(t *testing.T) {
	rt := NewRuntime()
	outcome, err := rt.RunText("Oi Metanúcleo!", config.Default())
	require.NoError(t, err)

	assert.Equal(t, router.RouteInstinct, outcome.Route)
	assert.GreaterOrEqual(t, outcome.Quality, 0.85)
	assert.NotEmpty(t, outcome.Answer)
}

// TestRunText_CodePythonFunctionReproducesS5 reproduces the end-to-end
// scenario table's S5: a Python function definition routes to CODE, with
// the meta-summary's code_ast_language flattened to "python" and
// code_summary_function_count at least 1.
func TestRunText_CodePythonFunctionReproducesS5(t *testing.T) {
	rt := NewRuntime()
	outcome, err := rt.RunText("def soma(a, b):\n    return a + b", config.Default())
	require.NoError(t, err)

	require.Equal(t, router.RouteCode, outcome.Route)

	langField, ok := outcome.MetaSummary.Field("code_ast_language")
	require.True(t, ok)
	assert.Equal(t, "python", langField.Text)

	fnCountField, ok := outcome.MetaSummary.Field("code_summary_function_count")
	require.True(t, ok)
	assert.GreaterOrEqual(t, fnCountField.Number, 1.0)
}
