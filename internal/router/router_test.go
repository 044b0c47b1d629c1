package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/config"
)

func TestClassify_Math(t *testing.T) {
	res := Classify("2 + 2", atomtable.New(), config.Default())

	assert.Equal(t, RouteMath, res.Route)
	assert.True(t, res.HasPreseed)
	assert.Equal(t, "2 + 2 = 4", res.PreseedAnswer)
	assert.Equal(t, 1.0, res.PreseedQuality)
	assert.Empty(t, res.Plan.Ops)
	assert.NotNil(t, res.MathAST)
}

func TestClassify_LogicFactAssertsRelation(t *testing.T) {
	res := Classify("FACT engine PART_OF car", atomtable.New(), config.Default())

	assert.Equal(t, RouteLogic, res.Route)
	require.Len(t, res.OntologyFacts, 1)
	assert.Equal(t, "PART_OF", res.OntologyFacts[0].Label.String())
	assert.True(t, res.HasPreseed)
}

func TestClassify_LogicRuleWithIfThen(t *testing.T) {
	res := Classify("RULE IF chuva THEN rua molhada", atomtable.New(), config.Default())

	assert.Equal(t, RouteLogic, res.Route)
	require.Len(t, res.OntologyFacts, 1)
	assert.Equal(t, "CAUSE", res.OntologyFacts[0].Label.String())
}

func TestClassify_LogicQueryHasNoFacts(t *testing.T) {
	res := Classify("QUERY quem é o motor", atomtable.New(), config.Default())

	assert.Equal(t, RouteLogic, res.Route)
	assert.Empty(t, res.OntologyFacts)
	assert.True(t, res.HasPreseed)
}

// TestClassify_CodePython reproduces the end-to-end scenario table's S5:
// a Python function definition routes to CODE, with code_ast language
// "python" and at least one detected function.
func TestClassify_CodePython(t *testing.T) {
	res := Classify("def soma(a, b):\n    return a + b", atomtable.New(), config.Default())

	require.Equal(t, RouteCode, res.Route)
	require.NotNil(t, res.CodeAST)
	lang, ok := res.CodeAST.Field("language")
	require.True(t, ok)
	assert.Equal(t, "python", lang.Text)

	require.NotNil(t, res.CodeSummary)
	fnCount, ok := res.CodeSummary.Field("function_count")
	require.True(t, ok)
	assert.GreaterOrEqual(t, fnCount.Number, 1.0)
	assert.True(t, res.HasPreseed)
}

func TestClassify_CodeGo(t *testing.T) {
	res := Classify("func soma(a int, b int) int {\n\treturn a + b\n}", atomtable.New(), config.Default())

	require.Equal(t, RouteCode, res.Route)
	lang, ok := res.CodeAST.Field("language")
	require.True(t, ok)
	assert.Equal(t, "go", lang.Text)
}

func TestClassify_CodeExtraLanguagesGatedByConfig(t *testing.T) {
	cfg := config.Default()
	res := Classify("function soma(a, b) { return a + b; }", atomtable.New(), cfg)
	assert.NotEqual(t, RouteCode, res.Route, "javascript must not route to CODE when ExtraCodeLanguages is off")

	cfg.Ontology.ExtraCodeLanguages = true
	res = Classify("function soma(a, b) { return a + b; }", atomtable.New(), cfg)
	assert.Equal(t, RouteCode, res.Route)
}

// TestClassify_InstinctGreeting reproduces S3: a Portuguese greeting routes
// to INSTINCT with quality >= 0.85.
func TestClassify_InstinctGreeting(t *testing.T) {
	res := Classify("Oi Metanúcleo!", atomtable.New(), config.Default())

	require.Equal(t, RouteInstinct, res.Route)
	assert.True(t, res.HasPreseed)
	assert.GreaterOrEqual(t, res.PreseedQuality, 0.85)
	assert.NotEmpty(t, res.PreseedAnswer)
}

func TestClassify_InstinctYesNo(t *testing.T) {
	res := Classify("sim", atomtable.New(), config.Default())

	assert.Equal(t, RouteInstinct, res.Route)
	assert.Equal(t, "Entendido.", res.PreseedAnswer)
}

func TestClassify_TextFallback(t *testing.T) {
	res := Classify("o que aconteceu aqui?", atomtable.New(), config.Default())

	require.Equal(t, RouteText, res.Route)
	assert.False(t, res.HasPreseed)
	assert.Equal(t, []string{"NORMALIZE", "INFER", "SUMMARIZE"}, res.Plan.Ops)
	require.Len(t, res.SeedOps, 4)
	assert.Equal(t, "INTENT", res.SeedOps[0].Label.String())
	assert.NotNil(t, res.LCMeta)
}

func TestClassify_AlwaysPopulatesMetaNodes(t *testing.T) {
	res := Classify("2 + 2", atomtable.New(), config.Default())

	assert.NotNil(t, res.MetaRoute)
	assert.NotNil(t, res.MetaInput)
	assert.NotNil(t, res.MetaPlan)
	assert.NotNil(t, res.LanguageProfileNode)
}

func TestClassify_PlanDigestIsDeterministic(t *testing.T) {
	cfg := config.Default()
	a := Classify("2 + 2", atomtable.New(), cfg)
	b := Classify("2 + 2", atomtable.New(), cfg)
	assert.Equal(t, a.Plan.Digest, b.Plan.Digest)
}
