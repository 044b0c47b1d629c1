package isr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metanucleus/metanucleus/internal/node"
)

func TestPrependOp_RunsBeforeQueued(t *testing.T) {
	i := New(node.NewArena())
	first := node.NewText("first")
	second := node.NewText("second")

	i.PushOp(first)
	i.PrependOp(second)

	op, ok := i.PopOp()
	assert.True(t, ok)
	assert.Same(t, second, op)

	op, ok = i.PopOp()
	assert.True(t, ok)
	assert.Same(t, first, op)
}

func TestTruncateContext_CapsAtSixteen(t *testing.T) {
	i := New(node.NewArena())
	for n := 0; n < 20; n++ {
		i.PushContext(node.NewNumber(float64(n)))
	}
	i.TruncateContext()
	assert.Len(t, i.Context, ContextCap)
	assert.Equal(t, float64(19), i.Context[len(i.Context)-1].Number)
}

func TestBumpQuality_ClampsAndNeverDecreases(t *testing.T) {
	i := New(node.NewArena())
	i.BumpQuality(0.5)
	assert.Equal(t, 0.5, i.Quality)

	i.BumpQuality(1.0)
	assert.Equal(t, 1.0, i.Quality)

	i.BumpQuality(-0.9)
	assert.Equal(t, 1.0, i.Quality, "quality must never decrease")
}

func TestTrace_CategoryDerivedFromPrefix(t *testing.T) {
	tr := NewTrace()
	s1 := tr.Append("NORMALIZE", 0.05, 0, 3)
	s2 := tr.Append("code/EVAL_PURE", 0, 0, 3)

	assert.Equal(t, "phi", s1.Category)
	assert.Equal(t, "code", s2.Category)
	assert.Equal(t, 0, s1.Order)
	assert.Equal(t, 1, s2.Order)
}
