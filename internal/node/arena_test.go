package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/atomtable"
)

func TestArena_CanonicalDedupesStructuralEquals(t *testing.T) {
	tbl := atomtable.New()
	ar := NewArena()

	a1, err := NewEntity(tbl, "alice")
	require.NoError(t, err)
	a2, err := NewEntity(tbl, "alice")
	require.NoError(t, err)

	c1 := ar.Canonical(a1)
	c2 := ar.Canonical(a2)
	assert.Same(t, c1, c2, "structurally equal ENTITY nodes must share a canonical representative")
}

func TestArena_CanonicalDedupesNestedRel(t *testing.T) {
	tbl := atomtable.New()
	ar := NewArena()

	alice, err := NewEntity(tbl, "alice")
	require.NoError(t, err)
	person, err := NewEntity(tbl, "person")
	require.NoError(t, err)
	r1, err := NewRel(tbl, "IS_A", alice, person)
	require.NoError(t, err)

	alice2, err := NewEntity(tbl, "alice")
	require.NoError(t, err)
	person2, err := NewEntity(tbl, "person")
	require.NoError(t, err)
	r2, err := NewRel(tbl, "IS_A", alice2, person2)
	require.NoError(t, err)

	c1 := ar.Canonical(r1)
	c2 := ar.Canonical(r2)
	assert.Same(t, c1, c2)
	assert.Same(t, c1.Args[0], c2.Args[0], "children must also be shared")
}

func TestArena_DistinctNodesStayDistinct(t *testing.T) {
	ar := NewArena()
	c1 := ar.Canonical(NewNumber(1))
	c2 := ar.Canonical(NewNumber(2))
	assert.NotSame(t, c1, c2)
	assert.Equal(t, 2, ar.Len())
}
