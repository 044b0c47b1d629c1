package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/node"
)

func TestOf_StableAcrossEqualStructure(t *testing.T) {
	tbl := atomtable.New()
	a1, err := node.NewEntity(tbl, "alice")
	require.NoError(t, err)
	a2, err := node.NewEntity(tbl, "alice")
	require.NoError(t, err)

	d1, err := Of(a1)
	require.NoError(t, err)
	d2, err := Of(a2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1.String(), 32)
}

func TestOf_DiffersOnContent(t *testing.T) {
	d1, err := Of(node.NewNumber(1))
	require.NoError(t, err)
	d2, err := Of(node.NewNumber(2))
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestOf_IgnoresStructFieldInsertionOrder(t *testing.T) {
	tbl := atomtable.New()
	a, err := node.NewEntity(tbl, "alice")
	require.NoError(t, err)

	s1, err := node.NewStructOrdered([]node.Field{
		{Key: "a", Value: a},
		{Key: "b", Value: node.NewNumber(1)},
	})
	require.NoError(t, err)
	s2, err := node.NewStructOrdered([]node.Field{
		{Key: "b", Value: node.NewNumber(1)},
		{Key: "a", Value: a},
	})
	require.NoError(t, err)

	d1, err := Of(s1)
	require.NoError(t, err)
	d2, err := Of(s2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "field order must not affect the fingerprint")
}
