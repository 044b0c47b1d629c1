package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/node"
)

func TestDedupRelations_SortedAndDeduped(t *testing.T) {
	tbl := atomtable.New()
	ar := node.NewArena()

	alice, err := node.NewEntity(tbl, "alice")
	require.NoError(t, err)
	bob, err := node.NewEntity(tbl, "bob")
	require.NoError(t, err)
	person, err := node.NewEntity(tbl, "person")
	require.NoError(t, err)

	r1, err := node.NewRel(tbl, "IS_A", alice, person)
	require.NoError(t, err)
	r1dup, err := node.NewRel(tbl, "IS_A", alice, person)
	require.NoError(t, err)
	r2, err := node.NewRel(tbl, "IS_A", bob, person)
	require.NoError(t, err)

	out := DedupRelations(ar, []*node.Node{r2, r1, r1dup})
	require.Len(t, out, 2)
	assert.Equal(t, "IS_A", out[0].Label)
	assert.Equal(t, []string{"alice", "person"}, out[0].Args)
	assert.Equal(t, []string{"bob", "person"}, out[1].Args)
}

func TestDedupRelations_SkipsNonRelNodes(t *testing.T) {
	ar := node.NewArena()
	out := DedupRelations(ar, []*node.Node{node.NewNumber(1), node.NewText("x")})
	assert.Empty(t, out)
}
