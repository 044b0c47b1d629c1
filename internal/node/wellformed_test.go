package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanucleus/metanucleus/internal/atomtable"
)

func TestCheck_RejectsArityViolation(t *testing.T) {
	tbl := atomtable.New()
	alice, err := NewEntity(tbl, "alice")
	require.NoError(t, err)

	// Bypass the constructor's own check to exercise Check directly.
	bad := &Node{Kind: KindRel, Label: tbl.MustIntern("IS_A"), Args: []*Node{alice}}
	assert.Error(t, Check(bad))
}

func TestCheck_RejectsUnsortedStructFields(t *testing.T) {
	bad := &Node{Kind: KindStruct, Fields: []Field{
		{Key: "z", Value: NewNumber(1)},
		{Key: "a", Value: NewNumber(2)},
	}}
	assert.Error(t, Check(bad))
}

func TestCheck_RejectsDuplicateStructFields(t *testing.T) {
	bad := &Node{Kind: KindStruct, Fields: []Field{
		{Key: "a", Value: NewNumber(1)},
		{Key: "a", Value: NewNumber(2)},
	}}
	assert.Error(t, Check(bad))
}

func TestCheck_AcceptsWellFormedTree(t *testing.T) {
	tbl := atomtable.New()
	alice, err := NewEntity(tbl, "alice")
	require.NoError(t, err)
	person, err := NewEntity(tbl, "person")
	require.NoError(t, err)
	rel, err := NewRel(tbl, "IS_A", alice, person)
	require.NoError(t, err)

	s, err := NewStruct(map[string]*Node{"fact": rel})
	require.NoError(t, err)

	assert.NoError(t, Check(s))
}

func TestCheck_RecursesIntoNestedViolations(t *testing.T) {
	badStruct := &Node{Kind: KindStruct, Fields: []Field{
		{Key: "a", Value: NewNumber(1)},
		{Key: "a", Value: NewNumber(2)},
	}}
	wrapper := NewList(badStruct)
	assert.Error(t, Check(wrapper))
}
