// Package normalize implements canonicalization over the LIU node algebra
// (§4.3): recursive arena-canonicalization of a node tree, plus
// deterministic deduplication of relation sets. Grounded on the teacher's
// internal/mangle/schema_validator.go bookkeeping style (sorted maps,
// deterministic iteration over predicate/arity pairs), applied here to
// STRUCT field sorting and relation dedup/sort.
package normalize

import (
	"sort"
	"strings"

	"github.com/metanucleus/metanucleus/internal/node"
)

// Normalize recursively canonicalizes n through ar: STRUCT fields are
// sorted and deduplicated by the Node constructors themselves, LIST items
// and REL/OP args are canonicalized into a rebuilt node (the input node is
// left untouched), and every other variant
// passes through canonicalization unchanged (§4.3).
func Normalize(ar *node.Arena, n *node.Node) *node.Node {
	return ar.Canonical(n)
}

// Relation is a canonical (label, arg-label-tuple) view of a REL node, the
// derived form ISR.relations stores (§3.3).
type Relation struct {
	Label string
	Args  []string
}

// key renders the relation as a single sortable string
// "label(arg1,arg2,...)".
func (r Relation) key() string {
	return r.Label + "(" + strings.Join(r.Args, ",") + ")"
}

// RelationOf extracts the canonical (label, arg-labels) view of a REL node.
// Non-REL nodes and REL nodes with non-ENTITY/VAR arguments have no stable
// label-tuple view and are skipped by callers building a Relation set.
func RelationOf(n *node.Node) (Relation, bool) {
	if n.Kind != node.KindRel {
		return Relation{}, false
	}
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		switch a.Kind {
		case node.KindEntity, node.KindVar:
			args[i] = a.Label.String()
		default:
			return Relation{}, false
		}
	}
	return Relation{Label: n.Label.String(), Args: args}, true
}

// DedupRelations normalizes and deduplicates a set of REL nodes, returning
// their canonical Relation view sorted by (label, arg-label-tuple) for a
// deterministic, order-independent result (§4.3).
func DedupRelations(ar *node.Arena, rs []*node.Node) []Relation {
	seen := make(map[string]Relation)
	for _, n := range rs {
		canon := Normalize(ar, n)
		rel, ok := RelationOf(canon)
		if !ok {
			continue
		}
		seen[rel.key()] = rel
	}

	out := make([]Relation, 0, len(seen))
	for _, rel := range seen {
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}
