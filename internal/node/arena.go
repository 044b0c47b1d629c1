package node

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Arena hash-conses nodes so structurally equal values share one pointer
// (§3.1, §4.2). Grounded on the teacher's internal/mangle/engine.go
// predicateIndex + atom-interning pattern, generalized from predicate
// symbols to arbitrary structural keys built over the full Node sum type.
type Arena struct {
	mu    sync.Mutex
	table map[string]*Node
}

// NewArena creates an empty Arena.
func NewArena() *Arena {
	return &Arena{table: make(map[string]*Node)}
}

// Canonical returns the arena's representative for a structurally equal
// node, interning n as that representative if none exists yet. Children are
// canonicalized first so a node's key only ever references already-interned
// pointers (Design Note: hash-consing replaces shared-ownership graphs with
// arena + pointer indices).
func (ar *Arena) Canonical(n *Node) *Node {
	if n == nil {
		return Nil
	}
	n = ar.canonicalizeChildren(n)
	key := StructuralKey(n)

	ar.mu.Lock()
	defer ar.mu.Unlock()
	if existing, ok := ar.table[key]; ok {
		return existing
	}
	ar.table[key] = n
	return n
}

// canonicalizeChildren rebuilds n with every child replaced by its own
// canonical representative, without mutating n in place (Nodes are
// immutable once constructed).
func (ar *Arena) canonicalizeChildren(n *Node) *Node {
	switch n.Kind {
	case KindRel, KindOp:
		args := make([]*Node, len(n.Args))
		for i, c := range n.Args {
			args[i] = ar.Canonical(c)
		}
		return &Node{Kind: n.Kind, Label: n.Label, Args: args}
	case KindStruct:
		fields := make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = Field{Key: f.Key, Value: ar.Canonical(f.Value)}
		}
		return &Node{Kind: KindStruct, Fields: fields}
	case KindList:
		items := make([]*Node, len(n.Items))
		for i, c := range n.Items {
			items[i] = ar.Canonical(c)
		}
		return &Node{Kind: KindList, Items: items}
	default:
		return n
	}
}

// Len returns the number of distinct canonical nodes held by the arena.
func (ar *Arena) Len() int {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return len(ar.table)
}

// StructuralKey flattens a node into the string form used both for arena
// dedup and, verbatim, as the preimage fed to the fingerprint digest (§4.2):
// "kind|L=label|V=value|F[k:childkey;...]|A[childkey,...]". It does not
// require n's children to be arena-canonical: the flattening is purely
// structural and recurses regardless of pointer sharing.
func StructuralKey(n *Node) string {
	var b strings.Builder
	b.WriteString(n.Kind.String())
	switch n.Kind {
	case KindEntity, KindVar:
		b.WriteString("|L=")
		b.WriteString(n.Label.String())
	case KindRel, KindOp:
		b.WriteString("|L=")
		b.WriteString(n.Label.String())
		b.WriteString("|A[")
		for i, a := range n.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(childRef(a))
		}
		b.WriteByte(']')
	case KindStruct:
		b.WriteString("|F[")
		for i, f := range n.Fields {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(f.Key)
			b.WriteByte(':')
			b.WriteString(childRef(f.Value))
		}
		b.WriteByte(']')
	case KindList:
		b.WriteString("|A[")
		for i, it := range n.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(childRef(it))
		}
		b.WriteByte(']')
	case KindText:
		b.WriteString("|V=")
		b.WriteString(n.Text)
	case KindNumber:
		b.WriteString("|V=")
		b.WriteString(strconv.FormatFloat(n.Number, 'g', -1, 64))
	case KindBool:
		b.WriteString("|V=")
		b.WriteString(strconv.FormatBool(n.Bool))
	}
	return b.String()
}

// childRef identifies an already-canonical child node within a parent's key.
// Pointer identity is sufficient once children are canonical, but the
// pointer value itself isn't stable across runs, so the structural key of
// the child is used instead (cheap to recompute; children are shallow).
func childRef(n *Node) string {
	return fmt.Sprintf("(%s)", StructuralKey(n))
}
