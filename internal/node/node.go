// Package node implements the LIU canonical node algebra (§3.1): an
// immutable, tagged sum type with a hash-consing arena, closed under a
// single recursive visit used by the serializer, fingerprint, and
// well-formedness checker alike (Design Note: "avoid reflection by
// providing a single visit function").
//
// Grounded on the teacher's internal/types/types.go Fact/MangleAtom pattern
// (a typed wrapper distinguishing interned atoms from raw values) and the
// arity-checked conversion in internal/mangle/engine.go:factToAtomLocked,
// generalized from a single Datalog-fact shape into the full closed Node
// sum type the Design Notes call for ("model every Node variant as a sum
// type").
package node

import (
	"fmt"
	"sort"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/errs"
)

// Kind tags the Node variant (§3.1).
type Kind uint8

const (
	KindEntity Kind = iota
	KindRel
	KindOp
	KindStruct
	KindList
	KindText
	KindNumber
	KindBool
	KindVar
	KindNil
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "ENTITY"
	case KindRel:
		return "REL"
	case KindOp:
		return "OP"
	case KindStruct:
		return "STRUCT"
	case KindList:
		return "LIST"
	case KindText:
		return "TEXT"
	case KindNumber:
		return "NUMBER"
	case KindBool:
		return "BOOL"
	case KindVar:
		return "VAR"
	case KindNil:
		return "NIL"
	default:
		return "UNKNOWN"
	}
}

// Sort is the LIU type system (§3.1, §3.2).
type Sort uint8

const (
	SortThing Sort = iota
	SortProp
	SortOperator
	SortState
	SortList
	SortText
	SortNumber
	SortBool
	SortType // refinement of Thing used by IS_A's second argument
	SortAny
)

func (s Sort) String() string {
	switch s {
	case SortThing:
		return "Thing"
	case SortProp:
		return "Prop"
	case SortOperator:
		return "Operator"
	case SortState:
		return "State"
	case SortList:
		return "List"
	case SortText:
		return "Text"
	case SortNumber:
		return "Number"
	case SortBool:
		return "Bool"
	case SortType:
		return "Type"
	case SortAny:
		return "Any"
	default:
		return "Unknown"
	}
}

// NativeSort returns a Node's intrinsic sort (the "Sort" column of §3.1's table).
func (n *Node) NativeSort() Sort {
	switch n.Kind {
	case KindEntity:
		return SortThing
	case KindRel:
		return SortProp
	case KindOp:
		return SortOperator
	case KindStruct:
		return SortState
	case KindList:
		return SortList
	case KindText:
		return SortText
	case KindNumber:
		return SortNumber
	case KindBool:
		return SortBool
	case KindVar, KindNil:
		return SortAny
	default:
		return SortAny
	}
}

// Assignable reports whether a node of sort `actual` may fill a position
// declared as `declared` (§3.1: "sort of each argument must be Any or the
// declared sort"), with SortType treated as satisfied by SortThing (named
// type entities, e.g. IS_A's second argument).
func Assignable(actual, declared Sort) bool {
	if declared == SortAny || actual == SortAny {
		return true
	}
	if declared == SortType && actual == SortThing {
		return true
	}
	return actual == declared
}

// Field is one (key, value) pair of a STRUCT node. Fields are kept
// lexicographically sorted by Key with no duplicate keys (§3.1 invariant,
// §4.3 normalize, §8 P3).
type Field struct {
	Key   string
	Value *Node
}

// Node is an immutable tagged value (§3.1). Only the fields relevant to
// Kind are populated; callers should use the constructor functions rather
// than building Node literals directly so canonicalization and
// well-formedness are never bypassed.
type Node struct {
	Kind   Kind
	Label  atomtable.Atom // ENTITY / REL / OP / VAR
	Args   []*Node        // REL / OP, ordered
	Fields []Field        // STRUCT, lex-sorted by Key
	Items  []*Node        // LIST, ordered
	Text   string         // TEXT (not interned)
	Number float64        // NUMBER
	Bool   bool           // BOOL
}

// Children returns n's immediate child nodes in canonical traversal order.
// This is the single recursive-visit primitive shared by the serializer,
// fingerprint, and well-formedness checker (Design Note: "single visit
// function").
func (n *Node) Children() []*Node {
	switch n.Kind {
	case KindRel, KindOp:
		return n.Args
	case KindStruct:
		out := make([]*Node, len(n.Fields))
		for i, f := range n.Fields {
			out[i] = f.Value
		}
		return out
	case KindList:
		return n.Items
	default:
		return nil
	}
}

// Equal reports deep structural equality. Canonical nodes produced through
// the same Arena are additionally pointer-identical (§3.1: "structurally
// equal nodes must share a canonical representative").
func Equal(a, b *Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindEntity, KindVar:
		return a.Label == b.Label
	case KindRel, KindOp:
		if a.Label != b.Label || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case KindStruct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Key != b.Fields[i].Key || !Equal(a.Fields[i].Value, b.Fields[i].Value) {
				return false
			}
		}
		return true
	case KindList:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case KindText:
		return a.Text == b.Text
	case KindNumber:
		return a.Number == b.Number
	case KindBool:
		return a.Bool == b.Bool
	case KindNil:
		return true
	default:
		return false
	}
}

// --- constructors ---

// NewEntity interns label and returns an ENTITY node.
func NewEntity(table *atomtable.Table, label string) (*Node, error) {
	a, err := table.Intern(label)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindEntity, Label: a}, nil
}

// NewVar interns label (which must start with "?") and returns a VAR node.
func NewVar(table *atomtable.Table, label string) (*Node, error) {
	if len(label) == 0 || label[0] != '?' {
		return nil, errs.NewIllFormed("VAR label must start with '?'", label)
	}
	a, err := table.Intern(label)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindVar, Label: a}, nil
}

// NewRel interns label and builds a REL node, validating arity and argument
// sorts against RelSignatures (§3.1, §3.2).
func NewRel(table *atomtable.Table, label string, args ...*Node) (*Node, error) {
	return newLabeled(table, KindRel, label, RelSignatures, args)
}

// NewOp interns label and builds an OP node, validating arity and argument
// sorts against OpSignatures (§3.1, §3.2).
func NewOp(table *atomtable.Table, label string, args ...*Node) (*Node, error) {
	return newLabeled(table, KindOp, label, OpSignatures, args)
}

func newLabeled(table *atomtable.Table, kind Kind, label string, sigs map[string]Signature, args []*Node) (*Node, error) {
	a, err := table.Intern(label)
	if err != nil {
		return nil, err
	}
	if sig, ok := sigs[a.String()]; ok {
		if err := sig.checkArgs(a.String(), args); err != nil {
			return nil, err
		}
	}
	return &Node{Kind: kind, Label: a, Args: append([]*Node(nil), args...)}, nil
}

// NewStruct builds a STRUCT node, sorting fields by key and rejecting
// duplicates (§3.1 invariant).
func NewStruct(fields map[string]*Node) (*Node, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, Field{Key: k, Value: fields[k]})
	}
	return &Node{Kind: KindStruct, Fields: out}, nil
}

// NewStructOrdered builds a STRUCT from already-ordered fields, re-sorting
// and rejecting duplicate keys. Useful when callers build fields
// incrementally (e.g. the Φ-operator library stamping new fields onto an
// existing STRUCT).
func NewStructOrdered(fields []Field) (*Node, error) {
	out := append([]Field(nil), fields...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	for i := 1; i < len(out); i++ {
		if out[i].Key == out[i-1].Key {
			return nil, errs.NewIllFormed(fmt.Sprintf("duplicate STRUCT field %q", out[i].Key), "")
		}
	}
	return &Node{Kind: KindStruct, Fields: out}, nil
}

// NewList builds a LIST node.
func NewList(items ...*Node) *Node {
	return &Node{Kind: KindList, Items: append([]*Node(nil), items...)}
}

// NewText builds a TEXT node (raw string, never interned, §3.1).
func NewText(s string) *Node { return &Node{Kind: KindText, Text: s} }

// NewNumber builds a NUMBER node.
func NewNumber(v float64) *Node { return &Node{Kind: KindNumber, Number: v} }

// NewBool builds a BOOL node.
func NewBool(v bool) *Node { return &Node{Kind: KindBool, Bool: v} }

// Nil is the singleton NIL node.
var Nil = &Node{Kind: KindNil}

// IsNil reports whether n is the NIL node.
func IsNil(n *Node) bool { return n == nil || n.Kind == KindNil }

// Field looks up a STRUCT field by key, returning (value, true) if present.
func (n *Node) Field(key string) (*Node, bool) {
	if n.Kind != KindStruct {
		return nil, false
	}
	// Fields are sorted; binary search would work but structs here are small.
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// WithField returns a copy of n (which must be STRUCT) with key set to
// value, preserving sort order and uniqueness.
func (n *Node) WithField(key string, value *Node) (*Node, error) {
	if n.Kind != KindStruct {
		return nil, errs.NewIllFormed("WithField on non-STRUCT node", n.Kind.String())
	}
	fields := make(map[string]*Node, len(n.Fields)+1)
	for _, f := range n.Fields {
		fields[f.Key] = f.Value
	}
	fields[key] = value
	return NewStruct(fields)
}
