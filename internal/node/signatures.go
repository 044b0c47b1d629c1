package node

import (
	"fmt"

	"github.com/metanucleus/metanucleus/internal/errs"
)

// Signature describes a REL or OP's declared arity and argument sorts (§3.2).
type Signature struct {
	ArgSorts []Sort
	Returns  Sort
}

func (s Signature) checkArgs(name string, args []*Node) error {
	if len(args) != len(s.ArgSorts) {
		return fmt.Errorf("%s: %w: expected %d args, got %d", name, errs.ErrArityMismatch, len(s.ArgSorts), len(args))
	}
	for i, a := range args {
		if !Assignable(a.NativeSort(), s.ArgSorts[i]) {
			return errs.NewIllFormed(fmt.Sprintf("%s: arg %d has sort %s, want %s", name, i, a.NativeSort(), s.ArgSorts[i]), name)
		}
	}
	return nil
}

// RelSignatures is the static REL_SIGNATURES table (§3.2), never mutated
// after init. Relations beyond this core set (e.g. ontology rules loaded at
// runtime) are declared dynamically in internal/ontology and validated
// there against the same arity-checking discipline.
var RelSignatures = map[string]Signature{
	"IS_A":     {ArgSorts: []Sort{SortThing, SortType}, Returns: SortProp},
	"PART_OF":  {ArgSorts: []Sort{SortThing, SortThing}, Returns: SortProp},
	"CAUSE":    {ArgSorts: []Sort{SortThing, SortThing}, Returns: SortProp},
	"EQUAL":    {ArgSorts: []Sort{SortThing, SortThing}, Returns: SortProp},
	"code/DEFN": {ArgSorts: []Sort{SortThing, SortState}, Returns: SortProp},
}

// OpSignatures is the static OP_SIGNATURES table (§3.2): the nine
// Φ-operator labels (encoded as OP nodes within plans/ops_queue) plus the
// generic symbolic combinators the spec calls out.
var OpSignatures = map[string]Signature{
	"NORMALIZE":   {ArgSorts: []Sort{}, Returns: SortState},
	"INTENT":      {ArgSorts: []Sort{SortState}, Returns: SortState},
	"STRUCTURE":   {ArgSorts: []Sort{SortState}, Returns: SortState},
	"SEMANTICS":   {ArgSorts: []Sort{SortState}, Returns: SortState},
	"CALCULUS":    {ArgSorts: []Sort{SortState}, Returns: SortState},
	"INFER":       {ArgSorts: []Sort{}, Returns: SortState},
	"SUMMARIZE":   {ArgSorts: []Sort{}, Returns: SortState},
	"STATE_QUERY": {ArgSorts: []Sort{}, Returns: SortState},
	"ANSWER":      {ArgSorts: []Sort{SortState}, Returns: SortText},
	"MAP":         {ArgSorts: []Sort{SortList, SortOperator}, Returns: SortList},
	"REDUCE":      {ArgSorts: []Sort{SortList, SortOperator}, Returns: SortAny},
	"REWRITE":     {ArgSorts: []Sort{SortProp, SortProp}, Returns: SortProp},
	"EXPAND":      {ArgSorts: []Sort{SortProp}, Returns: SortList},
	"EXPLAIN":     {ArgSorts: []Sort{SortProp}, Returns: SortText},
	"code/EVAL_PURE": {ArgSorts: []Sort{SortText}, Returns: SortAny},
}
