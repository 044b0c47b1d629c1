package node

import (
	"fmt"

	"github.com/metanucleus/metanucleus/internal/errs"
)

// Check recursively validates n against the well-formedness invariants of
// §4.5: REL/OP nodes must satisfy their declared signature (when one
// exists), STRUCT fields must be sorted with no duplicate keys, and every
// child must itself be well-formed. It returns the first violation found,
// walking in the same order Children() would visit (Design Note: single
// visit function).
func Check(n *Node) error {
	return checkAt(n, "$")
}

func checkAt(n *Node, path string) error {
	if n == nil {
		return errs.NewIllFormed("nil node", path)
	}

	switch n.Kind {
	case KindRel:
		if sig, ok := RelSignatures[n.Label.String()]; ok {
			if err := sig.checkArgs(n.Label.String(), n.Args); err != nil {
				return wrapPath(err, path)
			}
		}
	case KindOp:
		if sig, ok := OpSignatures[n.Label.String()]; ok {
			if err := sig.checkArgs(n.Label.String(), n.Args); err != nil {
				return wrapPath(err, path)
			}
		}
	case KindStruct:
		for i := 1; i < len(n.Fields); i++ {
			if n.Fields[i].Key <= n.Fields[i-1].Key {
				if n.Fields[i].Key == n.Fields[i-1].Key {
					return errs.NewIllFormed(fmt.Sprintf("duplicate STRUCT field %q", n.Fields[i].Key), path)
				}
				return errs.NewIllFormed("STRUCT fields not lexicographically sorted", path)
			}
		}
	case KindVar:
		if n.Label.String() == "" || n.Label.String()[0] != '?' {
			return errs.NewIllFormed("VAR label must start with '?'", path)
		}
	}

	for i, c := range n.Children() {
		if err := checkAt(c, fmt.Sprintf("%s/%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// wrapPath attaches path to an error produced by Signature.checkArgs when it
// wasn't already an *errs.IllFormed (e.g. the ArityMismatch sentinel wrap).
func wrapPath(err error, path string) error {
	if _, ok := err.(*errs.IllFormed); ok {
		return err
	}
	return errs.NewIllFormed(err.Error(), path)
}
