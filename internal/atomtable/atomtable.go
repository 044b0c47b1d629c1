// Package atomtable implements the process-wide atom interner (§4.1): one
// canonical string per label, grown monotonically, never evicted. Grounded
// on the teacher's internal/mangle/engine.go predicate-symbol table
// (predicateIndex map[string]ast.PredicateSym), generalized from Mangle
// predicate symbols to arbitrary node labels.
package atomtable

import (
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/metanucleus/metanucleus/internal/errs"
)

// Atom is a canonical interned label. Two Atoms are value-equal iff they
// were interned from value-equal trimmed strings.
type Atom struct {
	s string
}

// String returns the canonical text of the atom.
func (a Atom) String() string { return a.s }

// Table is an insert-only interner. The zero value is usable.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Atom
	group   singleflight.Group
}

// New creates an empty Table.
func New() *Table {
	return &Table{entries: make(map[string]Atom)}
}

// Intern trims s and returns its canonical Atom, failing with
// errs.ErrInvalidAtom when the trimmed string is empty. Concurrent Intern
// calls for the same label are coalesced through singleflight so only one
// goroutine pays the write-lock cost; the rest observe the cached result.
func (t *Table) Intern(s string) (Atom, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Atom{}, errs.ErrInvalidAtom
	}

	t.mu.RLock()
	if a, ok := t.entries[trimmed]; ok {
		t.mu.RUnlock()
		return a, nil
	}
	t.mu.RUnlock()

	v, err, _ := t.group.Do(trimmed, func() (interface{}, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.entries == nil {
			t.entries = make(map[string]Atom)
		}
		if a, ok := t.entries[trimmed]; ok {
			return a, nil
		}
		a := Atom{s: trimmed}
		t.entries[trimmed] = a
		return a, nil
	})
	if err != nil {
		return Atom{}, err
	}
	return v.(Atom), nil
}

// MustIntern interns s, panicking on failure. Reserved for compile-time
// constant labels (operator/relation names) known never to be empty.
func (t *Table) MustIntern(s string) Atom {
	a, err := t.Intern(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Len returns the number of distinct interned atoms.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Default is the process-wide singleton table, a convenience layer over the
// Runtime handle per the Design Notes ("the default process-wide singleton
// is a convenience layer, not a requirement").
var Default = New()
