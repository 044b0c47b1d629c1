// Package ontology backs ISR.ontology/relations and the INFER Φ-operator
// with a real Datalog engine (§4.6 LOGIC route, §4.7 INFER) instead of a
// hand-rolled rule interpreter. Adapted (not copied) from the teacher's
// internal/mangle/engine.go (Engine, LoadSchemaString, AddFacts, Query,
// RecomputeRules) and internal/mangle/schema_validator.go (SchemaValidator):
// rewritten for a strictly single-turn lifecycle — no persistence, no
// fact-limit warnings, no reverse file index, since the ontology is "a
// sequence of relations" consumed fresh every turn, never a durable store.
package ontology

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/node"
)

// baseSchema declares the core relations of §3.2 REL_SIGNATURES as Mangle
// predicates (2-ary, Name-typed arguments) plus a small built-in rule set:
// EQUAL is an equivalence relation, PART_OF and CAUSE are transitive, and a
// NEQ/EQUAL clash on the same pair is surfaced as CONTRADICTS. Mangle
// predicate symbols cannot contain '/', so the code-route "code/DEFN"
// relation is declared under the mangled name "code_DEFN" (see toPredicateSym).
const baseSchema = `
Decl IS_A(X, T).
Decl PART_OF(X, Y).
Decl CAUSE(X, Y).
Decl EQUAL(X, Y).
Decl NEQ(X, Y).
Decl code_DEFN(X, S).
Decl CONTRADICTS(X, Y).

EQUAL(X, Y) :- EQUAL(Y, X).
EQUAL(X, Z) :- EQUAL(X, Y), EQUAL(Y, Z).
PART_OF(X, Z) :- PART_OF(X, Y), PART_OF(Y, Z).
CAUSE(X, Z) :- CAUSE(X, Y), CAUSE(Y, Z).
CONTRADICTS(X, Y) :- EQUAL(X, Y), NEQ(X, Y).
`

// Engine wraps a per-turn Mangle evaluation context. Unlike the teacher's
// Engine it is not safe to reuse across turns: call New for every turn and
// discard it at turn end (§3.3 lifecycle, §5 "no persistence layer").
type Engine struct {
	mu          sync.Mutex
	store       factstore.FactStoreWithRemove
	programInfo *analysis.ProgramInfo
	predicates  map[string]ast.PredicateSym
	factLimit   int
	factCount   int
}

// New builds an Engine with the built-in base schema loaded. factLimit <= 0
// means unbounded.
func New(factLimit int) (*Engine, error) {
	e := &Engine{
		store:     factstore.NewSimpleInMemoryStore(),
		factLimit: factLimit,
	}
	if err := e.loadSchema(baseSchema); err != nil {
		return nil, fmt.Errorf("ontology: load base schema: %w", err)
	}
	return e, nil
}

func (e *Engine) loadSchema(schema string) error {
	unit, err := parse.Unit(strings.NewReader(schema))
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("analyze schema: %w", err)
	}
	e.programInfo = programInfo
	e.predicates = make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		e.predicates[sym.Symbol] = sym
	}
	return nil
}

// toPredicateSym maps a REL node's label to the Mangle-safe predicate
// symbol (only "/" is mangled; everything else passes through unchanged).
func toPredicateSym(label string) string {
	return strings.ReplaceAll(label, "/", "_")
}

func fromPredicateSym(sym string) string {
	if rest, ok := strings.CutPrefix(sym, "code_"); ok {
		return "code/" + rest
	}
	return sym
}

// AddRelation asserts a single REL node's arguments as a ground fact. Only
// REL nodes whose arguments are all ENTITY or VAR nodes have a stable
// (label, arg-labels) Mangle encoding; others are silently skipped, mirroring
// normalize.RelationOf's own scope restriction.
func (e *Engine) AddRelation(n *node.Node) error {
	if n.Kind != node.KindRel {
		return nil
	}
	predSym := toPredicateSym(n.Label.String())

	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.predicates[predSym]
	if !ok {
		// Relation outside the built-in schema: INFER has nothing to derive
		// from it, but it is still valid ISR ontology content, so this is
		// not an error — it simply never reaches the Mangle store.
		return nil
	}
	if len(n.Args) != sym.Arity {
		return fmt.Errorf("ontology: %s expects %d args, got %d", n.Label, sym.Arity, len(n.Args))
	}
	if e.factLimit > 0 && e.factCount >= e.factLimit {
		return fmt.Errorf("ontology: fact limit exceeded: %d", e.factLimit)
	}

	args := make([]ast.BaseTerm, len(n.Args))
	for i, a := range n.Args {
		term, err := toNameTerm(a)
		if err != nil {
			return err
		}
		args[i] = term
	}
	if e.store.Add(ast.Atom{Predicate: sym, Args: args}) {
		e.factCount++
	}
	return nil
}

func toNameTerm(n *node.Node) (ast.BaseTerm, error) {
	if n.Kind != node.KindEntity {
		return nil, fmt.Errorf("ontology: relation argument must be a ground ENTITY, got %s", n.Kind)
	}
	return ast.Name("/" + n.Label.String())
}

// Infer runs the chase to a fixpoint over every asserted fact plus the
// built-in rule set (§4.7 INFER). It returns every relation currently
// derivable (asserted ∪ derived) as canonical REL nodes, and reports
// whether a CONTRADICTS fact was derived.
func (e *Engine) Infer(table *atomtable.Table) (relations []*node.Node, contradiction bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := mengine.EvalProgramWithStats(e.programInfo, e.store); err != nil {
		return nil, false, fmt.Errorf("ontology: chase failed: %w", err)
	}

	syms := make([]string, 0, len(e.predicates))
	for name := range e.predicates {
		syms = append(syms, name)
	}
	sort.Strings(syms)

	for _, name := range syms {
		sym := e.predicates[name]
		label := fromPredicateSym(name)
		walkErr := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
			if sym.Symbol == "CONTRADICTS" {
				contradiction = true
			}
			n, convErr := atomToRel(table, label, atom)
			if convErr != nil {
				return convErr
			}
			relations = append(relations, n)
			return nil
		})
		if walkErr != nil {
			return nil, false, fmt.Errorf("ontology: read %s: %w", name, walkErr)
		}
	}
	return relations, contradiction, nil
}

func atomToRel(table *atomtable.Table, label string, atom ast.Atom) (*node.Node, error) {
	args := make([]*node.Node, len(atom.Args))
	for i, term := range atom.Args {
		s, err := termToLabel(term)
		if err != nil {
			return nil, err
		}
		n, err := node.NewEntity(table, s)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}
	return node.NewRel(table, label, args...)
}

func termToLabel(term ast.BaseTerm) (string, error) {
	c, ok := term.(ast.Constant)
	if !ok {
		return "", fmt.Errorf("ontology: unbound term in derived fact")
	}
	return strings.TrimPrefix(c.Symbol, "/"), nil
}

// FactCount returns the number of ground facts currently asserted.
func (e *Engine) FactCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.factCount
}
