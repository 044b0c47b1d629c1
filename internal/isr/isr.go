// Package isr implements the mutable per-run state threaded through a
// single turn (§3.3–3.4): the ISR itself, the Session wrapper, and the
// append-only Trace log. Grounded on the teacher's internal/core/trace.go
// (TraceQuery/DerivationTrace: an append-only step log keyed by a turn ID),
// adapted from a multi-turn conversation log into the strictly single-turn,
// never-shared-across-turns lifecycle this spec requires.
package isr

import (
	"github.com/google/uuid"

	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/normalize"
)

// ContextCap bounds ISR.context after NORMALIZE (§3.3, §8 P8).
const ContextCap = 16

// ISR is the mutable per-run state (§3.3). It is created empty at the start
// of a turn, seeded by the router, mutated exclusively by operators popped
// from OpsQueue by the scheduler, and consumed by the summary assembler
// after halt. It is never shared across turns.
type ISR struct {
	Arena *node.Arena

	Ontology  []*node.Node // world facts
	Relations []normalize.Relation
	Context   []*node.Node // bounded ring, truncated by NORMALIZE
	Goals     []*node.Node
	OpsQueue  []*node.Node // OP nodes remaining to execute
	Answer    *node.Node   // NIL until produced
	Quality   float64      // accumulates monotonically in [0,1]

	// ContradictionFound is set by INFER when contradiction checking is
	// enabled and a contradictory pair of relations was derived (§4.8 halt
	// reason CONTRADICTION).
	ContradictionFound bool
}

// New creates an empty ISR bound to arena.
func New(arena *node.Arena) *ISR {
	return &ISR{Arena: arena, Answer: node.Nil}
}

// PushOp enqueues op at the back of OpsQueue. This is the only append path;
// it exists (alongside PrependOp) so every enqueue goes through a single
// auditable helper (Design Note: "record the insertion point for
// auditing").
func (i *ISR) PushOp(op *node.Node) {
	i.OpsQueue = append(i.OpsQueue, op)
}

// PrependOp enqueues op at the front of OpsQueue. INTENT uses this so newly
// derived operators run before anything already queued (§5 ordering
// guarantee: "INTENT prepends new operators, it never appends").
func (i *ISR) PrependOp(op *node.Node) {
	i.OpsQueue = append([]*node.Node{op}, i.OpsQueue...)
}

// PopOp removes and returns the front of OpsQueue.
func (i *ISR) PopOp() (*node.Node, bool) {
	if len(i.OpsQueue) == 0 {
		return nil, false
	}
	op := i.OpsQueue[0]
	i.OpsQueue = i.OpsQueue[1:]
	return op, true
}

// PushContext appends n to Context without truncating it (§3.3:
// "conceptually a ring; excess truncated by NORMALIZE").
// NORMALIZE itself calls TruncateContext; operators that only append may
// temporarily exceed the cap until the next NORMALIZE runs.
func (i *ISR) PushContext(n *node.Node) {
	i.Context = append(i.Context, n)
}

// TruncateContext drops Context entries from the front until len(Context)
// <= ContextCap (§4.7 NORMALIZE, §8 P8).
func (i *ISR) TruncateContext() {
	if len(i.Context) > ContextCap {
		i.Context = i.Context[len(i.Context)-ContextCap:]
	}
}

// BumpQuality raises Quality by delta, clamped to [0,1], and never lowers
// it (§8 P9: quality monotonicity).
func (i *ISR) BumpQuality(delta float64) {
	q := i.Quality + delta
	if q > 1 {
		q = 1
	}
	if q > i.Quality {
		i.Quality = q
	}
}

// AddOntologyFact appends a world fact and refreshes the derived Relations
// view (§3.3: relations is "a derived view of the graph").
func (i *ISR) AddOntologyFact(n *node.Node) {
	i.Ontology = append(i.Ontology, n)
	i.refreshRelations()
}

// AddRelations merges newly derived relations (e.g. from INFER) into
// Relations, keeping the canonical sorted/deduped form.
func (i *ISR) AddRelations(rs []*node.Node) {
	i.Ontology = append(i.Ontology, rs...)
	i.refreshRelations()
}

func (i *ISR) refreshRelations() {
	i.Relations = normalize.DedupRelations(i.Arena, i.Ontology)
}

// Clone returns an independent copy of i sharing the same Arena (canonical
// nodes are immutable, so sharing pointers is safe) but with every slice
// field copied so mutating the clone never touches i. Used by the
// Meta-Summary assembler to re-run the VM against "a copy of the final ISR"
// (§4.10 consistency check) without disturbing the ISR the scheduler left
// behind.
func (i *ISR) Clone() *ISR {
	return &ISR{
		Arena:              i.Arena,
		Ontology:           append([]*node.Node(nil), i.Ontology...),
		Relations:          append([]normalize.Relation(nil), i.Relations...),
		Context:            append([]*node.Node(nil), i.Context...),
		Goals:              append([]*node.Node(nil), i.Goals...),
		OpsQueue:           append([]*node.Node(nil), i.OpsQueue...),
		Answer:             i.Answer,
		Quality:            i.Quality,
		ContradictionFound: i.ContradictionFound,
	}
}

// Session wraps one ISR plus the turn's configuration and trace buffer
// (§3.3). It is constructed once per RunText call and discarded afterward.
type Session struct {
	ID uuid.UUID

	ISR   *ISR
	Trace *Trace

	StepBudget            int
	QualityThreshold      float64
	ContradictionsEnabled bool
	LanguageHint          string
}

// NewSession creates a Session with a fresh ISR and empty trace.
func NewSession(arena *node.Arena, stepBudget int, qualityThreshold float64, contradictionsEnabled bool) *Session {
	return &Session{
		ID:                    uuid.New(),
		ISR:                   New(arena),
		Trace:                 NewTrace(),
		StepBudget:            stepBudget,
		QualityThreshold:      qualityThreshold,
		ContradictionsEnabled: contradictionsEnabled,
	}
}
