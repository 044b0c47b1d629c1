// Package phi implements the Φ-operator library (§4.7): the nine pure
// functions the Scheduler dispatches against the ISR (NORMALIZE, INTENT,
// STRUCTURE, SEMANTICS, CALCULUS, INFER, SUMMARIZE, STATE_QUERY, ANSWER).
//
// Grounded on the teacher's internal/core/kernel_eval.go-style "pure
// function over a mutable kernel state" operator shape, generalized per the
// Design Note "Dynamic dispatch over Φ-operators" into a closed tagged
// dispatch (a plain Go switch over OpLabel, each arm a plain function) —
// no runtime operator registration.
package phi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/calcmath"
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/normalize"
	"github.com/metanucleus/metanucleus/internal/ontology"
)

// Deps bundles the shared infrastructure every Φ-operator needs: the
// process's atom table/arena (so operators can build new canonical nodes)
// and the per-turn ontology engine backing INFER.
type Deps struct {
	Table      *atomtable.Table
	Arena      *node.Arena
	Ontology   *ontology.Engine
	ContextCap int // 0 means isr.ContextCap (§3.3, §8 P8)
}

func (d Deps) cap() int {
	if d.ContextCap > 0 {
		return d.ContextCap
	}
	return isr.ContextCap
}

// Result reports the measurable deltas of one operator application, used by
// the Scheduler to build TraceSteps (§3.4, §4.8).
type Result struct {
	DeltaQuality   float64
	DeltaRelations int
	Contradiction  bool
}

// Apply dispatches op (an OP node popped from ISR.OpsQueue) to its
// Φ-operator implementation. The op's label decides the arm; unknown
// labels are a programming error (the op set is closed, §9 Design Note) and
// return an error rather than panicking.
func Apply(state *isr.ISR, op *node.Node, deps Deps) (Result, error) {
	label := op.Label.String()
	switch label {
	case "NORMALIZE":
		return applyNormalize(state, deps), nil
	case "INTENT":
		return applyIntent(state, op, deps)
	case "STRUCTURE":
		return applyStructure(state, op, deps)
	case "SEMANTICS":
		return applySemantics(state, op, deps)
	case "CALCULUS":
		return applyCalculus(state, op, deps)
	case "INFER":
		return applyInfer(state, deps)
	case "ANSWER":
		return applyAnswer(state, op, deps)
	case "SUMMARIZE":
		return applySummarize(state, deps)
	case "STATE_QUERY":
		return applyStateQuery(state, deps)
	default:
		return Result{}, fmt.Errorf("phi: unknown operator %q", label)
	}
}

// applyNormalize truncates Context to the cap and bumps quality by 0.05
// (§4.7 NORMALIZE, §8 P8).
func applyNormalize(state *isr.ISR, deps Deps) Result {
	before := len(state.Relations)
	cap := deps.cap()
	if len(state.Context) > cap {
		state.Context = state.Context[len(state.Context)-cap:]
	}
	state.BumpQuality(0.05)
	return Result{DeltaQuality: 0.05, DeltaRelations: len(state.Relations) - before}
}

// msgArg extracts the single STRUCT argument most Φ-operators take.
func msgArg(op *node.Node) (*node.Node, error) {
	if len(op.Args) != 1 || op.Args[0].Kind != node.KindStruct {
		return nil, fmt.Errorf("phi: %s expects a single STRUCT argument", op.Label)
	}
	return op.Args[0], nil
}

// textOf reads the "text" field of a message STRUCT, defaulting to "".
func textOf(msg *node.Node) string {
	if v, ok := msg.Field("text"); ok && v.Kind == node.KindText {
		return v.Text
	}
	return ""
}

// enqueueOps builds one OP node per label (each carrying msg as its sole
// argument) and prepends them, in order, to the front of state.OpsQueue —
// the shared "INTENT prepends new operators" mechanism of §5.
func enqueueOps(state *isr.ISR, deps Deps, msg *node.Node, labels ...string) error {
	ops := make([]*node.Node, len(labels))
	for i, label := range labels {
		op, err := node.NewOp(deps.Table, label, msg)
		if err != nil {
			return err
		}
		ops[i] = op
	}
	for i := len(ops) - 1; i >= 0; i-- {
		state.PrependOp(ops[i])
	}
	return nil
}

// applyIntent classifies the utterance (greeting|question|statement),
// stamps "intent" onto the message STRUCT, and prepends STRUCTURE then
// SEMANTICS to the front of OpsQueue (§4.7 INTENT, §5: "INTENT prepends new
// operators, it never appends").
func applyIntent(state *isr.ISR, op *node.Node, deps Deps) (Result, error) {
	msg, err := msgArg(op)
	if err != nil {
		return Result{}, err
	}
	text := textOf(msg)
	intent := classifyIntent(text)
	msg, err = msg.WithField("intent", node.NewText(intent))
	if err != nil {
		return Result{}, err
	}
	msg = deps.Arena.Canonical(msg)
	state.PushContext(msg)

	if err := enqueueOps(state, deps, msg, "STRUCTURE", "SEMANTICS"); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func classifyIntent(text string) string {
	t := strings.TrimSpace(strings.ToLower(text))
	switch {
	case t == "":
		return "statement"
	case strings.HasSuffix(t, "?") || strings.Contains(t, "¿"):
		return "question"
	case isGreetingText(t):
		return "greeting"
	default:
		return "statement"
	}
}

var greetingWords = []string{
	"oi", "olá", "ola", "hello", "hi", "hey", "hola", "bonjour", "ciao", "hallo",
}

func isGreetingText(t string) bool {
	for _, w := range greetingWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

// applyStructure ensures "tokens" and "length" fields exist, tokenizing the
// message text if they are missing (§4.7 STRUCTURE).
func applyStructure(state *isr.ISR, op *node.Node, deps Deps) (Result, error) {
	msg, err := msgArg(op)
	if err != nil {
		return Result{}, err
	}
	if _, ok := msg.Field("tokens"); !ok {
		tokens := strings.Fields(textOf(msg))
		items := make([]*node.Node, len(tokens))
		for i, t := range tokens {
			items[i] = node.NewText(t)
		}
		msg, err = msg.WithField("tokens", node.NewList(items...))
		if err != nil {
			return Result{}, err
		}
		msg, err = msg.WithField("length", node.NewNumber(float64(len(tokens))))
		if err != nil {
			return Result{}, err
		}
	}
	msg = deps.Arena.Canonical(msg)
	state.PushContext(msg)
	return Result{}, nil
}

// applySemantics computes semantic_kind, has_math, and token_count, then
// enqueues CALCULUS next at the front of OpsQueue (§4.7 SEMANTICS).
func applySemantics(state *isr.ISR, op *node.Node, deps Deps) (Result, error) {
	msg, err := msgArg(op)
	if err != nil {
		return Result{}, err
	}
	text := textOf(msg)
	trimmed := strings.TrimSpace(text)
	_, hasMath := calcmath.Detect(text)
	kind := semanticKind(trimmed, hasMath)

	tokenCount := 0
	if v, ok := msg.Field("tokens"); ok && v.Kind == node.KindList {
		tokenCount = len(v.Items)
	}

	msg, err = msg.WithField("semantic_kind", node.NewText(kind))
	if err != nil {
		return Result{}, err
	}
	msg, err = msg.WithField("has_math", node.NewBool(hasMath))
	if err != nil {
		return Result{}, err
	}
	msg, err = msg.WithField("token_count", node.NewNumber(float64(tokenCount)))
	if err != nil {
		return Result{}, err
	}
	msg = deps.Arena.Canonical(msg)
	state.PushContext(msg)

	if err := enqueueOps(state, deps, msg, "CALCULUS"); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func semanticKind(trimmed string, hasMath bool) string {
	isQuestion := strings.HasSuffix(trimmed, "?") || strings.Contains(trimmed, "¿")
	switch {
	case hasMath && isQuestion:
		return "math_question"
	case isQuestion:
		return "question"
	case isGreetingText(strings.ToLower(trimmed)):
		return "greeting"
	default:
		return "statement"
	}
}

// applyCalculus evaluates an embedded arithmetic expression (if any) and
// stamps "calculus" / "equivalence" fields (§4.7 CALCULUS).
func applyCalculus(state *isr.ISR, op *node.Node, deps Deps) (Result, error) {
	msg, err := msgArg(op)
	if err != nil {
		return Result{}, err
	}
	text := textOf(msg)
	if expr, ok := calcmath.Detect(text); ok {
		result, _, err := calcmath.Eval(expr)
		if err == nil {
			calc, err := node.NewStruct(map[string]*node.Node{
				"expression": node.NewText(expr),
				"result":     node.NewNumber(result),
			})
			if err != nil {
				return Result{}, err
			}
			equivalence := fmt.Sprintf("%s = %s", expr, calcmath.FormatResult(result))
			msg, err = msg.WithField("calculus", calc)
			if err != nil {
				return Result{}, err
			}
			msg, err = msg.WithField("equivalence", node.NewText(equivalence))
			if err != nil {
				return Result{}, err
			}
		}
	}
	msg = deps.Arena.Canonical(msg)
	state.PushContext(msg)

	if err := enqueueOps(state, deps, msg, "ANSWER"); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

// applyInfer runs the ontology chase to fixpoint and merges derived
// relations back into the ISR (§4.7 INFER).
func applyInfer(state *isr.ISR, deps Deps) (Result, error) {
	before := len(state.Relations)
	if deps.Ontology == nil {
		return Result{}, nil
	}
	relations, contradiction, err := deps.Ontology.Infer(deps.Table)
	if err != nil {
		return Result{}, fmt.Errorf("phi: INFER: %w", err)
	}
	state.AddRelations(relations)
	state.ContradictionFound = state.ContradictionFound || contradiction
	return Result{DeltaRelations: len(state.Relations) - before, Contradiction: contradiction}, nil
}

// applyAnswer builds the final answer text from available fields, in
// priority order: calculus.result, greeting template, question preview,
// generic receipt (§4.7 ANSWER).
func applyAnswer(state *isr.ISR, op *node.Node, deps Deps) (Result, error) {
	msg, err := msgArg(op)
	if err != nil {
		return Result{}, err
	}
	answerText := answerFromMessage(msg)
	answerNode := deps.Arena.Canonical(node.NewText(answerText))
	state.Answer = answerNode
	state.BumpQuality(0.2)
	return Result{DeltaQuality: 0.2}, nil
}

func answerFromMessage(msg *node.Node) string {
	if calc, ok := msg.Field("calculus"); ok && calc.Kind == node.KindStruct {
		if result, ok := calc.Field("result"); ok && result.Kind == node.KindNumber {
			expr := ""
			if e, ok := calc.Field("expression"); ok {
				expr = e.Text
			}
			return fmt.Sprintf("%s = %s", expr, calcmath.FormatResult(result.Number))
		}
	}
	intent := ""
	if v, ok := msg.Field("intent"); ok {
		intent = v.Text
	}
	if intent == "greeting" {
		return "Olá! Como posso ajudar?"
	}
	if kind, ok := msg.Field("semantic_kind"); ok && kind.Text == "question" {
		return fmt.Sprintf("Entendi sua pergunta: %q", preview(textOf(msg)))
	}
	text := strings.TrimSpace(textOf(msg))
	if text == "" {
		return "Recebido."
	}
	return fmt.Sprintf("Recebido: %q", preview(text))
}

func preview(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// applySummarize constructs the final condensed STRUCT used by the
// Meta-Summary assembler. Idempotent: re-running leaves the same fields
// (§4.7 SUMMARIZE).
func applySummarize(state *isr.ISR, deps Deps) (Result, error) {
	fields := map[string]*node.Node{
		"relation_count": node.NewNumber(float64(len(state.Relations))),
		"context_size":   node.NewNumber(float64(len(state.Context))),
		"quality":        node.NewNumber(state.Quality),
	}
	summary, err := node.NewStruct(fields)
	if err != nil {
		return Result{}, err
	}
	summary = deps.Arena.Canonical(summary)
	state.PushContext(summary)
	return Result{}, nil
}

// applyStateQuery is the TEXT route alias: NORMALIZE → INFER → SUMMARIZE
// run inline (§4.7 STATE_QUERY).
func applyStateQuery(state *isr.ISR, deps Deps) (Result, error) {
	total := applyNormalize(state, deps)
	inferResult, err := applyInfer(state, deps)
	if err != nil {
		return Result{}, err
	}
	sumResult, err := applySummarize(state, deps)
	if err != nil {
		return Result{}, err
	}
	return Result{
		DeltaQuality:   total.DeltaQuality + sumResult.DeltaQuality,
		DeltaRelations: inferResult.DeltaRelations,
		Contradiction:  inferResult.Contradiction,
	}, nil
}

// RelationKeys renders relations in deterministic (label, args) order, used
// by SUMMARIZE/Meta-Summary for stable text rendering.
func RelationKeys(rs []normalize.Relation) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = fmt.Sprintf("%s(%s)", r.Label, strings.Join(r.Args, ","))
	}
	sort.Strings(out)
	return out
}
