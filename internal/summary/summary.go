// Package summary implements the Meta-Summary assembler (§4.10): the
// post-hoc STRUCT that records route, language profile, Φ-plan, halt
// reason, and the VM/Φ consistency cross-check for one turn, keyed by a
// single Blake2b-128 meta_digest so two runs of the same input are
// byte-for-byte comparable (§8 P4).
//
// Grounded on the teacher's internal/mangle/proof_tree.go /
// internal/core/trace.go TraceQuery re-derivation-and-compare pattern
// (does re-querying the store reproduce the same facts?), adapted from
// "does this query re-derive the same facts" to "does the VM re-derive the
// same answer fingerprint".
package summary

import (
	"fmt"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/errs"
	"github.com/metanucleus/metanucleus/internal/fingerprint"
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/phi"
	"github.com/metanucleus/metanucleus/internal/router"
	"github.com/metanucleus/metanucleus/internal/scheduler"
	"github.com/metanucleus/metanucleus/internal/serialize"
	"github.com/metanucleus/metanucleus/internal/vm"
)

// Input bundles everything the assembler needs from a finished turn.
type Input struct {
	Table      *atomtable.Table
	Arena      *node.Arena
	InputText  string // trimmed original input
	Session    *isr.Session
	Route      *router.Result
	HaltReason scheduler.HaltReason
	RunErr     error // non-nil if the scheduler itself failed (§7)
	Deps       phi.Deps
}

// CalcExec is the meta_calc_exec substructure (§4.10): the result of
// re-running the plan's VM program against a copy of the final ISR and
// comparing the resulting answer fingerprint to ISR.Answer's.
type CalcExec struct {
	PlanRoute         string
	PlanDescription   string
	Consistent        bool
	AnswerFingerprint string
	SnapshotDigest    string
	Error             string

	// Snapshot is the full ΣVM snapshot bundle built during the
	// cross-check run, exposed so callers (the CLI's --snapshot-out) can
	// persist it without re-running the VM (§6.3). Nil if the cross-check
	// run itself failed before a snapshot could be built.
	Snapshot *vm.Snapshot
}

// Assemble builds the meta_summary STRUCT node for one finished turn and
// returns it alongside the CalcExec detail RunOutcome.calc_result surfaces
// directly (§6.1: "RunOutcome.calc_result.consistent must match
// meta_summary.calc_exec_consistent").
func Assemble(in Input) (*node.Node, CalcExec, error) {
	calcExec := runCalcExec(in)

	fields := map[string]*node.Node{
		"route":           node.NewText(string(in.Route.Route)),
		"lang":            node.NewText(string(in.Route.LanguageProfile.Code)),
		"lang_confidence": node.NewNumber(in.Route.LanguageProfile.Confidence),
		"input":           node.NewText(in.InputText),
		"answer":          node.NewText(textOf(in.Session.ISR.Answer)),

		"phi_plan_chain":       node.NewText(chainOf(in.Route.Plan.Ops)),
		"phi_plan_ops":         opsListOf(in.Route.Plan.Ops),
		"phi_plan_description": node.NewText(in.Route.Plan.Description),
		"phi_plan_digest":      node.NewText(in.Route.Plan.Digest.String()),
		"phi_plan_program_len": node.NewNumber(float64(in.Route.Plan.Program.Len())),
		"phi_plan_const_len":   node.NewNumber(float64(in.Route.Plan.Program.ConstLen())),

		"language_category": node.NewText(languageCategoryOf(in.Route.Route)),

		"halt_reason": node.NewText(string(in.HaltReason)),
		"quality":     node.NewNumber(in.Session.ISR.Quality),

		"meta_calc_exec": calcExecNode(calcExec),
	}

	if in.RunErr != nil {
		fields["error"] = node.NewText(in.RunErr.Error())
	}

	switch in.Route.Route {
	case router.RouteMath:
		addMathFields(fields, in.Route.MathAST)
	case router.RouteCode:
		addCodeFields(fields, in.Route.CodeAST, in.Route.CodeSummary)
	case router.RouteText:
		if calc := textMetaCalculation(in.Route); calc != nil {
			fields["meta_calculation"] = calc
		}
	}

	body, err := node.NewStruct(fields)
	if err != nil {
		return nil, calcExec, fmt.Errorf("summary: assemble fields: %w", err)
	}
	bodyDigest := fingerprint.MustOf(in.Arena.Canonical(body))
	fields["meta_digest"] = node.NewText(bodyDigest.String())

	final, err := node.NewStruct(fields)
	if err != nil {
		return nil, calcExec, fmt.Errorf("summary: assemble final: %w", err)
	}
	return in.Arena.Canonical(final), calcExec, nil
}

func textOf(n *node.Node) string {
	if n == nil || n.Kind != node.KindText {
		return ""
	}
	return n.Text
}

func chainOf(ops []string) string {
	out := ""
	for i, o := range ops {
		if i > 0 {
			out += "->"
		}
		out += o
	}
	return out
}

func opsListOf(ops []string) *node.Node {
	items := make([]*node.Node, len(ops))
	for i, o := range ops {
		items[i] = node.NewText(o)
	}
	return node.NewList(items...)
}

// languageCategoryOf buckets the five routes into §4.10's four
// language_category values; INSTINCT is a fast-path flavor of natural
// language, so it categorizes as "text".
func languageCategoryOf(r router.Route) string {
	switch r {
	case router.RouteMath:
		return "math"
	case router.RouteLogic:
		return "logic"
	case router.RouteCode:
		return "code"
	default:
		return "text"
	}
}

func addMathFields(fields map[string]*node.Node, ast *node.Node) {
	if ast == nil || ast.Kind != node.KindStruct {
		return
	}
	if v, ok := ast.Field("operator"); ok {
		fields["math_ast_operator"] = v
	}
	if v, ok := ast.Field("operand_count"); ok {
		fields["math_ast_operand_count"] = v
	}
	if v, ok := ast.Field("language"); ok {
		fields["math_ast_language"] = v
	}
}

func addCodeFields(fields map[string]*node.Node, ast, sum *node.Node) {
	if ast != nil && ast.Kind == node.KindStruct {
		if v, ok := ast.Field("language"); ok {
			fields["code_ast_language"] = v
		}
		if v, ok := ast.Field("node_count"); ok {
			fields["code_ast_node_count"] = v
		}
	}
	if sum != nil && sum.Kind == node.KindStruct {
		if v, ok := sum.Field("function_count"); ok {
			fields["code_summary_function_count"] = v
		}
		if v, ok := sum.Field("class_count"); ok {
			fields["code_summary_class_count"] = v
		}
	}
}

// textMetaCalculation renders the TEXT route's lc_meta_calc payload (the
// plan's sole VM constant) as a JSON-serialized TEXT node (§4.10
// meta_calculation).
func textMetaCalculation(route *router.Result) *node.Node {
	if len(route.Plan.Program.Constants) == 0 {
		return nil
	}
	payload := route.Plan.Program.Constants[0]
	data, err := serialize.ToJSON(payload)
	if err != nil {
		return nil
	}
	return node.NewText(string(data))
}

func calcExecNode(c CalcExec) *node.Node {
	fields := map[string]*node.Node{
		"plan_route":         node.NewText(c.PlanRoute),
		"plan_description":   node.NewText(c.PlanDescription),
		"consistent":         node.NewBool(c.Consistent),
		"answer_fingerprint": node.NewText(c.AnswerFingerprint),
		"snapshot_digest":    node.NewText(c.SnapshotDigest),
	}
	if c.Error != "" {
		fields["error"] = node.NewText(c.Error)
	}
	n, err := node.NewStruct(fields)
	if err != nil {
		return node.Nil
	}
	return n
}

// runCalcExec re-runs the plan's VM program against a clone of the final
// ISR (§4.10 "Consistency check", named deviation "constant substitution
// before re-run"). For the math/logic/code/instinct routes the program's
// sole constant already *is* the final answer, so the substitution below is
// a no-op. For the text route the program's sole constant is the
// lc_meta_calc descriptor, not the answer — a literal blind re-run could
// never fingerprint-match ISR.answer for that route. The constant the
// program pushes immediately before STORE_ANSWER is therefore substituted
// with the scheduler's real final answer node (on the cloned program only;
// see vm.Program.FindConstIndexBeforeStoreAnswer) so the cross-check instead
// exercises whether the bridged PHI_NORMALIZE/PHI_INFER/PHI_SUMMARIZE
// opcodes execute cleanly against an independent ISR copy carrying that
// answer — it still reports consistent=false if a bridge opcode errors or
// the run leaves a different-shaped node on the stack.
func runCalcExec(in Input) CalcExec {
	result := CalcExec{
		PlanRoute:       string(in.Route.Route),
		PlanDescription: in.Route.Plan.Description,
	}

	if in.RunErr != nil {
		result.Error = in.RunErr.Error()
		return result
	}

	finalAnswer := in.Session.ISR.Answer
	finalFP := fingerprint.MustOf(finalAnswer)
	result.AnswerFingerprint = finalFP.String()

	prog := in.Route.Plan.Program.Clone()
	if idx, ok := prog.FindConstIndexBeforeStoreAnswer(); ok && idx < len(prog.Constants) {
		prog.Constants[idx] = finalAnswer
	}

	cloned := in.Session.ISR.Clone()
	machine := vm.New(in.Table, in.Arena, in.Deps, cloned)
	vmAnswer, err := machine.Run(prog)
	if err != nil {
		result.Error = fmt.Errorf("%w: %v", errs.ErrInconsistentExecution, err).Error()
		return result
	}

	vmFP := fingerprint.MustOf(vmAnswer)
	result.Consistent = vmFP == finalFP
	if !result.Consistent {
		result.Error = fmt.Sprintf("answer fingerprint mismatch: scheduler=%s vm=%s", finalFP, vmFP)
	}

	snap, err := vm.BuildSnapshot(prog, cloned, machine.Registers())
	if err == nil {
		result.SnapshotDigest = snap.Digest
		result.Snapshot = snap
	}
	return result
}
