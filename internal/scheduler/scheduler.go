// Package scheduler implements the deterministic single-threaded
// Φ-execution loop (§4.8): pop the front of ISR.OpsQueue, apply the
// Φ-operator, trace the deltas, and halt according to the taxonomy of
// §4.8 (QUEUE_EMPTY, STEP_BUDGET, QUALITY_THRESHOLD, CONTRADICTION).
//
// Grounded on the teacher's internal/core/kernel.go "apply one action,
// trace it, check budget" loop shape (read during survey), generalized
// from the teacher's shard/tool dispatch to the spec's closed Φ-operator
// set — the loop body is otherwise a direct structural match.
package scheduler

import (
	"github.com/metanucleus/metanucleus/internal/isr"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/phi"
)

// HaltReason identifies why the scheduler loop stopped (§4.8).
type HaltReason string

const (
	HaltQueueEmpty        HaltReason = "QUEUE_EMPTY"
	HaltStepBudget        HaltReason = "STEP_BUDGET"
	HaltQualityThreshold  HaltReason = "QUALITY_THRESHOLD"
	HaltContradiction     HaltReason = "CONTRADICTION"
	HaltPlanExecuted      HaltReason = "PLAN_EXECUTED"
)

// Run drains session.ISR.OpsQueue, applying each popped operator through
// phi.Apply, until the queue empties, the step budget is exhausted, the
// quality threshold is met with a non-NIL answer, or (when enabled)
// INFER reports a contradiction (§4.8 algorithm).
//
// A returned error means a Φ-operator itself failed; HaltReason is "" in
// that case and callers must not treat it as STEP_BUDGET. Per §7, the
// caller (internal/engine) captures the error into the meta-summary and
// turns the answer into a diagnostic string rather than aborting.
func Run(session *isr.Session, deps phi.Deps, contradictionsEnabled bool) (HaltReason, error) {
	state := session.ISR
	budget := session.StepBudget
	if budget <= 0 {
		budget = 32
	}

	steps := 0
	for steps < budget {
		op, ok := state.PopOp()
		if !ok {
			return HaltQueueEmpty, nil
		}

		preRelations := len(state.Relations)
		preQuality := state.Quality

		result, err := phi.Apply(state, op, deps)
		if err != nil {
			return "", err
		}

		session.Trace.Append(labelOf(op), state.Quality-preQuality, len(state.Relations)-preRelations, len(state.Context))
		steps++

		if contradictionsEnabled && result.Contradiction {
			return HaltContradiction, nil
		}
		if !node.IsNil(state.Answer) && state.Quality >= session.QualityThreshold {
			return HaltQualityThreshold, nil
		}
	}
	return HaltStepBudget, nil
}

func labelOf(op *node.Node) string {
	if op == nil {
		return ""
	}
	return op.Label.String()
}
