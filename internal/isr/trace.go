package isr

import "strings"

// TraceStep is one append-only audit record of a single operator
// application (§3.4).
type TraceStep struct {
	Order          int
	Label          string
	Category       string // derived from the label prefix
	DeltaQuality   float64
	DeltaRelations int
	ContextSize    int
}

// categoryOf derives a TraceStep's category from its label prefix: labels
// of the form "code/EVAL_PURE" categorize as "code"; everything else
// categorizes as "phi" (the core Φ-operator set).
func categoryOf(label string) string {
	if idx := strings.IndexByte(label, '/'); idx >= 0 {
		return label[:idx]
	}
	return "phi"
}

// Trace is the append-only ordered log of TraceSteps for one turn.
type Trace struct {
	Steps []TraceStep
}

// NewTrace creates an empty Trace.
func NewTrace() *Trace { return &Trace{} }

// Append records a new step, assigning it the next Order value.
func (t *Trace) Append(label string, deltaQuality float64, deltaRelations, contextSize int) TraceStep {
	step := TraceStep{
		Order:          len(t.Steps),
		Label:          label,
		Category:       categoryOf(label),
		DeltaQuality:   deltaQuality,
		DeltaRelations: deltaRelations,
		ContextSize:    contextSize,
	}
	t.Steps = append(t.Steps, step)
	return step
}
