package integration

// ---------------------------------------------------------------------------
// PushState is a position in the multi-step push pipeline
// ---------------------------------------------------------------------------

// PushState names the last completed step of a multi-step push.
// The zero value means no step has completed yet.
type PushState string

const (
	PushStateNone            PushState = ""
	PushStateCreated         PushState = "CREATED"
	PushStateMediaUploaded   PushState = "MEDIA_UPLOADED"
	PushStateVariantsCreated PushState = "VARIANTS_CREATED"
	PushStateVariantsUpdated PushState = "VARIANTS_UPDATED"
	PushStateInventorySet    PushState = "INVENTORY_SET"
	PushStateMetadataSet     PushState = "METADATA_SET"
	PushStateActivated       PushState = "ACTIVATED"
	PushStateFailed          PushState = "FAILED"
)

// pushPipeline is the fixed step order; a step's state is reached when it completes
var pushPipeline = []PushState{
	PushStateCreated,
	PushStateMediaUploaded,
	PushStateVariantsCreated,
	PushStateVariantsUpdated,
	PushStateInventorySet,
	PushStateMetadataSet,
	PushStateActivated,
}

// PushPipeline returns a copy of the ordered steps
func PushPipeline() []PushState {
	out := make([]PushState, len(pushPipeline))
	copy(out, pushPipeline)
	return out
}

// IsValid returns true for the zero state, pipeline states and Failed
func (s PushState) IsValid() bool {
	return s == PushStateNone || s == PushStateFailed || s.Ordinal() > 0
}

// String returns the string representation of PushState
func (s PushState) String() string {
	if s == PushStateNone {
		return "NONE"
	}
	return string(s)
}

// Ordinal is the 1-based position in the pipeline, 0 for None and Failed
func (s PushState) Ordinal() int {
	for i, step := range pushPipeline {
		if step == s {
			return i + 1
		}
	}
	return 0
}

// IsTerminal reports whether no further steps follow
func (s PushState) IsTerminal() bool {
	return s == PushStateActivated || s == PushStateFailed
}

// Reached reports whether s is at or beyond step
func (s PushState) Reached(step PushState) bool {
	return step.Ordinal() > 0 && s.Ordinal() >= step.Ordinal()
}

// NextStep returns the step that follows the last completed one.
// It returns false when the pipeline is complete or the state is Failed.
func NextStep(lastCompleted PushState) (PushState, bool) {
	if lastCompleted == PushStateFailed {
		return "", false
	}
	idx := lastCompleted.Ordinal()
	if idx >= len(pushPipeline) {
		return "", false
	}
	return pushPipeline[idx], true
}

// StepResult is the outcome of executing one pipeline step
type StepResult struct {
	// Step is the step that was executed
	Step PushState
	// Err is non-nil when the step failed after its retry budget
	Err error
}

// NextPushState is the pure transition function of the push state machine.
// A successful result for the expected next step advances to that step;
// an error, a terminal state or an out-of-order step yields Failed.
func NextPushState(current PushState, result StepResult) PushState {
	if result.Err != nil {
		return PushStateFailed
	}
	expected, ok := NextStep(current)
	if !ok || result.Step != expected {
		return PushStateFailed
	}
	return expected
}
