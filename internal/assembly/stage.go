package assembly

import "fmt"

// Stage identifies a phase of the assembly state machine. Stages run in
// declaration order; a failure in any stage terminates the run.
type Stage int

const (
	StagePending Stage = iota
	StageMeasuring
	StageNormalizing
	StageConcatenating
	StageMixing
	StageFinalizing
	StageComplete
)

// String returns the stage name used in logs and error tags.
func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageMeasuring:
		return "measuring"
	case StageNormalizing:
		return "normalizing"
	case StageConcatenating:
		return "concatenating"
	case StageMixing:
		return "mixing"
	case StageFinalizing:
		return "finalizing"
	case StageComplete:
		return "complete"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError tags a run failure with the stage that produced it so the
// invoking collaborator can decide between retry and abort.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("assembly failed during %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As classification.
func (e *StageError) Unwrap() error {
	return e.Err
}

func failed(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
