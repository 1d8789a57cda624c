package core

import (
	"errors"
	"fmt"
)

// Pipeline errors.
var (
	// ErrInvalidState indicates an operation is forbidden in the
	// aggregate's current state.
	ErrInvalidState = errors.New("operation not allowed in current pipeline state")

	// ErrUnknownStage indicates a stage name is not in the pipeline's
	// declared set.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrIncompleteStage indicates pipeline completion was attempted with
	// a missing or non-completed stage.
	ErrIncompleteStage = errors.New("stage not completed")

	// ErrIncompatibleStages indicates restore was called with a stage list
	// that does not match the checkpoint's stage order.
	ErrIncompatibleStages = errors.New("stage list does not match checkpoint")

	// ErrDependencyNotMet indicates a stage was reached while a declared
	// dependency is not COMPLETED.
	ErrDependencyNotMet = errors.New("stage dependencies not met")

	// ErrPipelineNotFound indicates the pipeline is not in the active set.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrEventPublish indicates the event bus rejected a publish. Fatal to
	// the pipeline: transitions must not be silently lost.
	ErrEventPublish = errors.New("event publish failed")

	// ErrCheckpointIO indicates a checkpoint store transport failure.
	ErrCheckpointIO = errors.New("checkpoint store failure")

	// ErrInvalidConfiguration indicates invalid pipeline configuration.
	ErrInvalidConfiguration = errors.New("invalid pipeline configuration")

	// ErrTimeout indicates the pipeline exceeded its configured wall-clock
	// budget. The run is cancelled with reason "timeout".
	ErrTimeout = errors.New("pipeline timed out")
)

// StageExecutionError wraps a stage body failure with stage context.
type StageExecutionError struct {
	StageName string
	Err       error
}

// Error implements the error interface.
func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.StageName, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageExecutionError) Unwrap() error {
	return e.Err
}

// NewStageExecutionError creates a new StageExecutionError.
func NewStageExecutionError(stageName string, err error) *StageExecutionError {
	return &StageExecutionError{StageName: stageName, Err: err}
}
