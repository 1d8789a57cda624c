package core

// Status is the lifecycle state of a pipeline.
type Status string

// Pipeline states.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal returns true for COMPLETED, FAILED, and CANCELLED.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StageStatus is the outcome state of a single stage.
type StageStatus string

// Stage states.
const (
	StagePending   StageStatus = "PENDING"
	StageRunning   StageStatus = "RUNNING"
	StageCompleted StageStatus = "COMPLETED"
	StageFailed    StageStatus = "FAILED"
	StageSkipped   StageStatus = "SKIPPED"
)

// StageResult is the immutable outcome of one stage invocation.
type StageResult struct {
	// StageName identifies the stage that produced this result.
	StageName string `json:"stage_name"`
	// Status is the outcome state.
	Status StageStatus `json:"status"`
	// OutputData is merged into the input of subsequent stages.
	OutputData map[string]any `json:"output_data,omitempty"`
	// Metadata carries diagnostic details about the invocation.
	Metadata map[string]any `json:"metadata,omitempty"`
	// ErrorMessage is set when Status is FAILED.
	ErrorMessage string `json:"error_message,omitempty"`
	// ProcessingTimeMs is the wall-clock execution time in milliseconds.
	ProcessingTimeMs int64 `json:"processing_time_ms"`
	// CheckpointData is an optional stage-provided snapshot fragment,
	// persisted when checkpointing is enabled.
	CheckpointData map[string]any `json:"checkpoint_data,omitempty"`
}

// CompletedResult builds a COMPLETED StageResult.
func CompletedResult(stageName string, output, metadata map[string]any, processingTimeMs int64) StageResult {
	return StageResult{
		StageName:        stageName,
		Status:           StageCompleted,
		OutputData:       output,
		Metadata:         metadata,
		ProcessingTimeMs: processingTimeMs,
	}
}

// FailedResult builds a FAILED StageResult with the given error message.
func FailedResult(stageName, errorMessage string, processingTimeMs int64) StageResult {
	return StageResult{
		StageName:        stageName,
		Status:           StageFailed,
		ErrorMessage:     errorMessage,
		ProcessingTimeMs: processingTimeMs,
	}
}
