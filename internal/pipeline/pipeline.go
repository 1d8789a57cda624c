// Package pipeline provides the video-analysis pipeline architecture: the
// Pipeline aggregate, the orchestrator that drives it, and the concrete
// processing stages.
//
// The package is organized into several sub-packages:
//   - core: aggregate, domain events, orchestrator, and the port interfaces
//   - shared: utilities shared between stages
//   - stages/*: individual stage implementations
package pipeline

import (
	"log/slog"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
	"github.com/matchvision/vidpipe/internal/pipeline/stages/balltrack"
	"github.com/matchvision/vidpipe/internal/pipeline/stages/playerdetect"
	"github.com/matchvision/vidpipe/internal/pipeline/stages/videodecode"
)

// Re-export core types for convenience.
type (
	// Stage is a single unit of work in a pipeline.
	Stage = core.Stage

	// StageResult is the outcome of a single stage invocation.
	StageResult = core.StageResult

	// Pipeline is the aggregate driving one video processing run.
	Pipeline = core.Pipeline

	// Configuration is the immutable per-pipeline configuration.
	Configuration = core.Configuration

	// Snapshot is the persisted checkpoint form of a pipeline.
	Snapshot = core.Snapshot

	// DomainEvent records an aggregate state transition.
	DomainEvent = core.DomainEvent

	// Orchestrator drives pipelines to a terminal state.
	Orchestrator = core.Orchestrator

	// Status is the pipeline lifecycle state.
	Status = core.Status

	// StatusView is the API-facing snapshot of pipeline state.
	StatusView = core.StatusView

	// EventPublisher publishes domain events to a bus.
	EventPublisher = core.EventPublisher

	// CheckpointStore persists pipeline snapshots with a TTL.
	CheckpointStore = core.CheckpointStore

	// ProgressNotifier delivers stage-lifecycle notifications.
	ProgressNotifier = core.ProgressNotifier
)

// Re-export pipeline states.
const (
	StatusPending   = core.StatusPending
	StatusRunning   = core.StatusRunning
	StatusCompleted = core.StatusCompleted
	StatusFailed    = core.StatusFailed
	StatusCancelled = core.StatusCancelled
)

// Re-export errors.
var (
	ErrInvalidState         = core.ErrInvalidState
	ErrUnknownStage         = core.ErrUnknownStage
	ErrIncompatibleStages   = core.ErrIncompatibleStages
	ErrDependencyNotMet     = core.ErrDependencyNotMet
	ErrPipelineNotFound     = core.ErrPipelineNotFound
	ErrInvalidConfiguration = core.ErrInvalidConfiguration
)

// NewPipeline creates a PENDING pipeline aggregate.
var NewPipeline = core.NewPipeline

// NewOrchestrator creates an orchestrator wired to the given ports.
var NewOrchestrator = core.NewOrchestrator

// Restore rebuilds a pipeline aggregate from a checkpoint snapshot.
var Restore = core.Restore

// DefaultConfiguration returns the default pipeline configuration.
var DefaultConfiguration = core.DefaultConfiguration

// DefaultStages returns the standard video-analysis stage set in execution
// order: decode, then player detection, then ball tracking.
func DefaultStages(logger *slog.Logger) []Stage {
	return []Stage{
		videodecode.New(logger),
		playerdetect.New(logger),
		balltrack.New(logger),
	}
}

// Stage names for reference.
const (
	StageVideoDecoding   = videodecode.StageName
	StagePlayerDetection = playerdetect.StageName
	StageBallTracking    = balltrack.StageName
)
