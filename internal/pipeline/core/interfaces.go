// Package core provides the pipeline orchestration framework: the Pipeline
// aggregate, its domain events, and the orchestrator that drives stages from
// PENDING to a terminal state.
package core

import (
	"context"
)

// Stage represents a single unit of work in a video analysis pipeline.
// Stages are opaque to the orchestrator: it only knows their name, their
// declared dependencies, and how to invoke them.
type Stage interface {
	// Name returns a stable identifier, unique within a pipeline
	// (e.g., "video_decoding").
	Name() string

	// Dependencies returns the names of stages that must be COMPLETED
	// before this stage may run.
	Dependencies() []string

	// Process executes the stage. Input is the accumulated output of prior
	// stages plus the initial input reference; config is the per-stage
	// configuration from Configuration.StageConfigs.
	//
	// A failure may be signalled either by returning an error or by
	// returning a StageResult with status FAILED and an error message;
	// the orchestrator treats both equivalently.
	Process(ctx context.Context, input map[string]any, config map[string]any) (*StageResult, error)
}

// EventPublisher publishes domain events to an external bus with
// at-least-once semantics. Implementations must be safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, event *DomainEvent) error
}

// CheckpointStore persists pipeline snapshots keyed by pipeline ID with a
// TTL. Load returns (nil, nil) when no snapshot exists or it has expired;
// transport failures surface as errors wrapping ErrCheckpointIO.
type CheckpointStore interface {
	Save(ctx context.Context, pipelineID string, snapshot *Snapshot) error
	Load(ctx context.Context, pipelineID string) (*Snapshot, error)
	Delete(ctx context.Context, pipelineID string) error
	List(ctx context.Context) ([]string, error)
}

// ProgressNotifier delivers stage-lifecycle notifications to external
// observers. Notifications are fire-and-forget: implementations may fail
// silently and must never block pipeline progress on a slow observer.
type ProgressNotifier interface {
	NotifyStageStarted(ctx context.Context, pipelineID, videoID, stageName string)
	NotifyStageCompleted(ctx context.Context, pipelineID, videoID, stageName string, progressPercentage float64)
	NotifyStageFailed(ctx context.Context, pipelineID, videoID, stageName, errorMessage string)
}
