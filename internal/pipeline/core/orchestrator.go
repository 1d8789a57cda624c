package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/matchvision/vidpipe/internal/models"
)

// InitialInputKey is the key under which the input video reference is placed
// in the first stage's input map.
const InitialInputKey = "video_path"

// Orchestrator drives pipelines from construction to a terminal state. One
// orchestrator instance serves many concurrent pipelines; each pipeline is
// driven by a single goroutine while cancellation and status queries arrive
// from others.
type Orchestrator struct {
	publisher   EventPublisher
	checkpoints CheckpointStore
	notifier    ProgressNotifier
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	pipeline *Pipeline
	cancel   context.CancelFunc
}

// NewOrchestrator creates an orchestrator wired to the given ports.
func NewOrchestrator(publisher EventPublisher, checkpoints CheckpointStore, notifier ProgressNotifier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		publisher:   publisher,
		checkpoints: checkpoints,
		notifier:    notifier,
		logger:      logger.With("component", "orchestrator"),
		active:      make(map[string]*activeRun),
	}
}

// Execute constructs a pipeline for the video and drives it to a terminal
// state. The call blocks until the pipeline finishes; callers wanting a
// fire-and-forget submission construct the aggregate with NewPipeline and
// drive it with Run on their own goroutine.
func (o *Orchestrator) Execute(ctx context.Context, videoID models.VideoID, inputRef string, config Configuration, stages []Stage) (*Pipeline, error) {
	p := NewPipeline(videoID, config, stages)
	return p, o.Run(ctx, p, inputRef)
}

// Run drives a PENDING pipeline to a terminal state. It returns nil when
// the pipeline ends COMPLETED or CANCELLED; a stage failure or transport
// failure is returned to the caller after the aggregate has been updated.
func (o *Orchestrator) Run(ctx context.Context, p *Pipeline, inputRef string) error {
	if err := p.Configuration().Validate(); err != nil {
		return err
	}

	ctx, done := o.register(ctx, p)
	defer done()

	if err := p.Start(); err != nil {
		return err
	}
	if err := o.flush(ctx, p); err != nil {
		p.markFailed()
		return err
	}

	input := map[string]any{InitialInputKey: inputRef}
	return o.drive(ctx, p, input)
}

// Resume loads the checkpoint for the given pipeline ID, restores the
// aggregate against the supplied stage handles, and drives the remaining
// stages. The rebuilt input is the merged output of the already COMPLETED
// stages. A pipeline checkpointed as FAILED is re-attempted with a fresh
// retry budget for the stage it failed on.
func (o *Orchestrator) Resume(ctx context.Context, pipelineID string, stages []Stage) (*Pipeline, error) {
	snap, err := o.checkpoints.Load(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: no checkpoint for %s", ErrPipelineNotFound, pipelineID)
	}

	p, err := Restore(snap, stages)
	if err != nil {
		return nil, err
	}
	return p, o.ResumePipeline(ctx, p)
}

// ResumePipeline drives a restored pipeline from its current stage index.
func (o *Orchestrator) ResumePipeline(ctx context.Context, p *Pipeline) error {
	switch p.Status() {
	case StatusCompleted:
		return nil
	case StatusCancelled:
		return fmt.Errorf("%w: cannot resume cancelled pipeline", ErrInvalidState)
	case StatusFailed:
		p.revive()
	case StatusPending:
		// A checkpoint taken before Start: run from scratch, events included.
		return o.Run(ctx, p, "")
	}

	ctx, done := o.register(ctx, p)
	defer done()

	o.logger.Info("resuming pipeline from checkpoint",
		"pipeline_id", p.ID().String(),
		"current_stage_index", p.CurrentStageIndex(),
	)
	return o.drive(ctx, p, p.CompletedOutputs())
}

// CancelPipeline cancels an active pipeline. The run loop observes the
// state change at its next stage boundary; a stage in flight is not
// interrupted beyond its context being cancelled.
func (o *Orchestrator) CancelPipeline(pipelineID, reason string) error {
	o.mu.Lock()
	run, ok := o.active[pipelineID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPipelineNotFound, pipelineID)
	}
	if err := run.pipeline.Cancel(reason); err != nil {
		return err
	}
	run.cancel()
	o.logger.Info("pipeline cancelled",
		"pipeline_id", pipelineID,
		"reason", reason,
	)
	return nil
}

// GetPipelineStatus returns the status view of an active pipeline.
func (o *Orchestrator) GetPipelineStatus(pipelineID string) (StatusView, bool) {
	o.mu.Lock()
	run, ok := o.active[pipelineID]
	o.mu.Unlock()
	if !ok {
		return StatusView{}, false
	}
	return run.pipeline.StatusView(), true
}

// ActivePipelines returns the IDs of pipelines currently being driven.
func (o *Orchestrator) ActivePipelines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// register adds the pipeline to the active set and arms the configured
// timeout. The returned done func removes it again and must run on every
// exit path.
func (o *Orchestrator) register(ctx context.Context, p *Pipeline) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(ctx, p.Configuration().Timeout())

	id := p.ID().String()
	o.mu.Lock()
	o.active[id] = &activeRun{pipeline: p, cancel: cancel}
	o.mu.Unlock()

	return ctx, func() {
		o.mu.Lock()
		delete(o.active, id)
		o.mu.Unlock()
		cancel()
	}
}

// drive runs the stage loop from the pipeline's current index until a
// terminal state. Per-stage ordering is fixed: mutate the aggregate, flush
// its events, checkpoint, then notify observers.
func (o *Orchestrator) drive(ctx context.Context, p *Pipeline, input map[string]any) error {
	pipelineID := p.ID().String()
	videoID := p.VideoID().String()

	for p.Status() == StatusRunning {
		if err := o.checkInterrupted(ctx, p); err != nil {
			return err
		}

		stage := p.CurrentStage()
		if stage == nil {
			break
		}
		stageName := stage.Name()

		if err := p.DependenciesMet(stage); err != nil {
			if failErr := p.FailStageFatal(stageName, err.Error()); failErr != nil {
				return failErr
			}
			if flushErr := o.flush(ctx, p); flushErr != nil {
				p.markFailed()
				return flushErr
			}
			o.notifier.NotifyStageFailed(ctx, pipelineID, videoID, stageName, err.Error())
			return err
		}

		o.notifier.NotifyStageStarted(ctx, pipelineID, videoID, stageName)
		o.logger.Info("stage started",
			"pipeline_id", pipelineID,
			"stage", stageName,
		)

		result, err := stage.Process(ctx, input, p.Configuration().StageConfig(stageName))
		if err != nil || (result != nil && result.Status == StageFailed) {
			message := ""
			if err != nil {
				message = err.Error()
			} else {
				message = result.ErrorMessage
			}
			return o.failStage(ctx, p, stageName, message)
		}
		if result == nil {
			return o.failStage(ctx, p, stageName, "stage returned no result")
		}

		if err := p.CompleteStage(stageName, *result); err != nil {
			return err
		}
		if err := o.flush(ctx, p); err != nil {
			p.markFailed()
			return err
		}
		o.saveCheckpoint(ctx, p)
		o.notifier.NotifyStageCompleted(ctx, pipelineID, videoID, stageName, p.ProgressPercentage())
		o.logger.Info("stage completed",
			"pipeline_id", pipelineID,
			"stage", stageName,
			"progress", p.ProgressPercentage(),
		)

		for k, v := range result.OutputData {
			input[k] = v
		}
	}

	// Trailing events: a concurrent Cancel records PipelineCancelled
	// outside the loop body, and has already expired ctx. The flush must
	// outlive the cancellation, as in checkInterrupted.
	if err := o.flush(context.WithoutCancel(ctx), p); err != nil {
		p.markFailed()
		return err
	}

	if p.Status() == StatusCompleted {
		if err := o.checkpoints.Delete(ctx, pipelineID); err != nil {
			o.logger.Warn("failed to delete checkpoint after completion",
				"pipeline_id", pipelineID,
				"error", err,
			)
		}
		o.logger.Info("pipeline completed", "pipeline_id", pipelineID)
	}
	return nil
}

// checkInterrupted translates context expiry into pipeline cancellation at
// the stage boundary.
func (o *Orchestrator) checkInterrupted(ctx context.Context, p *Pipeline) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}

	reason := "cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
		err = fmt.Errorf("%w: %s exceeded %s", ErrTimeout, p.ID().String(), p.Configuration().Timeout())
	}
	if cancelErr := p.Cancel(reason); cancelErr == nil {
		if flushErr := o.flush(context.WithoutCancel(ctx), p); flushErr != nil {
			p.markFailed()
			return flushErr
		}
	}
	return err
}

// failStage records a bounded-retry stage failure and surfaces it to the
// caller. The retry bookkeeping stays on the aggregate; re-attempts happen
// through Resume, not in-loop.
func (o *Orchestrator) failStage(ctx context.Context, p *Pipeline, stageName, message string) error {
	pipelineID := p.ID().String()

	if err := p.FailStage(stageName, message); err != nil {
		return err
	}
	if err := o.flush(ctx, p); err != nil {
		p.markFailed()
		return err
	}
	o.saveCheckpoint(ctx, p)
	o.notifier.NotifyStageFailed(ctx, pipelineID, p.VideoID().String(), stageName, message)
	o.logger.Warn("stage failed",
		"pipeline_id", pipelineID,
		"stage", stageName,
		"retry_count", p.RetryCount(stageName),
		"error", message,
	)
	return NewStageExecutionError(stageName, errors.New(message))
}

// flush publishes the aggregate's pending events in emission order. Publish
// failure is fatal to the pipeline: transitions must not be silently lost.
func (o *Orchestrator) flush(ctx context.Context, p *Pipeline) error {
	for _, event := range p.DrainEvents() {
		if err := o.publisher.Publish(ctx, event); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrEventPublish, event.EventType, err)
		}
	}
	return nil
}

// saveCheckpoint persists a snapshot when checkpointing is enabled. Save
// failure is non-fatal: a missing checkpoint costs resumption, not
// correctness.
func (o *Orchestrator) saveCheckpoint(ctx context.Context, p *Pipeline) {
	if !p.Configuration().CheckpointEnabled {
		return
	}
	if err := o.checkpoints.Save(ctx, p.ID().String(), p.Snapshot()); err != nil {
		o.logger.Warn("checkpoint save failed",
			"pipeline_id", p.ID().String(),
			"error", err,
		)
	}
}
