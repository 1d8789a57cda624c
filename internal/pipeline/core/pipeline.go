package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/matchvision/vidpipe/internal/models"
)

// Pipeline is the aggregate root for one video processing run. It owns the
// lifecycle state machine, per-stage results and retry counts, and the
// pending domain events recorded by each transition.
//
// The aggregate is pure: it never performs I/O. Events accumulate in
// pendingEvents and are drained by the orchestrator, which owns publication,
// checkpointing, and notification.
//
// All methods are safe for concurrent use; the orchestrator mutates the
// aggregate from its run loop while status queries and cancellation arrive
// from API handlers.
type Pipeline struct {
	mu sync.Mutex

	id      models.PipelineID
	videoID models.VideoID
	config  Configuration

	status            Status
	stages            []Stage
	stageOrder        []string
	currentStageIndex int
	stageResults      map[string]StageResult
	retryCounts       map[string]int
	checkpointData    map[string]map[string]any

	createdAt time.Time
	updatedAt time.Time

	pendingEvents []*DomainEvent
}

// NewPipeline creates a PENDING pipeline for the given video. The stage
// slice fixes the execution order.
func NewPipeline(videoID models.VideoID, config Configuration, stages []Stage) *Pipeline {
	order := make([]string, len(stages))
	for i, s := range stages {
		order[i] = s.Name()
	}
	now := time.Now().UTC()
	return &Pipeline{
		id:             models.NewPipelineID(),
		videoID:        videoID,
		config:         config,
		status:         StatusPending,
		stages:         stages,
		stageOrder:     order,
		stageResults:   make(map[string]StageResult),
		retryCounts:    make(map[string]int),
		checkpointData: make(map[string]map[string]any),
		createdAt:      now,
		updatedAt:      now,
	}
}

// ID returns the pipeline identity.
func (p *Pipeline) ID() models.PipelineID {
	return p.id
}

// VideoID returns the video this pipeline processes.
func (p *Pipeline) VideoID() models.VideoID {
	return p.videoID
}

// Configuration returns the immutable pipeline configuration.
func (p *Pipeline) Configuration() Configuration {
	return p.config
}

// Status returns the current lifecycle state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Stages returns the ordered stage handles.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// StageOrder returns the ordered stage names.
func (p *Pipeline) StageOrder() []string {
	return append([]string(nil), p.stageOrder...)
}

// CurrentStageIndex returns the index of the next stage to run.
func (p *Pipeline) CurrentStageIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentStageIndex
}

// CurrentStage returns the stage at the current index, or nil when all
// stages have been consumed.
func (p *Pipeline) CurrentStage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentStageIndex >= len(p.stages) {
		return nil
	}
	return p.stages[p.currentStageIndex]
}

// StageResults returns a copy of the recorded stage results.
func (p *Pipeline) StageResults() map[string]StageResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]StageResult, len(p.stageResults))
	for k, v := range p.stageResults {
		out[k] = v
	}
	return out
}

// RetryCount returns how many times the named stage has failed so far.
func (p *Pipeline) RetryCount(stageName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retryCounts[stageName]
}

// ProgressPercentage returns completion as completed-stages over total, in
// percent. Defined as 0 for a pipeline with no stages.
func (p *Pipeline) ProgressPercentage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progressLocked()
}

func (p *Pipeline) progressLocked() float64 {
	if len(p.stageOrder) == 0 {
		return 0
	}
	return float64(p.completedCountLocked()) / float64(len(p.stageOrder)) * 100
}

func (p *Pipeline) completedCountLocked() int {
	n := 0
	for _, name := range p.stageOrder {
		if r, ok := p.stageResults[name]; ok && r.Status == StageCompleted {
			n++
		}
	}
	return n
}

// Start transitions PENDING -> RUNNING and records PipelineStarted. A
// pipeline with no stages completes immediately.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusPending {
		return fmt.Errorf("%w: cannot start pipeline in state %s", ErrInvalidState, p.status)
	}

	p.status = StatusRunning
	p.updatedAt = time.Now().UTC()
	p.recordLocked(PipelineStartedPayload{
		PipelineID:    p.id.String(),
		VideoID:       p.videoID.String(),
		TotalStages:   len(p.stageOrder),
		Configuration: p.config,
	})

	if len(p.stages) == 0 {
		return p.completeLocked()
	}
	return nil
}

// CompleteStage records a stage result and emits StageCompleted. When the
// result is COMPLETED and the stage is the one at the current index, the
// stage's retry count resets and the index advances; advancing past the last
// stage completes the pipeline.
//
// A FAILED result is stored without advancing; retry accounting for
// failures goes through FailStage.
func (p *Pipeline) CompleteStage(stageName string, result StageResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusRunning {
		return fmt.Errorf("%w: cannot complete stage in state %s", ErrInvalidState, p.status)
	}
	if !p.knownStageLocked(stageName) {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
	}

	result.StageName = stageName
	p.stageResults[stageName] = result
	if len(result.CheckpointData) > 0 && p.config.CheckpointEnabled {
		p.checkpointData[stageName] = result.CheckpointData
	}
	p.updatedAt = time.Now().UTC()

	p.recordLocked(StageCompletedPayload{
		PipelineID:         p.id.String(),
		VideoID:            p.videoID.String(),
		StageName:          stageName,
		ProgressPercentage: p.progressLocked(),
		Result:             result,
	})

	if result.Status == StageCompleted &&
		p.currentStageIndex < len(p.stageOrder) &&
		p.stageOrder[p.currentStageIndex] == stageName {
		p.retryCounts[stageName] = 0
		p.currentStageIndex++
		if p.currentStageIndex == len(p.stageOrder) {
			return p.completeLocked()
		}
	}
	return nil
}

// FailStage records a failed attempt of the named stage and emits
// StageFailed. While the attempt count stays within MaxRetries the pipeline
// remains RUNNING; once exceeded it transitions to FAILED and the failure is
// written into stageResults.
func (p *Pipeline) FailStage(stageName, errorMessage string) error {
	return p.failStage(stageName, errorMessage, true)
}

// FailStageFatal records a non-retriable stage failure, such as a
// dependency violation. The pipeline transitions to FAILED regardless of the
// remaining retry budget and the emitted StageFailed carries will_retry
// false.
func (p *Pipeline) FailStageFatal(stageName, errorMessage string) error {
	return p.failStage(stageName, errorMessage, false)
}

func (p *Pipeline) failStage(stageName, errorMessage string, retriable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status.IsTerminal() {
		return fmt.Errorf("%w: cannot fail stage in state %s", ErrInvalidState, p.status)
	}
	if !p.knownStageLocked(stageName) {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
	}

	p.retryCounts[stageName]++
	count := p.retryCounts[stageName]
	willRetry := retriable && count <= p.config.MaxRetries
	p.updatedAt = time.Now().UTC()

	p.recordLocked(StageFailedPayload{
		PipelineID:   p.id.String(),
		VideoID:      p.videoID.String(),
		StageName:    stageName,
		ErrorMessage: errorMessage,
		RetryCount:   count,
		MaxRetries:   p.config.MaxRetries,
		WillRetry:    willRetry,
	})

	if !willRetry {
		p.stageResults[stageName] = FailedResult(stageName, errorMessage, 0)
		p.status = StatusFailed
	}
	return nil
}

// Cancel transitions a non-terminal pipeline to CANCELLED and records
// PipelineCancelled with the given reason.
func (p *Pipeline) Cancel(reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status.IsTerminal() {
		return fmt.Errorf("%w: cannot cancel pipeline in state %s", ErrInvalidState, p.status)
	}

	p.status = StatusCancelled
	p.updatedAt = time.Now().UTC()
	p.recordLocked(PipelineCancelledPayload{
		PipelineID: p.id.String(),
		VideoID:    p.videoID.String(),
		Reason:     reason,
	})
	return nil
}

// completeLocked finishes the pipeline after the index advanced past the
// last stage. Every declared stage must hold a COMPLETED result.
func (p *Pipeline) completeLocked() error {
	for _, name := range p.stageOrder {
		r, ok := p.stageResults[name]
		if !ok || r.Status != StageCompleted {
			return fmt.Errorf("%w: %s", ErrIncompleteStage, name)
		}
	}

	p.status = StatusCompleted
	p.updatedAt = time.Now().UTC()

	var totalMs int64
	results := make(map[string]StageResult, len(p.stageResults))
	for name, r := range p.stageResults {
		totalMs += r.ProcessingTimeMs
		results[name] = r
	}
	p.recordLocked(PipelineCompletedPayload{
		PipelineID:            p.id.String(),
		VideoID:               p.videoID.String(),
		TotalProcessingTimeMs: totalMs,
		StageResults:          results,
	})
	return nil
}

// markFailed forces a terminal FAILED state without recording an event.
// Used by the orchestrator when the event bus itself is the failure: there
// is no point queueing an event that cannot be published.
func (p *Pipeline) markFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.status.IsTerminal() {
		p.status = StatusFailed
		p.updatedAt = time.Now().UTC()
	}
}

// revive returns a restored FAILED pipeline to RUNNING with a fresh retry
// budget for the stage at the current index, so resumption can re-attempt
// it.
func (p *Pipeline) revive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusFailed {
		return
	}
	p.status = StatusRunning
	if p.currentStageIndex < len(p.stageOrder) {
		delete(p.retryCounts, p.stageOrder[p.currentStageIndex])
	}
	p.updatedAt = time.Now().UTC()
}

func (p *Pipeline) knownStageLocked(name string) bool {
	for _, s := range p.stageOrder {
		if s == name {
			return true
		}
	}
	return false
}

// DependenciesMet reports whether every declared dependency of the stage
// has a COMPLETED result.
func (p *Pipeline) DependenciesMet(stage Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, dep := range stage.Dependencies() {
		r, ok := p.stageResults[dep]
		if !ok || r.Status != StageCompleted {
			return fmt.Errorf("%w: stage %s requires %s", ErrDependencyNotMet, stage.Name(), dep)
		}
	}
	return nil
}

// CompletedOutputs merges the output data of all COMPLETED stages in stage
// order. Later stages overwrite colliding keys. Used to rebuild the input
// map when resuming from a checkpoint.
func (p *Pipeline) CompletedOutputs() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	merged := make(map[string]any)
	for _, name := range p.stageOrder {
		r, ok := p.stageResults[name]
		if !ok || r.Status != StageCompleted {
			continue
		}
		for k, v := range r.OutputData {
			merged[k] = v
		}
	}
	return merged
}

// DrainEvents atomically returns the pending events in occurrence order and
// clears the buffer.
func (p *Pipeline) DrainEvents() []*DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := p.pendingEvents
	p.pendingEvents = nil
	return events
}

// PendingEventCount returns the number of unpublished events.
func (p *Pipeline) PendingEventCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pendingEvents)
}

func (p *Pipeline) recordLocked(payload EventPayload) {
	p.pendingEvents = append(p.pendingEvents, newEvent(p.id.String(), payload))
}

// StageResultView is the per-stage slice of a StatusView.
type StageResultView struct {
	Status           StageStatus `json:"status"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	ErrorMessage     string      `json:"error_message,omitempty"`
}

// StatusView is a point-in-time snapshot of pipeline state for API
// consumers.
type StatusView struct {
	PipelineID         string                     `json:"pipeline_id"`
	VideoID            string                     `json:"video_id"`
	Status             Status                     `json:"status"`
	CurrentStage       string                     `json:"current_stage,omitempty"`
	ProgressPercentage float64                    `json:"progress_percentage"`
	StageResults       map[string]StageResultView `json:"stage_results,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`
}

// StatusView builds a consistent view of the aggregate under one lock hold.
func (p *Pipeline) StatusView() StatusView {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := StatusView{
		PipelineID:         p.id.String(),
		VideoID:            p.videoID.String(),
		Status:             p.status,
		ProgressPercentage: p.progressLocked(),
		CreatedAt:          p.createdAt,
		UpdatedAt:          p.updatedAt,
	}
	if !p.status.IsTerminal() && p.currentStageIndex < len(p.stageOrder) {
		view.CurrentStage = p.stageOrder[p.currentStageIndex]
	}
	if len(p.stageResults) > 0 {
		view.StageResults = make(map[string]StageResultView, len(p.stageResults))
		for name, r := range p.stageResults {
			view.StageResults[name] = StageResultView{
				Status:           r.Status,
				ProcessingTimeMs: r.ProcessingTimeMs,
				ErrorMessage:     r.ErrorMessage,
			}
		}
	}
	return view
}
