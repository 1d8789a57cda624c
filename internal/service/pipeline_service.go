// Package service provides the business logic layer between the HTTP API
// and the pipeline domain. It owns request-to-configuration mapping and the
// registry of submitted pipelines, so finished runs stay queryable after
// the orchestrator has released them.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/matchvision/vidpipe/internal/config"
	"github.com/matchvision/vidpipe/internal/models"
	"github.com/matchvision/vidpipe/internal/pipeline"
	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

// StageFactory builds a fresh ordered stage set for one pipeline run.
type StageFactory func() []pipeline.Stage

// ProcessRequest carries the parameters of a video processing submission.
// Pointer fields distinguish "not provided" from zero values; unset fields
// fall back to the service defaults.
type ProcessRequest struct {
	VideoPath         string
	ModelVersion      string
	BatchSize         *int
	GPUEnabled        *bool
	CheckpointEnabled *bool
	MaxRetries        *int
	TimeoutSeconds    *int
	StageConfigs      map[string]map[string]any
}

// Submission is the synchronous acknowledgement of an accepted request.
// Processing continues in the background.
type Submission struct {
	PipelineID string
	VideoID    string
	Status     core.Status
}

// PipelineService accepts processing requests, launches pipeline runs, and
// answers status, cancel, and resume queries.
type PipelineService struct {
	orchestrator *pipeline.Orchestrator
	checkpoints  pipeline.CheckpointStore
	stages       StageFactory
	defaults     config.PipelineConfig
	logger       *slog.Logger

	mu   sync.Mutex
	runs map[string]*pipeline.Pipeline
}

// NewPipelineService creates a pipeline service.
func NewPipelineService(
	orchestrator *pipeline.Orchestrator,
	checkpoints pipeline.CheckpointStore,
	stages StageFactory,
	defaults config.PipelineConfig,
) *PipelineService {
	return &PipelineService{
		orchestrator: orchestrator,
		checkpoints:  checkpoints,
		stages:       stages,
		defaults:     defaults,
		logger:       slog.Default(),
		runs:         make(map[string]*pipeline.Pipeline),
	}
}

// WithLogger sets the logger for the service.
func (s *PipelineService) WithLogger(logger *slog.Logger) *PipelineService {
	s.logger = logger
	return s
}

// Process validates the request, constructs a pipeline, and starts driving
// it on a background goroutine. It returns as soon as the pipeline is
// registered; progress is observable through Status and the notifier.
func (s *PipelineService) Process(ctx context.Context, req ProcessRequest) (*Submission, error) {
	if strings.TrimSpace(req.VideoPath) == "" {
		return nil, fmt.Errorf("%w: video_path is required", core.ErrInvalidConfiguration)
	}

	cfg := s.buildConfiguration(req)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := pipeline.NewPipeline(models.NewVideoID(), cfg, s.stages())
	pipelineID := p.ID().String()

	s.mu.Lock()
	s.runs[pipelineID] = p
	s.mu.Unlock()

	s.logger.Info("accepted processing request",
		"pipeline_id", pipelineID,
		"video_id", p.VideoID().String(),
		"video_path", req.VideoPath,
		"model_version", cfg.ModelVersion,
	)

	go func() {
		// The run outlives the HTTP request; only its values are carried over.
		runCtx := context.WithoutCancel(ctx)
		if err := s.orchestrator.Run(runCtx, p, req.VideoPath); err != nil {
			s.logger.Warn("pipeline run finished with error",
				"pipeline_id", pipelineID,
				"error", err,
			)
		}
	}()

	return &Submission{
		PipelineID: pipelineID,
		VideoID:    p.VideoID().String(),
		Status:     p.Status(),
	}, nil
}

// Status returns the current state of a pipeline, including pipelines that
// have already reached a terminal state in this process.
func (s *PipelineService) Status(pipelineID string) (pipeline.StatusView, error) {
	if view, ok := s.orchestrator.GetPipelineStatus(pipelineID); ok {
		return view, nil
	}

	s.mu.Lock()
	p, ok := s.runs[pipelineID]
	s.mu.Unlock()
	if !ok {
		return pipeline.StatusView{}, fmt.Errorf("%w: %s", pipeline.ErrPipelineNotFound, pipelineID)
	}
	return p.StatusView(), nil
}

// Cancel cancels an actively running pipeline.
func (s *PipelineService) Cancel(pipelineID, reason string) error {
	if reason == "" {
		reason = "cancelled by user"
	}
	return s.orchestrator.CancelPipeline(pipelineID, reason)
}

// Resume restores a pipeline from its checkpoint and continues it on a
// background goroutine. The checkpoint load happens synchronously so a
// missing pipeline is reported immediately.
func (s *PipelineService) Resume(ctx context.Context, pipelineID string) (*Submission, error) {
	if _, active := s.orchestrator.GetPipelineStatus(pipelineID); active {
		return nil, fmt.Errorf("%w: pipeline %s is already running", core.ErrInvalidState, pipelineID)
	}

	snap, err := s.checkpoints.Load(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: no checkpoint for %s", pipeline.ErrPipelineNotFound, pipelineID)
	}

	p, err := pipeline.Restore(snap, s.stages())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.runs[pipelineID] = p
	s.mu.Unlock()

	s.logger.Info("resuming pipeline",
		"pipeline_id", pipelineID,
		"video_id", p.VideoID().String(),
		"current_stage_index", p.CurrentStageIndex(),
	)

	go func() {
		runCtx := context.WithoutCancel(ctx)
		if err := s.orchestrator.ResumePipeline(runCtx, p); err != nil {
			s.logger.Warn("pipeline resume finished with error",
				"pipeline_id", pipelineID,
				"error", err,
			)
		}
	}()

	return &Submission{
		PipelineID: pipelineID,
		VideoID:    p.VideoID().String(),
		Status:     p.Status(),
	}, nil
}

// ActivePipelines returns the IDs of pipelines currently being driven.
func (s *PipelineService) ActivePipelines() []string {
	return s.orchestrator.ActivePipelines()
}

// Checkpoints lists the pipeline IDs with a stored checkpoint.
func (s *PipelineService) Checkpoints(ctx context.Context) ([]string, error) {
	return s.checkpoints.List(ctx)
}

// buildConfiguration merges the request over the service defaults.
func (s *PipelineService) buildConfiguration(req ProcessRequest) core.Configuration {
	cfg := core.Configuration{
		ModelVersion:      s.defaults.ModelVersion,
		BatchSize:         s.defaults.BatchSize,
		GPUEnabled:        s.defaults.GPUEnabled,
		CheckpointEnabled: s.defaults.CheckpointEnabled,
		MaxRetries:        s.defaults.MaxRetries,
		TimeoutSeconds:    int(s.defaults.Timeout.Seconds()),
		StageConfigs:      s.defaults.StageConfigs,
	}
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = core.DefaultModelVersion
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = core.DefaultBatchSize
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = core.DefaultTimeoutSeconds
	}

	if req.ModelVersion != "" {
		cfg.ModelVersion = req.ModelVersion
	}
	if req.BatchSize != nil {
		cfg.BatchSize = *req.BatchSize
	}
	if req.GPUEnabled != nil {
		cfg.GPUEnabled = *req.GPUEnabled
	}
	if req.CheckpointEnabled != nil {
		cfg.CheckpointEnabled = *req.CheckpointEnabled
	}
	if req.MaxRetries != nil {
		cfg.MaxRetries = *req.MaxRetries
	}
	if req.TimeoutSeconds != nil {
		cfg.TimeoutSeconds = *req.TimeoutSeconds
	}
	if len(req.StageConfigs) > 0 {
		merged := make(map[string]map[string]any, len(cfg.StageConfigs)+len(req.StageConfigs))
		for name, sc := range cfg.StageConfigs {
			merged[name] = sc
		}
		for name, sc := range req.StageConfigs {
			merged[name] = sc
		}
		cfg.StageConfigs = merged
	}
	return cfg
}
