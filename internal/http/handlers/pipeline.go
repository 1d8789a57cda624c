// Package handlers provides HTTP API handlers for vidpipe.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/matchvision/vidpipe/internal/pipeline"
	"github.com/matchvision/vidpipe/internal/service"
)

// PipelineHandler handles pipeline submission, status, cancel and resume
// endpoints.
type PipelineHandler struct {
	service *service.PipelineService
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(svc *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{service: svc}
}

// ProcessVideoRequest is the request body for submitting a video.
// Optional fields fall back to the server's configured defaults.
type ProcessVideoRequest struct {
	VideoPath         string                    `json:"video_path" doc:"Path or URI of the video to process" minLength:"1" maxLength:"2048"`
	ModelVersion      string                    `json:"model_version,omitempty" doc:"Model version to run, e.g. v2.1.0" maxLength:"64"`
	BatchSize         *int                      `json:"batch_size,omitempty" doc:"Frames per inference batch" minimum:"1"`
	GPUEnabled        *bool                     `json:"gpu_enabled,omitempty" doc:"Run inference stages on GPU"`
	CheckpointEnabled *bool                     `json:"checkpoint_enabled,omitempty" doc:"Persist a checkpoint after each stage"`
	MaxRetries        *int                      `json:"max_retries,omitempty" doc:"Retries per stage on transient failure" minimum:"0"`
	TimeoutSeconds    *int                      `json:"timeout_seconds,omitempty" doc:"Total pipeline timeout in seconds" minimum:"1"`
	StageConfigs      map[string]map[string]any `json:"stage_configs,omitempty" doc:"Per-stage parameter overrides keyed by stage name"`
}

// ProcessVideoInput is the input for the process-video endpoint.
type ProcessVideoInput struct {
	Body ProcessVideoRequest
}

// SubmissionResponse acknowledges an accepted pipeline run.
type SubmissionResponse struct {
	PipelineID string `json:"pipeline_id"`
	VideoID    string `json:"video_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// ProcessVideoOutput is the output for the process-video endpoint.
type ProcessVideoOutput struct {
	Body SubmissionResponse
}

// PipelineStatusInput is the input for the pipeline status endpoint.
type PipelineStatusInput struct {
	PipelineID string `path:"pipeline_id" doc:"Pipeline identifier returned at submission"`
}

// PipelineStatusOutput is the output for the pipeline status endpoint.
type PipelineStatusOutput struct {
	Body pipeline.StatusView
}

// CancelPipelineInput is the input for the cancel endpoint.
type CancelPipelineInput struct {
	PipelineID string `path:"pipeline_id" doc:"Pipeline identifier returned at submission"`
	Body       struct {
		Reason string `json:"reason,omitempty" doc:"Reason recorded on the cancellation" maxLength:"512"`
	} `required:"false"`
}

// CancelPipelineOutput is the output for the cancel endpoint.
type CancelPipelineOutput struct {
	Body SubmissionResponse
}

// ResumePipelineInput is the input for the resume endpoint.
type ResumePipelineInput struct {
	PipelineID string `path:"pipeline_id" doc:"Pipeline identifier returned at submission"`
}

// ResumePipelineOutput is the output for the resume endpoint.
type ResumePipelineOutput struct {
	Body SubmissionResponse
}

// ListPipelinesBody is the response body for listing pipelines.
type ListPipelinesBody struct {
	Active       []string `json:"active"`
	Checkpointed []string `json:"checkpointed"`
}

// ListPipelinesOutput is the output for listing pipelines.
type ListPipelinesOutput struct {
	Body ListPipelinesBody
}

// Register registers the pipeline routes with the API.
func (h *PipelineHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "processVideo",
		Method:        http.MethodPost,
		Path:          "/api/v1/process-video",
		Summary:       "Submit a video for processing",
		Description:   "Starts the decode, player detection and ball tracking pipeline for a video. Processing is asynchronous; poll the status endpoint or subscribe to the progress WebSocket.",
		Tags:          []string{"Pipelines"},
		DefaultStatus: http.StatusAccepted,
	}, h.ProcessVideo)

	huma.Register(api, huma.Operation{
		OperationID: "getPipelineStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/pipeline/{pipeline_id}/status",
		Summary:     "Get pipeline status",
		Tags:        []string{"Pipelines"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "cancelPipeline",
		Method:      http.MethodPost,
		Path:        "/api/v1/pipeline/{pipeline_id}/cancel",
		Summary:     "Cancel a running pipeline",
		Tags:        []string{"Pipelines"},
	}, h.Cancel)

	huma.Register(api, huma.Operation{
		OperationID:   "resumePipeline",
		Method:        http.MethodPost,
		Path:          "/api/v1/pipeline/{pipeline_id}/resume",
		Summary:       "Resume a pipeline from its checkpoint",
		Description:   "Restores the pipeline from its last checkpoint and continues with the remaining stages.",
		Tags:          []string{"Pipelines"},
		DefaultStatus: http.StatusAccepted,
	}, h.Resume)

	huma.Register(api, huma.Operation{
		OperationID: "listPipelines",
		Method:      http.MethodGet,
		Path:        "/api/v1/pipelines",
		Summary:     "List active and checkpointed pipelines",
		Tags:        []string{"Pipelines"},
	}, h.List)
}

// ProcessVideo accepts a processing request and starts the pipeline.
func (h *PipelineHandler) ProcessVideo(ctx context.Context, input *ProcessVideoInput) (*ProcessVideoOutput, error) {
	sub, err := h.service.Process(ctx, service.ProcessRequest{
		VideoPath:         input.Body.VideoPath,
		ModelVersion:      input.Body.ModelVersion,
		BatchSize:         input.Body.BatchSize,
		GPUEnabled:        input.Body.GPUEnabled,
		CheckpointEnabled: input.Body.CheckpointEnabled,
		MaxRetries:        input.Body.MaxRetries,
		TimeoutSeconds:    input.Body.TimeoutSeconds,
		StageConfigs:      input.Body.StageConfigs,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}

	return &ProcessVideoOutput{
		Body: SubmissionResponse{
			PipelineID: sub.PipelineID,
			VideoID:    sub.VideoID,
			Status:     string(sub.Status),
			Message:    "processing started",
		},
	}, nil
}

// GetStatus returns the current state of a pipeline.
func (h *PipelineHandler) GetStatus(ctx context.Context, input *PipelineStatusInput) (*PipelineStatusOutput, error) {
	view, err := h.service.Status(input.PipelineID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &PipelineStatusOutput{Body: view}, nil
}

// Cancel cancels an actively running pipeline.
func (h *PipelineHandler) Cancel(ctx context.Context, input *CancelPipelineInput) (*CancelPipelineOutput, error) {
	if err := h.service.Cancel(input.PipelineID, input.Body.Reason); err != nil {
		return nil, mapServiceError(err)
	}

	view, err := h.service.Status(input.PipelineID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	return &CancelPipelineOutput{
		Body: SubmissionResponse{
			PipelineID: view.PipelineID,
			VideoID:    view.VideoID,
			Status:     string(view.Status),
			Message:    "cancellation requested",
		},
	}, nil
}

// Resume restores a pipeline from its checkpoint and continues it.
func (h *PipelineHandler) Resume(ctx context.Context, input *ResumePipelineInput) (*ResumePipelineOutput, error) {
	sub, err := h.service.Resume(ctx, input.PipelineID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	return &ResumePipelineOutput{
		Body: SubmissionResponse{
			PipelineID: sub.PipelineID,
			VideoID:    sub.VideoID,
			Status:     string(sub.Status),
			Message:    "resume started",
		},
	}, nil
}

// List returns the IDs of running pipelines and stored checkpoints.
func (h *PipelineHandler) List(ctx context.Context, _ *struct{}) (*ListPipelinesOutput, error) {
	checkpointed, err := h.service.Checkpoints(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}

	body := ListPipelinesBody{
		Active:       h.service.ActivePipelines(),
		Checkpointed: checkpointed,
	}
	if body.Active == nil {
		body.Active = []string{}
	}
	if body.Checkpointed == nil {
		body.Checkpointed = []string{}
	}
	return &ListPipelinesOutput{Body: body}, nil
}

// mapServiceError translates domain errors into HTTP status errors.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrPipelineNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, pipeline.ErrInvalidConfiguration):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, pipeline.ErrInvalidState):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
