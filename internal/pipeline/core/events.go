package core

import (
	"time"

	"github.com/google/uuid"
)

// Event type names as they appear on the wire.
const (
	EventPipelineStarted   = "PipelineStarted"
	EventStageCompleted    = "StageCompleted"
	EventStageFailed       = "StageFailed"
	EventPipelineCompleted = "PipelineCompleted"
	EventPipelineCancelled = "PipelineCancelled"
)

// eventSchemaVersion is the wire schema version of all events.
const eventSchemaVersion = 1

// DomainEvent records a state transition of a pipeline aggregate. Events are
// immutable once recorded and are published in the order they occurred.
type DomainEvent struct {
	// EventID uniquely identifies this event instance.
	EventID string `json:"event_id"`
	// EventType is one of the Event* constants.
	EventType string `json:"event_type"`
	// AggregateID is the pipeline ID the event belongs to. Used as the
	// partition key so per-pipeline ordering is preserved on the bus.
	AggregateID string `json:"aggregate_id"`
	// Version is the wire schema version.
	Version int `json:"version"`
	// OccurredOn is when the transition happened, UTC.
	OccurredOn time.Time `json:"occurred_on"`
	// CorrelationID ties the event to the request that caused it.
	CorrelationID string `json:"correlation_id,omitempty"`
	// CausationID is the event ID of the event that caused this one.
	CausationID string `json:"causation_id,omitempty"`
	// Payload carries the event-type-specific fields.
	Payload EventPayload `json:"payload"`
}

// EventPayload is the type-specific body of a DomainEvent.
type EventPayload interface {
	// EventType returns the wire name of the event this payload belongs to.
	EventType() string

	// fields returns the payload's wire keys, merged into the envelope by
	// Serialize.
	fields() map[string]any
}

func newEvent(aggregateID string, payload EventPayload) *DomainEvent {
	return &DomainEvent{
		EventID:     uuid.NewString(),
		EventType:   payload.EventType(),
		AggregateID: aggregateID,
		Version:     eventSchemaVersion,
		OccurredOn:  time.Now().UTC(),
		Payload:     payload,
	}
}

// Serialize flattens the event into its wire form: the envelope keys plus
// the payload keys in one snake_case map.
func (e *DomainEvent) Serialize() map[string]any {
	out := map[string]any{
		"event_id":     e.EventID,
		"event_type":   e.EventType,
		"aggregate_id": e.AggregateID,
		"version":      e.Version,
		"occurred_on":  e.OccurredOn.Format(time.RFC3339Nano),
	}
	if e.CorrelationID != "" {
		out["correlation_id"] = e.CorrelationID
	}
	if e.CausationID != "" {
		out["causation_id"] = e.CausationID
	}
	if e.Payload != nil {
		for k, v := range e.Payload.fields() {
			out[k] = v
		}
	}
	return out
}

// PipelineStartedPayload is emitted when a pipeline leaves PENDING.
type PipelineStartedPayload struct {
	PipelineID    string        `json:"pipeline_id"`
	VideoID       string        `json:"video_id"`
	TotalStages   int           `json:"total_stages"`
	Configuration Configuration `json:"configuration"`
}

// EventType implements EventPayload.
func (PipelineStartedPayload) EventType() string { return EventPipelineStarted }

func (p PipelineStartedPayload) fields() map[string]any {
	return map[string]any{
		"pipeline_id":  p.PipelineID,
		"video_id":     p.VideoID,
		"total_stages": p.TotalStages,
		"configuration": map[string]any{
			"model_version":      p.Configuration.ModelVersion,
			"batch_size":         p.Configuration.BatchSize,
			"gpu_enabled":        p.Configuration.GPUEnabled,
			"checkpoint_enabled": p.Configuration.CheckpointEnabled,
			"max_retries":        p.Configuration.MaxRetries,
			"timeout_seconds":    p.Configuration.TimeoutSeconds,
		},
	}
}

// StageCompletedPayload is emitted when a stage result is recorded.
type StageCompletedPayload struct {
	PipelineID         string      `json:"pipeline_id"`
	VideoID            string      `json:"video_id"`
	StageName          string      `json:"stage_name"`
	ProgressPercentage float64     `json:"progress_percentage"`
	Result             StageResult `json:"result"`
}

// EventType implements EventPayload.
func (StageCompletedPayload) EventType() string { return EventStageCompleted }

func (p StageCompletedPayload) fields() map[string]any {
	return map[string]any{
		"pipeline_id":         p.PipelineID,
		"video_id":            p.VideoID,
		"stage_name":          p.StageName,
		"progress_percentage": p.ProgressPercentage,
		"result": map[string]any{
			"stage_name":         p.Result.StageName,
			"status":             p.Result.Status,
			"processing_time_ms": p.Result.ProcessingTimeMs,
			"metadata":           p.Result.Metadata,
			"error_message":      p.Result.ErrorMessage,
		},
	}
}

// StageFailedPayload is emitted on each failed stage attempt.
type StageFailedPayload struct {
	PipelineID   string `json:"pipeline_id"`
	VideoID      string `json:"video_id"`
	StageName    string `json:"stage_name"`
	ErrorMessage string `json:"error_message"`
	RetryCount   int    `json:"retry_count"`
	MaxRetries   int    `json:"max_retries"`
	WillRetry    bool   `json:"will_retry"`
}

// EventType implements EventPayload.
func (StageFailedPayload) EventType() string { return EventStageFailed }

func (p StageFailedPayload) fields() map[string]any {
	return map[string]any{
		"pipeline_id":   p.PipelineID,
		"video_id":      p.VideoID,
		"stage_name":    p.StageName,
		"error_message": p.ErrorMessage,
		"retry_count":   p.RetryCount,
		"max_retries":   p.MaxRetries,
		"will_retry":    p.WillRetry,
	}
}

// PipelineCompletedPayload is emitted when every stage has completed.
type PipelineCompletedPayload struct {
	PipelineID            string                 `json:"pipeline_id"`
	VideoID               string                 `json:"video_id"`
	TotalProcessingTimeMs int64                  `json:"total_processing_time_ms"`
	StageResults          map[string]StageResult `json:"stage_results"`
}

// EventType implements EventPayload.
func (PipelineCompletedPayload) EventType() string { return EventPipelineCompleted }

func (p PipelineCompletedPayload) fields() map[string]any {
	results := make(map[string]any, len(p.StageResults))
	for name, r := range p.StageResults {
		results[name] = map[string]any{
			"status":             r.Status,
			"processing_time_ms": r.ProcessingTimeMs,
			"metadata":           r.Metadata,
		}
	}
	return map[string]any{
		"pipeline_id":              p.PipelineID,
		"video_id":                 p.VideoID,
		"total_processing_time_ms": p.TotalProcessingTimeMs,
		"stage_results":            results,
	}
}

// PipelineCancelledPayload is emitted when a pipeline is cancelled.
type PipelineCancelledPayload struct {
	PipelineID string `json:"pipeline_id"`
	VideoID    string `json:"video_id"`
	Reason     string `json:"reason"`
}

// EventType implements EventPayload.
func (PipelineCancelledPayload) EventType() string { return EventPipelineCancelled }

func (p PipelineCancelledPayload) fields() map[string]any {
	return map[string]any{
		"pipeline_id": p.PipelineID,
		"video_id":    p.VideoID,
		"reason":      p.Reason,
	}
}
