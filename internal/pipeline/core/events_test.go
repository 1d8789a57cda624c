package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainEventSerialize(t *testing.T) {
	t.Run("carries the envelope keys", func(t *testing.T) {
		event := newEvent("pipe-1", PipelineCancelledPayload{
			PipelineID: "pipe-1",
			VideoID:    "vid-1",
			Reason:     "user",
		})

		wire := event.Serialize()
		assert.Equal(t, event.EventID, wire["event_id"])
		assert.Equal(t, EventPipelineCancelled, wire["event_type"])
		assert.Equal(t, "pipe-1", wire["aggregate_id"])
		assert.Equal(t, 1, wire["version"])
		assert.Equal(t, "user", wire["reason"])

		occurredOn, err := time.Parse(time.RFC3339Nano, wire["occurred_on"].(string))
		require.NoError(t, err)
		assert.Equal(t, time.UTC, occurredOn.Location())
	})

	t.Run("omits correlation ids when unset", func(t *testing.T) {
		event := newEvent("pipe-1", PipelineCancelledPayload{Reason: "user"})
		wire := event.Serialize()
		assert.NotContains(t, wire, "correlation_id")
		assert.NotContains(t, wire, "causation_id")

		event.CorrelationID = "req-7"
		event.CausationID = "evt-6"
		wire = event.Serialize()
		assert.Equal(t, "req-7", wire["correlation_id"])
		assert.Equal(t, "evt-6", wire["causation_id"])
	})

	t.Run("flattens the started payload", func(t *testing.T) {
		cfg := DefaultConfiguration()
		event := newEvent("pipe-1", PipelineStartedPayload{
			PipelineID:    "pipe-1",
			VideoID:       "vid-1",
			TotalStages:   3,
			Configuration: cfg,
		})

		wire := event.Serialize()
		assert.Equal(t, 3, wire["total_stages"])

		config, ok := wire["configuration"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, cfg.ModelVersion, config["model_version"])
		assert.Equal(t, cfg.BatchSize, config["batch_size"])
		assert.Equal(t, cfg.MaxRetries, config["max_retries"])
		assert.NotContains(t, config, "stage_configs")
	})

	t.Run("flattens the stage failed payload", func(t *testing.T) {
		event := newEvent("pipe-1", StageFailedPayload{
			PipelineID:   "pipe-1",
			VideoID:      "vid-1",
			StageName:    "ball_tracking",
			ErrorMessage: "boom",
			RetryCount:   2,
			MaxRetries:   3,
			WillRetry:    true,
		})

		wire := event.Serialize()
		assert.Equal(t, "ball_tracking", wire["stage_name"])
		assert.Equal(t, "boom", wire["error_message"])
		assert.Equal(t, 2, wire["retry_count"])
		assert.Equal(t, 3, wire["max_retries"])
		assert.Equal(t, true, wire["will_retry"])
	})

	t.Run("nests the stage result in completed payloads", func(t *testing.T) {
		event := newEvent("pipe-1", StageCompletedPayload{
			PipelineID:         "pipe-1",
			VideoID:            "vid-1",
			StageName:          "video_decoding",
			ProgressPercentage: 33.3,
			Result:             CompletedResult("video_decoding", map[string]any{"frames": 100}, map[string]any{"codec": "h264"}, 120),
		})

		wire := event.Serialize()
		result, ok := wire["result"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "video_decoding", result["stage_name"])
		assert.Equal(t, StageCompleted, result["status"])
		assert.Equal(t, int64(120), result["processing_time_ms"])
		// Output blobs stay out of the event body; consumers read them from
		// the checkpoint.
		assert.NotContains(t, result, "output_data")
	})

	t.Run("summarizes stage results in pipeline completed", func(t *testing.T) {
		event := newEvent("pipe-1", PipelineCompletedPayload{
			PipelineID:            "pipe-1",
			VideoID:               "vid-1",
			TotalProcessingTimeMs: 30,
			StageResults: map[string]StageResult{
				"a": CompletedResult("a", nil, nil, 10),
			},
		})

		wire := event.Serialize()
		assert.Equal(t, int64(30), wire["total_processing_time_ms"])
		results, ok := wire["stage_results"].(map[string]any)
		require.True(t, ok)
		entry := results["a"].(map[string]any)
		assert.Equal(t, StageCompleted, entry["status"])
		assert.Equal(t, int64(10), entry["processing_time_ms"])
	})
}
