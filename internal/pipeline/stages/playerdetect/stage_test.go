package playerdetect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
	"github.com/matchvision/vidpipe/internal/pipeline/stages/videodecode"
)

func TestStage(t *testing.T) {
	stage := New(nil)

	t.Run("depends on video decoding", func(t *testing.T) {
		assert.Equal(t, StageName, stage.Name())
		assert.Equal(t, []string{videodecode.StageName}, stage.Dependencies())
	})

	t.Run("detects players across decoded frames", func(t *testing.T) {
		result, err := stage.Process(context.Background(),
			map[string]any{"frames": 100, "decoded_frames_ref": "/videos/match.mp4#frames"},
			map[string]any{})
		require.NoError(t, err)
		require.Equal(t, core.StageCompleted, result.Status)

		assert.Equal(t, 2200, result.OutputData["player_detections"])
		assert.Equal(t, "/videos/match.mp4#frames/detections", result.OutputData["detections_ref"])
		assert.Equal(t, 100, result.CheckpointData["frames_processed"])
	})

	t.Run("accepts JSON-decoded frame counts", func(t *testing.T) {
		result, err := stage.Process(context.Background(),
			map[string]any{"frames": float64(10), "decoded_frames_ref": "r"},
			map[string]any{})
		require.NoError(t, err)
		require.Equal(t, core.StageCompleted, result.Status)
		assert.Equal(t, 220, result.OutputData["player_detections"])
	})

	t.Run("fails without decode output", func(t *testing.T) {
		result, err := stage.Process(context.Background(), map[string]any{}, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, core.StageFailed, result.Status)
	})

	t.Run("rejects an out-of-range threshold", func(t *testing.T) {
		result, err := stage.Process(context.Background(),
			map[string]any{"frames": 10, "decoded_frames_ref": "r"},
			map[string]any{"confidence_threshold": 1.5})
		require.NoError(t, err)
		assert.Equal(t, core.StageFailed, result.Status)
	})
}
