package videodecode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

func TestStage(t *testing.T) {
	stage := New(nil)

	t.Run("declares its contract", func(t *testing.T) {
		assert.Equal(t, StageName, stage.Name())
		assert.Empty(t, stage.Dependencies())
	})

	t.Run("decodes with defaults", func(t *testing.T) {
		result, err := stage.Process(context.Background(),
			map[string]any{core.InitialInputKey: "/videos/match.mp4"},
			map[string]any{})
		require.NoError(t, err)
		require.Equal(t, core.StageCompleted, result.Status)

		assert.Equal(t, 1500, result.OutputData["frames"])
		assert.Equal(t, "/videos/match.mp4#frames", result.OutputData["decoded_frames_ref"])
		assert.Equal(t, "h264", result.Metadata["codec"])
		assert.Equal(t, 1500, result.CheckpointData["frames_decoded"])
	})

	t.Run("honours the sample rate", func(t *testing.T) {
		result, err := stage.Process(context.Background(),
			map[string]any{core.InitialInputKey: "/videos/match.mp4"},
			map[string]any{"frame_sample_rate": 5})
		require.NoError(t, err)
		assert.Equal(t, 300, result.OutputData["frames"])
	})

	t.Run("fails without a video path", func(t *testing.T) {
		result, err := stage.Process(context.Background(), map[string]any{}, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, core.StageFailed, result.Status)
	})

	t.Run("rejects a non-positive sample rate", func(t *testing.T) {
		result, err := stage.Process(context.Background(),
			map[string]any{core.InitialInputKey: "/videos/match.mp4"},
			map[string]any{"frame_sample_rate": 0})
		require.NoError(t, err)
		assert.Equal(t, core.StageFailed, result.Status)
		assert.Contains(t, result.ErrorMessage, "frame_sample_rate")
	})
}
