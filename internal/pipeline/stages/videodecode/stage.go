// Package videodecode implements the video decoding pipeline stage.
//
// The stage body is a lightweight simulation: it derives deterministic frame
// counts from the stage configuration instead of shelling out to a real
// decoder, while honouring the stage contract (required inputs, output keys,
// checkpoint fragment) expected by the downstream detection stages.
package videodecode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
	"github.com/matchvision/vidpipe/internal/pipeline/shared"
)

// StageName is the unique identifier for this stage.
const StageName = "video_decoding"

const (
	defaultFPS             = 25.0
	defaultDurationSeconds = 60
	defaultSampleRate      = 1
)

// Stage decodes the input video into sampled frames.
type Stage struct {
	shared.BaseStage
	logger *slog.Logger
}

// New creates a new video decoding stage.
func New(logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stage{
		BaseStage: shared.NewBaseStage(StageName),
		logger:    logger.With("stage", StageName),
	}
	s.RequireInputs(core.InitialInputKey)
	return s
}

// Process implements core.Stage.
func (s *Stage) Process(ctx context.Context, input, config map[string]any) (*core.StageResult, error) {
	return s.Execute(ctx, input, func(ctx context.Context) (shared.Output, error) {
		videoPath, _ := input[core.InitialInputKey].(string)
		if videoPath == "" {
			return shared.Output{}, fmt.Errorf("empty %s", core.InitialInputKey)
		}

		sampleRate := shared.IntOption(config, "frame_sample_rate", defaultSampleRate)
		if sampleRate < 1 {
			return shared.Output{}, fmt.Errorf("frame_sample_rate must be positive, got %d", sampleRate)
		}
		fps := shared.FloatOption(config, "fps", defaultFPS)
		duration := shared.IntOption(config, "duration_seconds", defaultDurationSeconds)

		frames := int(fps) * duration / sampleRate
		s.logger.Debug("decoded video",
			"video_path", videoPath,
			"frames", frames,
			"sample_rate", sampleRate,
		)

		return shared.Output{
			Data: map[string]any{
				"frames":             frames,
				"fps":                fps,
				"duration_seconds":   duration,
				"decoded_frames_ref": videoPath + "#frames",
			},
			Metadata: map[string]any{
				"codec":             shared.StringOption(config, "codec", "h264"),
				"frame_sample_rate": sampleRate,
			},
			Checkpoint: map[string]any{
				"frames_decoded": frames,
			},
		}, nil
	})
}
