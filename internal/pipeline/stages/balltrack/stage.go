// Package balltrack implements the ball tracking pipeline stage.
package balltrack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
	"github.com/matchvision/vidpipe/internal/pipeline/shared"
	"github.com/matchvision/vidpipe/internal/pipeline/stages/playerdetect"
	"github.com/matchvision/vidpipe/internal/pipeline/stages/videodecode"
)

// StageName is the unique identifier for this stage.
const StageName = "ball_tracking"

const (
	defaultSmoothingWindow = 5
	trackingConfidence     = 0.92
)

// Stage reconstructs the ball trajectory from decoded frames and player
// detections.
type Stage struct {
	shared.BaseStage
	logger *slog.Logger
}

// New creates a new ball tracking stage.
func New(logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stage{
		BaseStage: shared.NewBaseStage(StageName, videodecode.StageName, playerdetect.StageName),
		logger:    logger.With("stage", StageName),
	}
	s.RequireInputs("frames", "player_detections")
	return s
}

// Process implements core.Stage.
func (s *Stage) Process(ctx context.Context, input, config map[string]any) (*core.StageResult, error) {
	return s.Execute(ctx, input, func(ctx context.Context) (shared.Output, error) {
		frames, ok := shared.IntValue(input, "frames")
		if !ok || frames < 0 {
			return shared.Output{}, fmt.Errorf("invalid frame count %v", input["frames"])
		}

		window := shared.IntOption(config, "smoothing_window", defaultSmoothingWindow)
		if window < 1 {
			return shared.Output{}, fmt.Errorf("smoothing_window must be positive, got %d", window)
		}

		// One smoothed trajectory point per window of frames.
		points := frames / window
		s.logger.Debug("tracked ball",
			"frames", frames,
			"trajectory_points", points,
			"smoothing_window", window,
		)

		return shared.Output{
			Data: map[string]any{
				"trajectory_points":   points,
				"tracking_confidence": trackingConfidence,
			},
			Metadata: map[string]any{
				"smoothing_window": window,
			},
			Checkpoint: map[string]any{
				"trajectory_points": points,
			},
		}, nil
	})
}
