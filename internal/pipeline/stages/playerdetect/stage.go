// Package playerdetect implements the player detection pipeline stage.
package playerdetect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
	"github.com/matchvision/vidpipe/internal/pipeline/shared"
	"github.com/matchvision/vidpipe/internal/pipeline/stages/videodecode"
)

// StageName is the unique identifier for this stage.
const StageName = "player_detection"

const (
	defaultConfidenceThreshold = 0.5
	defaultPlayersPerFrame     = 22
)

// Stage runs a player detection model over decoded frames. Like the decode
// stage the body is a simulation, sized from the frame count the decode
// stage produced.
type Stage struct {
	shared.BaseStage
	logger *slog.Logger
}

// New creates a new player detection stage.
func New(logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stage{
		BaseStage: shared.NewBaseStage(StageName, videodecode.StageName),
		logger:    logger.With("stage", StageName),
	}
	s.RequireInputs("frames", "decoded_frames_ref")
	return s
}

// Process implements core.Stage.
func (s *Stage) Process(ctx context.Context, input, config map[string]any) (*core.StageResult, error) {
	return s.Execute(ctx, input, func(ctx context.Context) (shared.Output, error) {
		frames, ok := shared.IntValue(input, "frames")
		if !ok || frames < 0 {
			return shared.Output{}, fmt.Errorf("invalid frame count %v", input["frames"])
		}

		threshold := shared.FloatOption(config, "confidence_threshold", defaultConfidenceThreshold)
		if threshold < 0 || threshold > 1 {
			return shared.Output{}, fmt.Errorf("confidence_threshold must be in [0,1], got %v", threshold)
		}
		perFrame := shared.IntOption(config, "players_per_frame", defaultPlayersPerFrame)

		detections := frames * perFrame
		framesRef, _ := input["decoded_frames_ref"].(string)
		s.logger.Debug("detected players",
			"frames", frames,
			"detections", detections,
			"confidence_threshold", threshold,
		)

		return shared.Output{
			Data: map[string]any{
				"player_detections": detections,
				"players_tracked":   perFrame,
				"detections_ref":    framesRef + "/detections",
			},
			Metadata: map[string]any{
				"confidence_threshold": threshold,
			},
			Checkpoint: map[string]any{
				"frames_processed": frames,
			},
		}, nil
	})
}
