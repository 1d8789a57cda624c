package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchvision/vidpipe/internal/checkpoint"
	"github.com/matchvision/vidpipe/internal/config"
	"github.com/matchvision/vidpipe/internal/events"
	"github.com/matchvision/vidpipe/internal/models"
	"github.com/matchvision/vidpipe/internal/notifier"
	"github.com/matchvision/vidpipe/internal/pipeline"
	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

type serviceFixture struct {
	svc       *PipelineService
	publisher *events.InMemoryPublisher
	store     *checkpoint.MemoryStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewInMemoryPublisher()
	store := checkpoint.NewMemoryStore(time.Hour)
	orch := pipeline.NewOrchestrator(publisher, store, notifier.NewLoggingNotifier(logger), logger)

	defaults := config.PipelineConfig{
		ModelVersion:      "v1.0.0",
		BatchSize:         8,
		GPUEnabled:        true,
		CheckpointEnabled: true,
		MaxRetries:        3,
		Timeout:           time.Hour,
	}

	svc := NewPipelineService(orch, store, func() []pipeline.Stage {
		return pipeline.DefaultStages(logger)
	}, defaults).WithLogger(logger)

	return &serviceFixture{svc: svc, publisher: publisher, store: store}
}

func waitForStatus(t *testing.T, svc *PipelineService, pipelineID string, want core.Status) pipeline.StatusView {
	t.Helper()

	var view pipeline.StatusView
	require.Eventually(t, func() bool {
		v, err := svc.Status(pipelineID)
		if err != nil {
			return false
		}
		view = v
		return v.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return view
}

func TestPipelineServiceProcess(t *testing.T) {
	t.Run("runs a submission to completion", func(t *testing.T) {
		f := newServiceFixture(t)

		sub, err := f.svc.Process(context.Background(), ProcessRequest{VideoPath: "/videos/match.mp4"})
		require.NoError(t, err)
		require.NotEmpty(t, sub.PipelineID)
		require.NotEmpty(t, sub.VideoID)

		view := waitForStatus(t, f.svc, sub.PipelineID, core.StatusCompleted)
		assert.Equal(t, float64(100), view.ProgressPercentage)
		assert.Len(t, view.StageResults, 3)

		types := f.publisher.EventsOfAggregate(sub.PipelineID)
		require.NotEmpty(t, types)
		assert.Equal(t, core.EventPipelineStarted, types[0].EventType)
		assert.Equal(t, core.EventPipelineCompleted, types[len(types)-1].EventType)
	})

	t.Run("applies request overrides", func(t *testing.T) {
		f := newServiceFixture(t)

		batch := 16
		gpu := false
		sub, err := f.svc.Process(context.Background(), ProcessRequest{
			VideoPath:    "/videos/match.mp4",
			ModelVersion: "v2.1.0",
			BatchSize:    &batch,
			GPUEnabled:   &gpu,
		})
		require.NoError(t, err)

		waitForStatus(t, f.svc, sub.PipelineID, core.StatusCompleted)

		started := f.publisher.EventsOfType(core.EventPipelineStarted)
		require.Len(t, started, 1)
		payload := started[0].Serialize()
		cfg, ok := payload["configuration"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "v2.1.0", cfg["model_version"])
		assert.Equal(t, 16, cfg["batch_size"])
		assert.Equal(t, false, cfg["gpu_enabled"])
	})

	t.Run("rejects missing video path", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.svc.Process(context.Background(), ProcessRequest{VideoPath: "   "})
		require.ErrorIs(t, err, core.ErrInvalidConfiguration)
	})

	t.Run("rejects invalid overrides", func(t *testing.T) {
		f := newServiceFixture(t)

		batch := 0
		_, err := f.svc.Process(context.Background(), ProcessRequest{
			VideoPath: "/videos/match.mp4",
			BatchSize: &batch,
		})
		require.ErrorIs(t, err, core.ErrInvalidConfiguration)
	})
}

func TestPipelineServiceStatus(t *testing.T) {
	t.Run("unknown pipeline", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.svc.Status("missing")
		require.ErrorIs(t, err, pipeline.ErrPipelineNotFound)
	})

	t.Run("terminal pipelines stay queryable", func(t *testing.T) {
		f := newServiceFixture(t)

		sub, err := f.svc.Process(context.Background(), ProcessRequest{VideoPath: "/videos/match.mp4"})
		require.NoError(t, err)
		waitForStatus(t, f.svc, sub.PipelineID, core.StatusCompleted)

		// The orchestrator has released the run; the service still answers.
		require.Eventually(t, func() bool {
			return len(f.svc.ActivePipelines()) == 0
		}, 2*time.Second, 10*time.Millisecond)

		view, err := f.svc.Status(sub.PipelineID)
		require.NoError(t, err)
		assert.Equal(t, core.StatusCompleted, view.Status)
	})
}

func TestPipelineServiceCancel(t *testing.T) {
	f := newServiceFixture(t)

	err := f.svc.Cancel("missing", "changed my mind")
	require.ErrorIs(t, err, pipeline.ErrPipelineNotFound)
}

func TestPipelineServiceResume(t *testing.T) {
	t.Run("without checkpoint", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.svc.Resume(context.Background(), "missing")
		require.ErrorIs(t, err, pipeline.ErrPipelineNotFound)
	})

	t.Run("continues from the checkpointed stage", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		// Simulate an earlier process that checkpointed after decoding and
		// then went away.
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		p := pipeline.NewPipeline(models.NewVideoID(), core.DefaultConfiguration(), pipeline.DefaultStages(logger))
		require.NoError(t, p.Start())
		decodeOut := map[string]any{
			"frames":             1500,
			"fps":                25.0,
			"duration_seconds":   60,
			"decoded_frames_ref": "/videos/match.mp4#frames",
		}
		require.NoError(t, p.CompleteStage(pipeline.StageVideoDecoding,
			core.CompletedResult(pipeline.StageVideoDecoding, decodeOut, nil, 40)))
		p.DrainEvents()
		pipelineID := p.ID().String()
		require.NoError(t, f.store.Save(ctx, pipelineID, p.Snapshot()))

		sub, err := f.svc.Resume(ctx, pipelineID)
		require.NoError(t, err)
		assert.Equal(t, pipelineID, sub.PipelineID)

		view := waitForStatus(t, f.svc, pipelineID, core.StatusCompleted)
		assert.Len(t, view.StageResults, 3)

		// Only the remaining stages ran: no second PipelineStarted.
		assert.Empty(t, f.publisher.EventsOfType(core.EventPipelineStarted))
		assert.Len(t, f.publisher.EventsOfType(core.EventPipelineCompleted), 1)
	})
}

func TestBuildConfiguration(t *testing.T) {
	f := newServiceFixture(t)

	t.Run("defaults only", func(t *testing.T) {
		cfg := f.svc.buildConfiguration(ProcessRequest{VideoPath: "/v.mp4"})
		assert.Equal(t, "v1.0.0", cfg.ModelVersion)
		assert.Equal(t, 8, cfg.BatchSize)
		assert.True(t, cfg.GPUEnabled)
		assert.Equal(t, 3600, cfg.TimeoutSeconds)
	})

	t.Run("request stage configs win over defaults", func(t *testing.T) {
		f.svc.defaults.StageConfigs = map[string]map[string]any{
			pipeline.StageVideoDecoding:   {"fps": 30},
			pipeline.StagePlayerDetection: {"confidence_threshold": 0.6},
		}
		cfg := f.svc.buildConfiguration(ProcessRequest{
			VideoPath: "/v.mp4",
			StageConfigs: map[string]map[string]any{
				pipeline.StageVideoDecoding: {"fps": 50},
			},
		})
		assert.Equal(t, 50, cfg.StageConfigs[pipeline.StageVideoDecoding]["fps"])
		assert.Equal(t, 0.6, cfg.StageConfigs[pipeline.StagePlayerDetection]["confidence_threshold"])
	})
}
