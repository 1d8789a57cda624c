package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matchvision/vidpipe/internal/events"
	"github.com/matchvision/vidpipe/internal/notifier"
	"github.com/matchvision/vidpipe/internal/pipeline"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <pipeline-id>",
	Short: "Resume a checkpointed pipeline",
	Long: `Resume a pipeline from its last checkpoint and drive it to completion.

The command blocks until the pipeline reaches a terminal state. It uses the
same checkpoint and event backends as the server, so a pipeline interrupted
by a crash or deploy can be finished from the command line.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	store, _, cleanup, err := buildCheckpointStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing checkpoint store: %w", err)
	}
	defer cleanup()

	var publisher pipeline.EventPublisher
	if cfg.Events.Backend == "kafka" {
		kp := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Events.Brokers,
			TopicPrefix:  cfg.Events.TopicPrefix,
			BatchSize:    cfg.Events.BatchSize,
			BatchBytes:   cfg.Events.BatchBytes.Int64(),
			BatchTimeout: cfg.Events.BatchTimeout,
		}, logger)
		defer kp.Close()
		publisher = kp
	} else {
		publisher = events.NewInMemoryPublisher()
	}

	orchestrator := pipeline.NewOrchestrator(publisher, store,
		notifier.NewLoggingNotifier(logger), logger)

	// Ctrl-C cancels the run at the next stage boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("resuming pipeline", slog.String("pipeline_id", pipelineID))

	p, err := orchestrator.Resume(ctx, pipelineID, pipeline.DefaultStages(logger))
	if err != nil {
		return fmt.Errorf("resuming pipeline %s: %w", pipelineID, err)
	}

	view := p.StatusView()
	fmt.Fprintf(os.Stdout, "pipeline %s finished with status %s (%.0f%%)\n",
		view.PipelineID, view.Status, view.ProgressPercentage)
	return nil
}
