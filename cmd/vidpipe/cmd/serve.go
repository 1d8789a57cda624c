package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matchvision/vidpipe/internal/checkpoint"
	"github.com/matchvision/vidpipe/internal/config"
	"github.com/matchvision/vidpipe/internal/database"
	"github.com/matchvision/vidpipe/internal/events"
	internalhttp "github.com/matchvision/vidpipe/internal/http"
	"github.com/matchvision/vidpipe/internal/http/handlers"
	"github.com/matchvision/vidpipe/internal/notifier"
	"github.com/matchvision/vidpipe/internal/pipeline"
	"github.com/matchvision/vidpipe/internal/service"
	"github.com/matchvision/vidpipe/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vidpipe server",
	Long: `Start the vidpipe HTTP server and API.

The server provides:
- REST API for submitting, inspecting, cancelling and resuming pipelines
- WebSocket endpoint for live stage progress
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	// Checkpoint store
	store, db, cleanup, err := buildCheckpointStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing checkpoint store: %w", err)
	}
	defer cleanup()

	// Event publisher
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
		logger.Info("using in-memory event publisher")
	}

	// Progress notifiers
	progressNotifier := notifier.NewComposite(notifier.NewLoggingNotifier(logger))
	var wsNotifier *notifier.WebSocketNotifier
	if cfg.Progress.WebSocketEnabled {
		wsNotifier = notifier.NewWebSocketNotifier(logger)
		defer wsNotifier.Close()
		progressNotifier.Add(wsNotifier)
	}

	orchestrator := pipeline.NewOrchestrator(publisher, store, progressNotifier, logger)
	pipelineService := service.NewPipelineService(orchestrator, store, func() []pipeline.Stage {
		return pipeline.DefaultStages(logger)
	}, cfg.Pipeline).WithLogger(logger)

	// HTTP server
	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	serverConfig.CORSOrigins = cfg.Server.CORSOrigins
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).
		WithPipelineService(pipelineService)
	if db != nil {
		healthHandler = healthHandler.WithDB(db.DB)
	}
	healthHandler.Register(server.API())

	handlers.NewPipelineHandler(pipelineService).Register(server.API())

	if wsNotifier != nil {
		server.Router().Get("/api/v1/progress/ws", wsNotifier.ServeHTTP)
	}

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting vidpipe server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
		slog.String("checkpoint_backend", cfg.Checkpoint.Backend),
		slog.String("events_backend", cfg.Events.Backend),
	)

	return server.ListenAndServe(ctx)
}

// buildCheckpointStore constructs the configured checkpoint backend. The
// returned cleanup releases backend resources and is safe to call once.
func buildCheckpointStore(cfg *config.Config, logger *slog.Logger) (pipeline.CheckpointStore, *database.DB, func(), error) {
	ttl := cfg.Checkpoint.TTL.Duration()

	switch cfg.Checkpoint.Backend {
	case "redis":
		rs := checkpoint.NewRedisStore(checkpoint.RedisConfig{
			Addr:      cfg.Checkpoint.Redis.Addr,
			Password:  cfg.Checkpoint.Redis.Password,
			DB:        cfg.Checkpoint.Redis.DB,
			KeyPrefix: cfg.Checkpoint.KeyPrefix,
			TTL:       ttl,
		}, logger)
		return rs, nil, func() { rs.Close() }, nil

	case "database":
		db, err := database.New(cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		gs, err := checkpoint.NewGormStore(db.DB, ttl, logger)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		janitor := checkpoint.NewJanitor(gs, cfg.Checkpoint.SweepSchedule, logger)
		if err := janitor.Start(); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		cleanup := func() {
			janitor.Stop()
			db.Close()
		}
		return gs, db, cleanup, nil

	default:
		logger.Info("using in-memory checkpoint store")
		return checkpoint.NewMemoryStore(ttl), nil, func() {}, nil
	}
}
