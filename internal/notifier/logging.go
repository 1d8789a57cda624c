// Package notifier provides ProgressNotifier implementations: a structured
// logging notifier, a WebSocket fan-out hub, and a composite that feeds
// several children. Notifications are fire-and-forget; a slow or broken
// observer never blocks pipeline progress.
package notifier

import (
	"context"
	"log/slog"
)

// LoggingNotifier records stage lifecycle transitions in the service log.
type LoggingNotifier struct {
	logger *slog.Logger
}

// NewLoggingNotifier creates a logging notifier.
func NewLoggingNotifier(logger *slog.Logger) *LoggingNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingNotifier{logger: logger.With("component", "progress")}
}

// NotifyStageStarted implements core.ProgressNotifier.
func (n *LoggingNotifier) NotifyStageStarted(_ context.Context, pipelineID, videoID, stageName string) {
	n.logger.Info("stage started",
		"pipeline_id", pipelineID,
		"video_id", videoID,
		"stage", stageName,
	)
}

// NotifyStageCompleted implements core.ProgressNotifier.
func (n *LoggingNotifier) NotifyStageCompleted(_ context.Context, pipelineID, videoID, stageName string, progressPercentage float64) {
	n.logger.Info("stage completed",
		"pipeline_id", pipelineID,
		"video_id", videoID,
		"stage", stageName,
		"progress", progressPercentage,
	)
}

// NotifyStageFailed implements core.ProgressNotifier.
func (n *LoggingNotifier) NotifyStageFailed(_ context.Context, pipelineID, videoID, stageName, errorMessage string) {
	n.logger.Warn("stage failed",
		"pipeline_id", pipelineID,
		"video_id", videoID,
		"stage", stageName,
		"error", errorMessage,
	)
}
