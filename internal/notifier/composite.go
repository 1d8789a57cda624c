package notifier

import (
	"context"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

// Composite fans notifications out to a set of child notifiers. Children
// are invoked in order; because notifications are fire-and-forget, a broken
// child cannot prevent the others from being called.
type Composite struct {
	children []core.ProgressNotifier
}

// NewComposite creates a composite over the given children.
func NewComposite(children ...core.ProgressNotifier) *Composite {
	return &Composite{children: children}
}

// Add appends another child.
func (c *Composite) Add(child core.ProgressNotifier) {
	c.children = append(c.children, child)
}

// NotifyStageStarted implements core.ProgressNotifier.
func (c *Composite) NotifyStageStarted(ctx context.Context, pipelineID, videoID, stageName string) {
	for _, child := range c.children {
		child.NotifyStageStarted(ctx, pipelineID, videoID, stageName)
	}
}

// NotifyStageCompleted implements core.ProgressNotifier.
func (c *Composite) NotifyStageCompleted(ctx context.Context, pipelineID, videoID, stageName string, progressPercentage float64) {
	for _, child := range c.children {
		child.NotifyStageCompleted(ctx, pipelineID, videoID, stageName, progressPercentage)
	}
}

// NotifyStageFailed implements core.ProgressNotifier.
func (c *Composite) NotifyStageFailed(ctx context.Context, pipelineID, videoID, stageName, errorMessage string) {
	for _, child := range c.children {
		child.NotifyStageFailed(ctx, pipelineID, videoID, stageName, errorMessage)
	}
}
