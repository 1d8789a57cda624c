// Package shared provides utilities common to stage implementations.
package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

// BaseStage provides the boilerplate every stage needs: name, declared
// dependencies, required input keys, timing, and conversion of body errors
// into FAILED results. Embed it in stage implementations.
type BaseStage struct {
	name     string
	deps     []string
	required []string
}

// NewBaseStage creates a BaseStage with the given name and dependencies.
func NewBaseStage(name string, deps ...string) BaseStage {
	return BaseStage{name: name, deps: deps}
}

// Name returns the stage identifier.
func (b *BaseStage) Name() string {
	return b.name
}

// Dependencies returns the stages that must complete first.
func (b *BaseStage) Dependencies() []string {
	return append([]string(nil), b.deps...)
}

// RequireInputs declares input keys that must be present before the stage
// body runs.
func (b *BaseStage) RequireInputs(keys ...string) {
	b.required = append(b.required, keys...)
}

// Output is what a stage body produces on success.
type Output struct {
	// Data is merged into the input of subsequent stages.
	Data map[string]any
	// Metadata carries diagnostic details.
	Metadata map[string]any
	// Checkpoint is persisted alongside the pipeline snapshot.
	Checkpoint map[string]any
}

// Execute validates the input, times the body, and converts its outcome
// into a StageResult. A body error becomes a FAILED result so the
// orchestrator's retry accounting stays authoritative.
func (b *BaseStage) Execute(ctx context.Context, input map[string]any, body func(context.Context) (Output, error)) (*core.StageResult, error) {
	for _, key := range b.required {
		if _, ok := input[key]; !ok {
			result := core.FailedResult(b.name, fmt.Sprintf("missing required input %q", key), 0)
			return &result, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, core.NewStageExecutionError(b.name, err)
	}

	start := time.Now()
	out, err := body(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		result := core.FailedResult(b.name, err.Error(), elapsed)
		return &result, nil
	}

	result := core.CompletedResult(b.name, out.Data, out.Metadata, elapsed)
	result.CheckpointData = out.Checkpoint
	return &result, nil
}
