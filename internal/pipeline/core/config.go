package core

import (
	"fmt"
	"time"
)

// Default configuration values, matching the request schema defaults.
const (
	DefaultModelVersion   = "v1.0.0"
	DefaultBatchSize      = 8
	DefaultMaxRetries     = 3
	DefaultTimeoutSeconds = 3600
)

// Configuration is the immutable per-pipeline configuration.
type Configuration struct {
	// ModelVersion selects the ML model version used by stages.
	ModelVersion string `json:"model_version"`
	// BatchSize is the inference batch size. Must be positive.
	BatchSize int `json:"batch_size"`
	// GPUEnabled requests GPU acceleration from stages.
	GPUEnabled bool `json:"gpu_enabled"`
	// CheckpointEnabled turns on checkpoint persistence after each stage.
	CheckpointEnabled bool `json:"checkpoint_enabled"`
	// MaxRetries bounds retries per stage. A stage may be attempted
	// MaxRetries+1 times in total before the pipeline fails.
	MaxRetries int `json:"max_retries"`
	// TimeoutSeconds bounds total wall-clock time for the pipeline.
	TimeoutSeconds int `json:"timeout_seconds"`
	// StageConfigs holds per-stage option overrides keyed by stage name.
	StageConfigs map[string]map[string]any `json:"stage_configs,omitempty"`
}

// DefaultConfiguration returns a Configuration with sensible defaults.
func DefaultConfiguration() Configuration {
	return Configuration{
		ModelVersion:      DefaultModelVersion,
		BatchSize:         DefaultBatchSize,
		GPUEnabled:        true,
		CheckpointEnabled: true,
		MaxRetries:        DefaultMaxRetries,
		TimeoutSeconds:    DefaultTimeoutSeconds,
	}
}

// Validate checks the configuration invariants.
func (c Configuration) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfiguration, c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be non-negative, got %d", ErrInvalidConfiguration, c.MaxRetries)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: timeout_seconds must be positive, got %d", ErrInvalidConfiguration, c.TimeoutSeconds)
	}
	return nil
}

// Timeout returns TimeoutSeconds as a duration.
func (c Configuration) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StageConfig returns the configuration for the named stage, or an empty
// map when no override exists.
func (c Configuration) StageConfig(name string) map[string]any {
	if cfg, ok := c.StageConfigs[name]; ok {
		return cfg
	}
	return map[string]any{}
}
