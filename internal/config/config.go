// Package config provides configuration management for vidpipe using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultKafkaBroker       = "localhost:9092"
	defaultEventBatchSize    = 100
	defaultEventBatchBytes   = 1024 * 1024 // 1MB
	defaultEventBatchTimeout = 50 * time.Millisecond

	defaultRedisAddr     = "localhost:6379"
	defaultCheckpointTTL = 7 * 24 * time.Hour
	defaultSweepSchedule = "@every 1h"

	defaultModelVersion   = "v1.0.0"
	defaultStageBatchSize = 8
	defaultMaxRetries     = 3
	defaultStageTimeout   = 3600 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Events     EventsConfig     `mapstructure:"events"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration. The database is
// only opened when the checkpoint backend is "database".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// EventsConfig holds domain event publishing configuration.
// BatchBytes supports human-readable values like "1MB", "512KB", or raw
// byte counts.
type EventsConfig struct {
	Backend      string        `mapstructure:"backend"` // kafka, memory
	Brokers      []string      `mapstructure:"brokers"`
	TopicPrefix  string        `mapstructure:"topic_prefix"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchBytes   ByteSize      `mapstructure:"batch_bytes"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// CheckpointConfig holds checkpoint persistence configuration.
// TTL is how long checkpoints survive without being refreshed and supports
// human-readable values like "7d", "2w", or "168h".
type CheckpointConfig struct {
	Backend       string      `mapstructure:"backend"` // redis, database, memory
	KeyPrefix     string      `mapstructure:"key_prefix"`
	TTL           Duration    `mapstructure:"ttl"`
	SweepSchedule string      `mapstructure:"sweep_schedule"`
	Redis         RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ProgressConfig holds progress notification configuration.
type ProgressConfig struct {
	WebSocketEnabled bool `mapstructure:"websocket_enabled"`
}

// PipelineConfig holds default pipeline execution settings. Per-request
// values override these defaults.
type PipelineConfig struct {
	ModelVersion      string                    `mapstructure:"model_version"`
	BatchSize         int                       `mapstructure:"batch_size"`
	GPUEnabled        bool                      `mapstructure:"gpu_enabled"`
	CheckpointEnabled bool                      `mapstructure:"checkpoint_enabled"`
	MaxRetries        int                       `mapstructure:"max_retries"`
	Timeout           time.Duration             `mapstructure:"timeout"`
	StageConfigs      map[string]map[string]any `mapstructure:"stage_configs"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with VIDPIPE_ and use underscores for nesting.
// Example: VIDPIPE_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/vidpipe")
		v.AddConfigPath("$HOME/.vidpipe")
	}

	// Environment variable settings
	v.SetEnvPrefix("VIDPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	// The TextUnmarshaller hook lets Duration and ByteSize fields accept
	// human-readable strings like "7d" or "512KB".
	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "vidpipe.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Events defaults
	v.SetDefault("events.backend", "memory")
	v.SetDefault("events.brokers", []string{defaultKafkaBroker})
	v.SetDefault("events.topic_prefix", "ml-pipeline")
	v.SetDefault("events.batch_size", defaultEventBatchSize)
	v.SetDefault("events.batch_bytes", defaultEventBatchBytes)
	v.SetDefault("events.batch_timeout", defaultEventBatchTimeout)

	// Checkpoint defaults
	v.SetDefault("checkpoint.backend", "memory")
	v.SetDefault("checkpoint.key_prefix", "ml-pipeline:checkpoint")
	v.SetDefault("checkpoint.ttl", defaultCheckpointTTL)
	v.SetDefault("checkpoint.sweep_schedule", defaultSweepSchedule)
	v.SetDefault("checkpoint.redis.addr", defaultRedisAddr)
	v.SetDefault("checkpoint.redis.password", "")
	v.SetDefault("checkpoint.redis.db", 0)

	// Progress defaults
	v.SetDefault("progress.websocket_enabled", true)

	// Pipeline defaults
	v.SetDefault("pipeline.model_version", defaultModelVersion)
	v.SetDefault("pipeline.batch_size", defaultStageBatchSize)
	v.SetDefault("pipeline.gpu_enabled", true)
	v.SetDefault("pipeline.checkpoint_enabled", true)
	v.SetDefault("pipeline.max_retries", defaultMaxRetries)
	v.SetDefault("pipeline.timeout", defaultStageTimeout)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Events validation
	validEventBackends := map[string]bool{"kafka": true, "memory": true}
	if !validEventBackends[c.Events.Backend] {
		return fmt.Errorf("events.backend must be one of: kafka, memory")
	}
	if c.Events.Backend == "kafka" && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.brokers is required for the kafka backend")
	}
	if c.Events.BatchSize < 1 {
		return fmt.Errorf("events.batch_size must be at least 1")
	}

	// Checkpoint validation
	validCheckpointBackends := map[string]bool{"redis": true, "database": true, "memory": true}
	if !validCheckpointBackends[c.Checkpoint.Backend] {
		return fmt.Errorf("checkpoint.backend must be one of: redis, database, memory")
	}
	if c.Checkpoint.Backend == "redis" && c.Checkpoint.Redis.Addr == "" {
		return fmt.Errorf("checkpoint.redis.addr is required for the redis backend")
	}
	if c.Checkpoint.TTL.Duration() <= 0 {
		return fmt.Errorf("checkpoint.ttl must be positive")
	}

	// Pipeline validation
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be at least 1")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must not be negative")
	}
	if c.Pipeline.Timeout <= 0 {
		return fmt.Errorf("pipeline.timeout must be positive")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
