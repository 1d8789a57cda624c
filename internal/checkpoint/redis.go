// Package checkpoint provides CheckpointStore implementations: Redis for
// production, GORM for embedded deployments, and an in-memory store for
// tests. All stores share the same key and TTL contract.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

// DefaultKeyPrefix namespaces checkpoint keys in the store.
const DefaultKeyPrefix = "ml-pipeline:checkpoint"

// DefaultTTL is how long a checkpoint survives without a refresh. Every
// save resets the clock.
const DefaultTTL = 7 * 24 * time.Hour

// RedisConfig configures the Redis checkpoint store.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// RedisStore persists snapshots as JSON values under
// <prefix>:<pipeline_id>, expiring natively via Redis TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore creates a store around a new Redis client.
func NewRedisStore(cfg RedisConfig, logger *slog.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg, logger)
}

// NewRedisStoreWithClient creates a store around an existing client.
func NewRedisStoreWithClient(client *redis.Client, cfg RedisConfig, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With("component", "redis-checkpoint"),
	}
}

func (s *RedisStore) key(pipelineID string) string {
	return s.prefix + ":" + pipelineID
}

// Save implements core.CheckpointStore. The TTL is refreshed on every save.
func (s *RedisStore) Save(ctx context.Context, pipelineID string, snapshot *core.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: serializing snapshot for %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}
	if err := s.client.Set(ctx, s.key(pipelineID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: saving %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}
	return nil
}

// Load implements core.CheckpointStore. Missing or expired entries return
// (nil, nil).
func (s *RedisStore) Load(ctx context.Context, pipelineID string) (*core.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(pipelineID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot for %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}
	return &snap, nil
}

// Delete implements core.CheckpointStore.
func (s *RedisStore) Delete(ctx context.Context, pipelineID string) error {
	if err := s.client.Del(ctx, s.key(pipelineID)).Err(); err != nil {
		return fmt.Errorf("%w: deleting %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}
	return nil
}

// List implements core.CheckpointStore, scanning the keyspace under the
// prefix and returning the pipeline IDs.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix+":"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing checkpoints: %v", core.ErrCheckpointIO, err)
	}
	return ids, nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
