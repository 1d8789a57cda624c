package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

// Record is the database row backing one checkpoint. Expiry is enforced at
// read time and by the janitor sweep; the database itself has no TTL.
type Record struct {
	PipelineID string    `gorm:"primaryKey;size:36"`
	Snapshot   []byte    `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the GORM default.
func (Record) TableName() string {
	return "pipeline_checkpoints"
}

// GormStore persists snapshots in a relational database. It serves embedded
// deployments where running Redis next to the service is not worth it.
type GormStore struct {
	db     *gorm.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewGormStore creates a store and migrates its table.
func NewGormStore(db *gorm.DB, ttl time.Duration, logger *slog.Logger) (*GormStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating checkpoint table: %w", err)
	}
	return &GormStore{
		db:     db,
		ttl:    ttl,
		logger: logger.With("component", "gorm-checkpoint"),
		now:    time.Now,
	}, nil
}

// Save implements core.CheckpointStore as an upsert; the expiry is pushed
// out on every save.
func (s *GormStore) Save(ctx context.Context, pipelineID string, snapshot *core.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: serializing snapshot for %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}

	record := Record{
		PipelineID: pipelineID,
		Snapshot:   data,
		ExpiresAt:  s.now().Add(s.ttl),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pipeline_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot", "expires_at", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("%w: saving %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}
	return nil
}

// Load implements core.CheckpointStore. Expired rows are treated as absent;
// the janitor removes them later.
func (s *GormStore) Load(ctx context.Context, pipelineID string) (*core.Snapshot, error) {
	var record Record
	err := s.db.WithContext(ctx).
		Where("pipeline_id = ? AND expires_at > ?", pipelineID, s.now()).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(record.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot for %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}
	return &snap, nil
}

// Delete implements core.CheckpointStore.
func (s *GormStore) Delete(ctx context.Context, pipelineID string) error {
	err := s.db.WithContext(ctx).Where("pipeline_id = ?", pipelineID).Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("%w: deleting %s: %v", core.ErrCheckpointIO, pipelineID, err)
	}
	return nil
}

// List implements core.CheckpointStore, returning IDs of unexpired rows.
func (s *GormStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("expires_at > ?", s.now()).
		Order("pipeline_id").
		Pluck("pipeline_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: listing checkpoints: %v", core.ErrCheckpointIO, err)
	}
	return ids, nil
}

// DeleteExpired removes rows past their expiry. Returns the number removed.
func (s *GormStore) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&Record{})
	if result.Error != nil {
		return 0, fmt.Errorf("%w: sweeping expired checkpoints: %v", core.ErrCheckpointIO, result.Error)
	}
	return result.RowsAffected, nil
}
