package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

func testSnapshot(pipelineID string) *core.Snapshot {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &core.Snapshot{
		PipelineID:        pipelineID,
		VideoID:           "11111111-2222-3333-4444-555555555555",
		Status:            core.StatusRunning,
		Configuration:     core.DefaultConfiguration(),
		StageOrder:        []string{"video_decoding", "player_detection"},
		CurrentStageIndex: 1,
		StageResults: map[string]core.StageResult{
			"video_decoding": core.CompletedResult("video_decoding", map[string]any{"frames": float64(100)}, nil, 25),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestGormStore(t *testing.T, ttl time.Duration) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store, err := NewGormStore(db, ttl, nil)
	require.NoError(t, err)
	return store
}

func TestGormStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a snapshot", func(t *testing.T) {
		store := newTestGormStore(t, time.Hour)
		snap := testSnapshot("pipe-1")
		require.NoError(t, store.Save(ctx, "pipe-1", snap))

		loaded, err := store.Load(ctx, "pipe-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, snap.PipelineID, loaded.PipelineID)
		assert.Equal(t, snap.Status, loaded.Status)
		assert.Equal(t, snap.StageOrder, loaded.StageOrder)
		assert.Equal(t, snap.CurrentStageIndex, loaded.CurrentStageIndex)
		assert.Equal(t, float64(100), loaded.StageResults["video_decoding"].OutputData["frames"])
	})

	t.Run("missing checkpoints load as nil", func(t *testing.T) {
		store := newTestGormStore(t, time.Hour)
		loaded, err := store.Load(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("save is an upsert refreshing expiry", func(t *testing.T) {
		store := newTestGormStore(t, time.Hour)
		require.NoError(t, store.Save(ctx, "pipe-1", testSnapshot("pipe-1")))

		updated := testSnapshot("pipe-1")
		updated.CurrentStageIndex = 2
		require.NoError(t, store.Save(ctx, "pipe-1", updated))

		loaded, err := store.Load(ctx, "pipe-1")
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.CurrentStageIndex)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"pipe-1"}, ids)
	})

	t.Run("expired rows are invisible and swept", func(t *testing.T) {
		store := newTestGormStore(t, time.Hour)
		require.NoError(t, store.Save(ctx, "pipe-1", testSnapshot("pipe-1")))

		// Advance the store's clock past the TTL.
		store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		loaded, err := store.Load(ctx, "pipe-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		removed, err := store.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		store := newTestGormStore(t, time.Hour)
		require.NoError(t, store.Save(ctx, "pipe-1", testSnapshot("pipe-1")))
		require.NoError(t, store.Delete(ctx, "pipe-1"))

		loaded, err := store.Load(ctx, "pipe-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips and lists", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		require.NoError(t, store.Save(ctx, "pipe-1", testSnapshot("pipe-1")))

		loaded, err := store.Load(ctx, "pipe-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"pipe-1"}, ids)

		require.NoError(t, store.Delete(ctx, "pipe-1"))
		loaded, err = store.Load(ctx, "pipe-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("entries expire", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		require.NoError(t, store.Save(ctx, "pipe-1", testSnapshot("pipe-1")))

		store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		loaded, err := store.Load(ctx, "pipe-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestJanitorSweep(t *testing.T) {
	store := newTestGormStore(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "pipe-1", testSnapshot("pipe-1")))
	require.NoError(t, store.Save(ctx, "pipe-2", testSnapshot("pipe-2")))

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	j := NewJanitor(store, DefaultSweepSchedule, nil)
	j.sweep()

	store.now = time.Now
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
