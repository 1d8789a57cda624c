package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/matchvision/vidpipe/internal/pipeline/core"
)

type memoryEntry struct {
	snapshot  *core.Snapshot
	expiresAt time.Time
}

// MemoryStore is an in-process CheckpointStore with the same TTL semantics
// as the persistent stores. Used by tests and single-process runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store. A non-positive ttl falls back to
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save implements core.CheckpointStore.
func (s *MemoryStore) Save(_ context.Context, pipelineID string, snapshot *core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[pipelineID] = memoryEntry{snapshot: snapshot, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Load implements core.CheckpointStore.
func (s *MemoryStore) Load(_ context.Context, pipelineID string) (*core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[pipelineID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.snapshot, nil
}

// Delete implements core.CheckpointStore.
func (s *MemoryStore) Delete(_ context.Context, pipelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, pipelineID)
	return nil
}

// List implements core.CheckpointStore.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ids := make([]string, 0, len(s.entries))
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
