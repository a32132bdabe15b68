// Package memory provides a volatile in-process checkpoint store. Contents
// are lost on restart, which is acceptable for ephemeral demo deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mayadakhatib/langgraph-crewai/store"
)

// MemoryCheckpointStore implements store.CheckpointStore with a mutex-guarded map.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint
}

var _ store.CheckpointStore = (*MemoryCheckpointStore)(nil)
var _ store.StatsProvider = (*MemoryCheckpointStore)(nil)

// NewMemoryCheckpointStore creates a new in-memory checkpoint store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]*store.Checkpoint),
	}
}

// Save upserts the checkpoint for its thread and assigns the next version.
func (s *MemoryCheckpointStore) Save(ctx context.Context, checkpoint *store.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := 1
	if prev, ok := s.checkpoints[checkpoint.ThreadID]; ok {
		version = prev.Version + 1
	}
	checkpoint.Version = version

	cp := *checkpoint
	cp.State = append([]byte(nil), checkpoint.State...)
	s.checkpoints[checkpoint.ThreadID] = &cp
	return nil
}

// Load retrieves the checkpoint for a thread.
func (s *MemoryCheckpointStore) Load(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[threadID]
	if !ok {
		return nil, store.ErrNotFound
	}

	out := *cp
	out.State = append([]byte(nil), cp.State...)
	return &out, nil
}

// ListThreads returns all thread ids, most recently saved first.
func (s *MemoryCheckpointStore) ListThreads(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checkpoints := make([]*store.Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		checkpoints = append(checkpoints, cp)
	}
	sort.Slice(checkpoints, func(i, j int) bool {
		if !checkpoints[i].Timestamp.Equal(checkpoints[j].Timestamp) {
			return checkpoints[i].Timestamp.After(checkpoints[j].Timestamp)
		}
		return checkpoints[i].ThreadID < checkpoints[j].ThreadID
	})

	threads := make([]string, len(checkpoints))
	for i, cp := range checkpoints {
		threads[i] = cp.ThreadID
	}
	return threads, nil
}

// Delete removes a thread's checkpoint. Missing threads yield 0.
func (s *MemoryCheckpointStore) Delete(ctx context.Context, threadID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkpoints[threadID]; !ok {
		return 0, nil
	}
	delete(s.checkpoints, threadID)
	return 1, nil
}

// Stats reports the store contents.
func (s *MemoryCheckpointStore) Stats(ctx context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := int64(len(s.checkpoints))
	return store.Stats{Threads: n, Checkpoints: n}, nil
}
