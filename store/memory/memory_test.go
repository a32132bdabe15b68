package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mayadakhatib/langgraph-crewai/store"
)

func newCheckpoint(threadID, node string, savedAt time.Time) *store.Checkpoint {
	return &store.Checkpoint{
		ThreadID:  threadID,
		NodeName:  node,
		State:     json.RawMessage(`{"messages":[],"processing_complete":false}`),
		Timestamp: savedAt,
	}
}

func TestMemoryCheckpointStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	// Verify it implements the interface
	var _ store.CheckpointStore = ms

	cp := newCheckpoint("thread-1", "await_input", time.Now())
	if err := ms.Save(ctx, cp); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if cp.Version != 1 {
		t.Errorf("First save should assign version 1, got %d", cp.Version)
	}

	loaded, err := ms.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if loaded.NodeName != "await_input" {
		t.Errorf("NodeName mismatch: got %s", loaded.NodeName)
	}
	if loaded.Terminal() {
		t.Error("Live checkpoint should not be terminal")
	}
	if string(loaded.State) != string(cp.State) {
		t.Errorf("State mismatch: got %s", loaded.State)
	}
}

func TestMemoryCheckpointStore_LoadMissing(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	_, err := ms.Load(context.Background(), "does-not-exist")
	if err != store.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCheckpointStore_UpsertBumpsVersion(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	live := newCheckpoint("thread-1", "await_input", time.Now())
	if err := ms.Save(ctx, live); err != nil {
		t.Fatalf("Failed to save live checkpoint: %v", err)
	}

	terminal := newCheckpoint("thread-1", "", time.Now())
	if err := ms.Save(ctx, terminal); err != nil {
		t.Fatalf("Failed to save terminal checkpoint: %v", err)
	}
	if terminal.Version != 2 {
		t.Errorf("Second save should assign version 2, got %d", terminal.Version)
	}

	loaded, err := ms.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if !loaded.Terminal() {
		t.Error("Overwritten checkpoint should be terminal")
	}
	if loaded.Version != 2 {
		t.Errorf("Expected version 2, got %d", loaded.Version)
	}
}

func TestMemoryCheckpointStore_ListThreads(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"oldest", "middle", "newest"} {
		cp := newCheckpoint(id, "await_input", base.Add(time.Duration(i)*time.Minute))
		if err := ms.Save(ctx, cp); err != nil {
			t.Fatalf("Failed to save %s: %v", id, err)
		}
	}

	threads, err := ms.ListThreads(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	want := []string{"newest", "middle", "oldest"}
	if len(threads) != len(want) {
		t.Fatalf("Expected %d threads, got %d", len(want), len(threads))
	}
	for i := range want {
		if threads[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], threads[i])
		}
	}
}

func TestMemoryCheckpointStore_Delete(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	if err := ms.Save(ctx, newCheckpoint("delete-me", "await_input", time.Now())); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	count, err := ms.Delete(ctx, "delete-me")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 deleted, got %d", count)
	}

	if _, err := ms.Load(ctx, "delete-me"); err != store.ErrNotFound {
		t.Error("Deleted checkpoint should not load")
	}

	// Deleting an unknown thread is not an error.
	count, err = ms.Delete(ctx, "never-existed")
	if err != nil {
		t.Errorf("Should not error for missing thread: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 deleted, got %d", count)
	}
}

func TestMemoryCheckpointStore_Stats(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	for i := range 3 {
		cp := newCheckpoint(fmt.Sprintf("thread-%d", i), "await_input", time.Now())
		if err := ms.Save(ctx, cp); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	stats, err := ms.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Threads != 3 || stats.Checkpoints != 3 {
		t.Errorf("Expected 3/3, got %d/%d", stats.Threads, stats.Checkpoints)
	}
}

func TestMemoryCheckpointStore_ThreadSafety(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	numGoroutines := 10
	savesPerGoroutine := 5

	done := make(chan error, numGoroutines)
	for i := range numGoroutines {
		go func(workerID int) {
			for j := range savesPerGoroutine {
				id := fmt.Sprintf("worker-%d", workerID)
				cp := newCheckpoint(id, fmt.Sprintf("step-%d", j), time.Now())
				if err := ms.Save(ctx, cp); err != nil {
					done <- fmt.Errorf("worker %d save %d failed: %v", workerID, j, err)
					return
				}
				if _, err := ms.Load(ctx, id); err != nil {
					done <- fmt.Errorf("worker %d load %d failed: %v", workerID, j, err)
					return
				}
			}
			done <- nil
		}(i)
	}

	for range numGoroutines {
		if err := <-done; err != nil {
			t.Error(err)
		}
	}

	// Each worker upserted the same thread five times.
	for i := range numGoroutines {
		cp, err := ms.Load(ctx, fmt.Sprintf("worker-%d", i))
		if err != nil {
			t.Errorf("Checkpoint for worker %d missing", i)
			continue
		}
		if cp.Version != savesPerGoroutine {
			t.Errorf("Worker %d: expected version %d, got %d", i, savesPerGoroutine, cp.Version)
		}
	}
}
