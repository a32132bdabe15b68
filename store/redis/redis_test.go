package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayadakhatib/langgraph-crewai/store"
)

func newTestStore(t *testing.T) *RedisCheckpointStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedisCheckpointStore(RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisCheckpointStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp := &store.Checkpoint{
		ThreadID:  "thread-1",
		NodeName:  "await_input",
		State:     json.RawMessage(`{"messages":[],"processing_complete":false}`),
		Timestamp: time.Now().UTC(),
	}

	// Save assigns version 1.
	require.NoError(t, s.Save(ctx, cp))
	assert.Equal(t, 1, cp.Version)

	// Load round-trips.
	loaded, err := s.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "await_input", loaded.NodeName)
	assert.JSONEq(t, string(cp.State), string(loaded.State))

	// Upsert bumps version.
	terminal := &store.Checkpoint{
		ThreadID:  "thread-1",
		State:     json.RawMessage(`{"processing_complete":true}`),
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, terminal))
	assert.Equal(t, 2, terminal.Version)

	loaded, err = s.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.True(t, loaded.Terminal())
	assert.Equal(t, 2, loaded.Version)
}

func TestRedisCheckpointStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisCheckpointStore_ListThreads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"oldest", "middle", "newest"} {
		cp := &store.Checkpoint{
			ThreadID:  id,
			NodeName:  "await_input",
			State:     json.RawMessage(`{}`),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Save(ctx, cp))
	}

	threads, err := s.ListThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "middle", "oldest"}, threads)
}

func TestRedisCheckpointStore_DeleteAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp := &store.Checkpoint{
		ThreadID:  "delete-me",
		NodeName:  "await_input",
		State:     json.RawMessage(`{}`),
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, cp))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Threads)

	count, err := s.Delete(ctx, "delete-me")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = s.Load(ctx, "delete-me")
	assert.ErrorIs(t, err, store.ErrNotFound)

	count, err = s.Delete(ctx, "never-existed")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Threads)

	// Version counter was reset with the thread.
	require.NoError(t, s.Save(ctx, &store.Checkpoint{
		ThreadID:  "delete-me",
		NodeName:  "await_input",
		State:     json.RawMessage(`{}`),
		Timestamp: time.Now().UTC(),
	}))
	loaded, err := s.Load(ctx, "delete-me")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version)
}
