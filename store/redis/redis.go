// Package redis provides a checkpoint store backed by Redis. With a
// persistent Redis deployment checkpoints survive application restarts; an
// optional TTL lets parked threads expire.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mayadakhatib/langgraph-crewai/store"
)

// RedisCheckpointStore implements store.CheckpointStore using Redis.
type RedisCheckpointStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.CheckpointStore = (*RedisCheckpointStore)(nil)
var _ store.StatsProvider = (*RedisCheckpointStore)(nil)

// RedisOptions configuration for the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "chatd:"
	TTL      time.Duration // Expiration for checkpoints, default 0 (no expiration)
}

// NewRedisCheckpointStore creates a new Redis checkpoint store.
func NewRedisCheckpointStore(opts RedisOptions) *RedisCheckpointStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "chatd:"
	}

	return &RedisCheckpointStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

// Close closes the underlying client.
func (s *RedisCheckpointStore) Close() error {
	return s.client.Close()
}

func (s *RedisCheckpointStore) checkpointKey(threadID string) string {
	return fmt.Sprintf("%scheckpoint:%s", s.prefix, threadID)
}

func (s *RedisCheckpointStore) versionKey(threadID string) string {
	return fmt.Sprintf("%sversion:%s", s.prefix, threadID)
}

func (s *RedisCheckpointStore) threadsKey() string {
	return s.prefix + "threads"
}

// Save upserts the checkpoint for its thread. The version comes from an
// atomic INCR so concurrent saves never produce duplicate versions.
func (s *RedisCheckpointStore) Save(ctx context.Context, checkpoint *store.Checkpoint) error {
	version, err := s.client.Incr(ctx, s.versionKey(checkpoint.ThreadID)).Result()
	if err != nil {
		return fmt.Errorf("failed to bump checkpoint version: %w", err)
	}
	checkpoint.Version = int(version)

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.checkpointKey(checkpoint.ThreadID), data, s.ttl)
	pipe.ZAdd(ctx, s.threadsKey(), redis.Z{
		Score:  float64(checkpoint.Timestamp.UnixNano()),
		Member: checkpoint.ThreadID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.versionKey(checkpoint.ThreadID), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}

	return nil
}

// Load retrieves the checkpoint for a thread.
func (s *RedisCheckpointStore) Load(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	var checkpoint store.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &checkpoint, nil
}

// ListThreads returns all thread ids, most recently saved first.
func (s *RedisCheckpointStore) ListThreads(ctx context.Context) ([]string, error) {
	threads, err := s.client.ZRevRange(ctx, s.threadsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

// Delete removes a thread's checkpoint. Missing threads yield 0.
func (s *RedisCheckpointStore) Delete(ctx context.Context, threadID string) (int64, error) {
	count, err := s.client.Del(ctx, s.checkpointKey(threadID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.versionKey(threadID))
	pipe.ZRem(ctx, s.threadsKey(), threadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return count, fmt.Errorf("failed to clean up thread index: %w", err)
	}

	return count, nil
}

// Stats reports thread and checkpoint counts.
func (s *RedisCheckpointStore) Stats(ctx context.Context) (store.Stats, error) {
	n, err := s.client.ZCard(ctx, s.threadsKey()).Result()
	if err != nil {
		return store.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return store.Stats{Threads: n, Checkpoints: n}, nil
}
