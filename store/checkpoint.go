// Package store defines checkpoint persistence for conversation threads.
//
// A thread has at most one checkpoint at a time: Save is an upsert keyed by
// thread id. A checkpoint whose NodeName is empty is terminal; any other
// NodeName marks a live, resumable pause at that node.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Load when no checkpoint exists for a thread.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is a snapshot of a thread's conversation state plus its paused
// execution position.
type Checkpoint struct {
	// ThreadID identifies the conversation that owns this checkpoint.
	ThreadID string `json:"thread_id"`

	// NodeName is the node to resume at. Empty means the run has completed.
	NodeName string `json:"node_name"`

	// State is the serialized conversation state.
	State json.RawMessage `json:"state"`

	// Timestamp records when the checkpoint was saved.
	Timestamp time.Time `json:"timestamp"`

	// Version increments on every save for a thread. Assigned by the store.
	Version int `json:"version"`
}

// Terminal reports whether the checkpoint marks a completed run.
func (c *Checkpoint) Terminal() bool {
	return c.NodeName == ""
}

// EncodeState marshals v into the checkpoint's State field.
func (c *Checkpoint) EncodeState(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}
	c.State = data
	return nil
}

// DecodeState unmarshals the checkpoint's State field into v.
func (c *Checkpoint) DecodeState(v any) error {
	if err := json.Unmarshal(c.State, v); err != nil {
		return fmt.Errorf("failed to unmarshal checkpoint state: %w", err)
	}
	return nil
}

// CheckpointStore is a durable mapping from thread id to its latest
// checkpoint. Implementations must make Save an atomic read-modify-write per
// thread id so the version sequence has no gaps under concurrent callers.
type CheckpointStore interface {
	// Save upserts the checkpoint for its thread, replacing any prior one,
	// and assigns the next Version.
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load retrieves the checkpoint for a thread, or ErrNotFound.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// ListThreads returns all thread ids, most recently saved first.
	ListThreads(ctx context.Context) ([]string, error)

	// Delete removes a thread's checkpoint and returns the number of records
	// removed. A missing thread yields 0, not an error.
	Delete(ctx context.Context, threadID string) (int64, error)
}

// Stats describes the contents of a store for health checks.
type Stats struct {
	Threads     int64 `json:"threads"`
	Checkpoints int64 `json:"checkpoints"`
}

// StatsProvider is implemented by stores that can report their contents.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}
