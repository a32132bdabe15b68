// Package sqlite provides a durable on-disk checkpoint store backed by
// SQLite. Checkpoints survive process restarts, which lets the HTTP layer
// resume threads across process lifetimes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mayadakhatib/langgraph-crewai/store"
)

// SqliteCheckpointStore implements store.CheckpointStore using SQLite.
type SqliteCheckpointStore struct {
	db        *sql.DB
	tableName string
}

var _ store.CheckpointStore = (*SqliteCheckpointStore)(nil)
var _ store.StatsProvider = (*SqliteCheckpointStore)(nil)

// SqliteOptions configuration for the SQLite connection.
type SqliteOptions struct {
	Path      string
	TableName string // Default "checkpoints"
}

// NewSqliteCheckpointStore creates a new SQLite checkpoint store.
func NewSqliteCheckpointStore(opts SqliteOptions) (*SqliteCheckpointStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "checkpoints"
	}

	s := &SqliteCheckpointStore{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *SqliteCheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			thread_id TEXT PRIMARY KEY,
			node_name TEXT NOT NULL,
			state TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			version INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s (timestamp);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqliteCheckpointStore) Close() error {
	return s.db.Close()
}

// Save upserts the checkpoint for its thread. The version increment happens
// inside the statement, so concurrent saves for different threads stay
// consistent without an explicit transaction.
func (s *SqliteCheckpointStore) Save(ctx context.Context, checkpoint *store.Checkpoint) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, node_name, state, timestamp, version)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(thread_id) DO UPDATE SET
			node_name = excluded.node_name,
			state = excluded.state,
			timestamp = excluded.timestamp,
			version = %s.version + 1
		RETURNING version
	`, s.tableName, s.tableName)

	err := s.db.QueryRowContext(ctx, query,
		checkpoint.ThreadID,
		checkpoint.NodeName,
		string(checkpoint.State),
		checkpoint.Timestamp,
	).Scan(&checkpoint.Version)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// Load retrieves the checkpoint for a thread.
func (s *SqliteCheckpointStore) Load(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT thread_id, node_name, state, timestamp, version
		FROM %s
		WHERE thread_id = ?
	`, s.tableName)

	var cp store.Checkpoint
	var stateJSON string

	err := s.db.QueryRowContext(ctx, query, threadID).Scan(
		&cp.ThreadID,
		&cp.NodeName,
		&stateJSON,
		&cp.Timestamp,
		&cp.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	cp.State = []byte(stateJSON)
	return &cp, nil
}

// ListThreads returns all thread ids, most recently saved first.
func (s *SqliteCheckpointStore) ListThreads(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT thread_id FROM %s ORDER BY timestamp DESC, thread_id ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread row: %w", err)
		}
		threads = append(threads, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thread rows: %w", err)
	}

	return threads, nil
}

// Delete removes a thread's checkpoint and returns the number of rows removed.
func (s *SqliteCheckpointStore) Delete(ctx context.Context, threadID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = ?", s.tableName)
	res, err := s.db.ExecContext(ctx, query, threadID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return count, nil
}

// Stats reports thread and checkpoint counts for the health surface.
func (s *SqliteCheckpointStore) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats

	query := fmt.Sprintf("SELECT COUNT(DISTINCT thread_id), COUNT(*) FROM %s", s.tableName)
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.Threads, &stats.Checkpoints); err != nil {
		return store.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}

	return stats, nil
}
