// Package postgres provides a durable checkpoint store backed by PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mayadakhatib/langgraph-crewai/store"
)

// DBPool defines the interface for the database connection pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresCheckpointStore implements store.CheckpointStore using PostgreSQL.
type PostgresCheckpointStore struct {
	pool      DBPool
	tableName string
}

var _ store.CheckpointStore = (*PostgresCheckpointStore)(nil)
var _ store.StatsProvider = (*PostgresCheckpointStore)(nil)

// PostgresOptions configuration for the Postgres connection.
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "checkpoints"
}

// NewPostgresCheckpointStore creates a new Postgres checkpoint store.
func NewPostgresCheckpointStore(ctx context.Context, opts PostgresOptions) (*PostgresCheckpointStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "checkpoints"
	}

	return &PostgresCheckpointStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// NewPostgresCheckpointStoreWithPool creates a new Postgres checkpoint store
// with an existing pool. Useful for testing with mocks.
func NewPostgresCheckpointStoreWithPool(pool DBPool, tableName string) *PostgresCheckpointStore {
	if tableName == "" {
		tableName = "checkpoints"
	}
	return &PostgresCheckpointStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *PostgresCheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			thread_id TEXT PRIMARY KEY,
			node_name TEXT NOT NULL,
			state JSONB NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			version INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s (timestamp);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresCheckpointStore) Close() {
	s.pool.Close()
}

// Save upserts the checkpoint for its thread. The version increment is part
// of the upsert, so the row-level lock taken by the statement guarantees the
// read-modify-write is atomic per thread id.
func (s *PostgresCheckpointStore) Save(ctx context.Context, checkpoint *store.Checkpoint) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, node_name, state, timestamp, version)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (thread_id) DO UPDATE SET
			node_name = EXCLUDED.node_name,
			state = EXCLUDED.state,
			timestamp = EXCLUDED.timestamp,
			version = %s.version + 1
		RETURNING version
	`, s.tableName, s.tableName)

	err := s.pool.QueryRow(ctx, query,
		checkpoint.ThreadID,
		checkpoint.NodeName,
		[]byte(checkpoint.State),
		checkpoint.Timestamp,
	).Scan(&checkpoint.Version)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// Load retrieves the checkpoint for a thread.
func (s *PostgresCheckpointStore) Load(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT thread_id, node_name, state, timestamp, version
		FROM %s
		WHERE thread_id = $1
	`, s.tableName)

	var cp store.Checkpoint
	var stateJSON []byte

	err := s.pool.QueryRow(ctx, query, threadID).Scan(
		&cp.ThreadID,
		&cp.NodeName,
		&stateJSON,
		&cp.Timestamp,
		&cp.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	cp.State = stateJSON
	return &cp, nil
}

// ListThreads returns all thread ids, most recently saved first.
func (s *PostgresCheckpointStore) ListThreads(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT thread_id FROM %s ORDER BY timestamp DESC, thread_id ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query)
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
func (s *PostgresCheckpointStore) Delete(ctx context.Context, threadID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = $1", s.tableName)
	tag, err := s.pool.Exec(ctx, query, threadID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats reports thread and checkpoint counts for the health surface.
func (s *PostgresCheckpointStore) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats

	query := fmt.Sprintf("SELECT COUNT(DISTINCT thread_id), COUNT(*) FROM %s", s.tableName)
	if err := s.pool.QueryRow(ctx, query).Scan(&stats.Threads, &stats.Checkpoints); err != nil {
		return store.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}

	return stats, nil
}
