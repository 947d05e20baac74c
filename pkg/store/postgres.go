package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS agent_sessions (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	data       JSONB NOT NULL
)`

// PostgresStore keeps sessions as JSONB documents. Timestamps inside the
// document keep full precision; the columns are for querying.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	ps := &PostgresStore{DB: db}
	if err := ps.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return ps, nil
}

func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := ps.DB.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create postgres schema: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Save(ctx context.Context, snap conversation.Snapshot) (string, error) {
	if err := ValidateSessionID(snap.SessionID); err != nil {
		return "", err
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return "", err
	}
	_, err = ps.DB.Exec(ctx, `
		INSERT INTO agent_sessions (id, created_at, updated_at, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at, data = EXCLUDED.data`,
		snap.SessionID, snap.CreatedAt, snap.UpdatedAt, string(data))
	if err != nil {
		return "", fmt.Errorf("save session %s: %w", snap.SessionID, err)
	}
	return "postgres://agent_sessions/" + snap.SessionID, nil
}

func (ps *PostgresStore) Load(ctx context.Context, sessionID string) (conversation.Snapshot, error) {
	var data string
	err := ps.DB.QueryRow(ctx, `SELECT data::text FROM agent_sessions WHERE id = $1`, sessionID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversation.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return decodeSnapshot(sessionID, []byte(data))
}

func (ps *PostgresStore) Close() {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
}
