package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// Neo4jAccessMode controls whether a session is opened for read or write operations.
type Neo4jAccessMode string

const (
	AccessModeWrite Neo4jAccessMode = "write"
	AccessModeRead  Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the subset of Neo4j session configuration the store uses.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the driver so tests can use fakes.
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) neo4jSession
	Close(ctx context.Context) error
}

type neo4jSession interface {
	BeginTransaction(ctx context.Context) (neo4jTransaction, error)
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jTransaction interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

const (
	neo4jUpsertSessionCypher = `
MERGE (s:Session {id: $id})
SET s.created_at = $created_at, s.updated_at = $updated_at, s.config = $config`

	neo4jDeleteMessagesCypher = `
MATCH (:Session {id: $id})-[:HAS_MESSAGE]->(m:Message)
DETACH DELETE m`

	neo4jCreateMessagesCypher = `
MATCH (s:Session {id: $id})
UNWIND $messages AS msg
CREATE (s)-[:HAS_MESSAGE]->(:Message {
	seq: msg.seq, role: msg.role, content: msg.content, timestamp: msg.timestamp,
	reasoning: msg.reasoning, name: msg.name, call_id: msg.call_id
})`

	neo4jSessionQuery = `
MATCH (s:Session {id: $id})
RETURN s.created_at AS created_at, s.updated_at AS updated_at, s.config AS config`

	neo4jMessagesQuery = `
MATCH (:Session {id: $id})-[:HAS_MESSAGE]->(m:Message)
RETURN m.seq AS seq, m.role AS role, m.content AS content, m.timestamp AS timestamp,
	m.reasoning AS reasoning, m.name AS name, m.call_id AS call_id
ORDER BY m.seq`
)

// Neo4jStore persists a session as a Session node linked to ordered Message nodes.
type Neo4jStore struct {
	driver   neo4jDriver
	database string
}

// OpenNeo4jStore connects with basic auth and verifies connectivity.
func OpenNeo4jStore(ctx context.Context, uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return NewNeo4jStore(WrapNeo4jDriver(driver), database)
}

func NewNeo4jStore(driver neo4jDriver, database string) (*Neo4jStore, error) {
	if driver == nil {
		return nil, errors.New("neo4j driver is nil")
	}
	return &Neo4jStore{driver: driver, database: database}, nil
}

func (s *Neo4jStore) Save(ctx context.Context, snap conversation.Snapshot) (string, error) {
	if err := ValidateSessionID(snap.SessionID); err != nil {
		return "", err
	}
	config, err := json.Marshal(snap.Config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}

	session := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	defer session.Close(ctx)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return "", fmt.Errorf("neo4j begin tx: %w", err)
	}
	defer tx.Close(ctx)

	steps := []struct {
		query  string
		params map[string]any
	}{
		{neo4jUpsertSessionCypher, map[string]any{
			"id":         snap.SessionID,
			"created_at": formatTime(snap.CreatedAt),
			"updated_at": formatTime(snap.UpdatedAt),
			"config":     string(config),
		}},
		{neo4jDeleteMessagesCypher, map[string]any{"id": snap.SessionID}},
		{neo4jCreateMessagesCypher, map[string]any{"id": snap.SessionID, "messages": neo4jMessageParams(snap.Messages)}},
	}
	for _, step := range steps {
		res, err := tx.Run(ctx, step.query, step.params)
		if err != nil {
			_ = tx.Rollback(ctx)
			return "", fmt.Errorf("neo4j save %s: %w", snap.SessionID, err)
		}
		if res != nil {
			_ = res.Close(ctx)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return "", fmt.Errorf("neo4j commit: %w", err)
	}
	return "neo4j://Session/" + snap.SessionID, nil
}

func (s *Neo4jStore) Load(ctx context.Context, sessionID string) (conversation.Snapshot, error) {
	session := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: s.database})
	defer session.Close(ctx)

	params := map[string]any{"id": sessionID}
	head, err := session.Run(ctx, neo4jSessionQuery, params)
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("neo4j load %s: %w", sessionID, err)
	}
	if !head.Next(ctx) {
		err := head.Err()
		_ = head.Close(ctx)
		if err != nil {
			return conversation.Snapshot{}, err
		}
		return conversation.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	snap, err := neo4jSessionFromRecord(sessionID, head.Record())
	_ = head.Close(ctx)
	if err != nil {
		return conversation.Snapshot{}, err
	}

	rows, err := session.Run(ctx, neo4jMessagesQuery, params)
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("neo4j load messages %s: %w", sessionID, err)
	}
	defer rows.Close(ctx)
	for rows.Next(ctx) {
		msg, err := neo4jMessageFromRecord(rows.Record())
		if err != nil {
			return conversation.Snapshot{}, fmt.Errorf("session %s: %w", sessionID, err)
		}
		snap.Messages = append(snap.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return conversation.Snapshot{}, err
	}
	return snap, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func neo4jMessageParams(msgs []conversation.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for i, m := range msgs {
		out = append(out, map[string]any{
			"seq":       int64(i),
			"role":      string(m.Role),
			"content":   m.Content,
			"timestamp": formatTime(m.Timestamp),
			"reasoning": m.Reasoning,
			"name":      m.Name,
			"call_id":   m.CallID,
		})
	}
	return out
}

func neo4jSessionFromRecord(id string, rec neo4jRecord) (conversation.Snapshot, error) {
	snap := conversation.Snapshot{SessionID: id, Messages: []conversation.Message{}}
	var err error
	if snap.CreatedAt, err = parseTime(recordString(rec, "created_at")); err != nil {
		return snap, fmt.Errorf("session %s: created_at: %w", id, err)
	}
	if snap.UpdatedAt, err = parseTime(recordString(rec, "updated_at")); err != nil {
		return snap, fmt.Errorf("session %s: updated_at: %w", id, err)
	}
	if raw := recordString(rec, "config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.Config); err != nil {
			return snap, fmt.Errorf("session %s: config: %w", id, err)
		}
	}
	return snap, nil
}

func neo4jMessageFromRecord(rec neo4jRecord) (conversation.Message, error) {
	ts, err := parseTime(recordString(rec, "timestamp"))
	if err != nil {
		return conversation.Message{}, fmt.Errorf("message timestamp: %w", err)
	}
	return conversation.Message{
		Role:      conversation.Role(recordString(rec, "role")),
		Content:   recordString(rec, "content"),
		Timestamp: ts,
		Reasoning: recordString(rec, "reasoning"),
		Name:      recordString(rec, "name"),
		CallID:    recordString(rec, "call_id"),
	}, nil
}

func recordString(rec neo4jRecord, key string) string {
	if rec == nil {
		return ""
	}
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

type driverWrapper struct {
	driver neo4j.DriverWithContext
}

// WrapNeo4jDriver adapts the official Neo4j Go driver for NewNeo4jStore.
func WrapNeo4jDriver(driver neo4j.DriverWithContext) neo4jDriver {
	if driver == nil {
		return nil
	}
	return &driverWrapper{driver: driver}
}

func (d *driverWrapper) NewSession(ctx context.Context, config Neo4jSessionConfig) neo4jSession {
	sessionConfig := neo4j.SessionConfig{DatabaseName: config.DatabaseName}
	switch config.AccessMode {
	case AccessModeWrite:
		sessionConfig.AccessMode = neo4j.AccessModeWrite
	case AccessModeRead:
		sessionConfig.AccessMode = neo4j.AccessModeRead
	}
	return &sessionWrapper{session: d.driver.NewSession(ctx, sessionConfig)}
}

func (d *driverWrapper) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

type sessionWrapper struct {
	session neo4j.SessionWithContext
}

func (s *sessionWrapper) BeginTransaction(ctx context.Context) (neo4jTransaction, error) {
	tx, err := s.session.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return &transactionWrapper{tx: tx}, nil
}

func (s *sessionWrapper) Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error) {
	res, err := s.session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return &resultWrapper{result: res}, nil
}

func (s *sessionWrapper) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

type transactionWrapper struct {
	tx neo4j.ExplicitTransaction
}

func (t *transactionWrapper) Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error) {
	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return &resultWrapper{result: res}, nil
}

func (t *transactionWrapper) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }
func (t *transactionWrapper) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
func (t *transactionWrapper) Close(ctx context.Context) error { return t.tx.Close(ctx) }

type resultWrapper struct {
	result neo4j.ResultWithContext
}

func (r *resultWrapper) Next(ctx context.Context) bool { return r.result.Next(ctx) }

func (r *resultWrapper) Record() neo4jRecord {
	rec := r.result.Record()
	if rec == nil {
		return nil
	}
	return rec
}

func (r *resultWrapper) Err() error { return r.result.Err() }

// Close consumes what is left of the result.
func (r *resultWrapper) Close(ctx context.Context) error {
	_, err := r.result.Consume(ctx)
	return err
}
