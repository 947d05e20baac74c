package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]conversation.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]conversation.Snapshot)}
}

func (m *MemoryStore) Save(_ context.Context, snap conversation.Snapshot) (string, error) {
	if err := ValidateSessionID(snap.SessionID); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[snap.SessionID] = cloneSnapshot(snap)
	return "memory://" + snap.SessionID, nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (conversation.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.sessions[sessionID]
	if !ok {
		return conversation.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return cloneSnapshot(snap), nil
}

// Len reports the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
