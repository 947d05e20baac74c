package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	agent "github.com/Protocol-Lattice/toolloop"
	"github.com/Protocol-Lattice/toolloop/pkg/store"
)

// ErrSessionExists is returned when NewSession reuses an active id.
var ErrSessionExists = errors.New("session already active")

type sessionManager struct {
	runtime *Runtime

	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionManager(rt *Runtime) *sessionManager {
	return &sessionManager{
		runtime:  rt,
		sessions: make(map[string]*Session),
	}
}

func (m *sessionManager) newSession(id string) (*Session, error) {
	if id != "" {
		if err := store.ValidateSessionID(id); err != nil {
			return nil, err
		}
	}
	a, err := agent.New(m.runtime.options(id))
	if err != nil {
		return nil, err
	}
	session := &Session{agent: a, limiter: m.runtime.limiter}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID()]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, session.ID())
	}
	m.sessions[session.ID()] = session
	return session, nil
}

func (m *sessionManager) getSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return session, nil
	}

	a, err := agent.Resume(ctx, m.runtime.store, id, m.runtime.options(""))
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	session = &Session{agent: a, limiter: m.runtime.limiter}
	m.sessions[id] = session
	return session, nil
}

func (m *sessionManager) removeSession(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *sessionManager) activeIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
