// Package store persists conversations. Every backend keeps roles, content,
// timestamps, the session id and the configuration snapshot unchanged across
// a save/load round trip.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

var (
	// ErrNotFound is returned by Load for unknown sessions.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidSessionID is returned for ids that cannot name a session.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Store saves and loads conversation snapshots.
type Store interface {
	// Save writes the snapshot and returns where it was written.
	Save(ctx context.Context, snap conversation.Snapshot) (string, error)
	Load(ctx context.Context, sessionID string) (conversation.Snapshot, error)
}

// ValidateSessionID accepts ids made of letters, digits, '-', '_' and '.',
// which keeps them usable as file names and keys in every backend.
func ValidateSessionID(id string) error {
	if id == "" || id == "." || id == ".." || len(id) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c == '-' || c == '_' || c == '.':
		case '0' <= c && c <= '9', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
		}
	}
	return nil
}

func cloneSnapshot(s conversation.Snapshot) conversation.Snapshot {
	out := s
	out.Messages = slices.Clone(s.Messages)
	out.Config.Tools = slices.Clone(s.Config.Tools)
	out.Config.Extra = maps.Clone(s.Config.Extra)
	return out
}

func encodeSnapshot(s conversation.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.SessionID, err)
	}
	return data, nil
}

func decodeSnapshot(id string, data []byte) (conversation.Snapshot, error) {
	var s conversation.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return conversation.Snapshot{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}
