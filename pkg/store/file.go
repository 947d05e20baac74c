package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// FileStore writes one JSON document per session under <Dir>/sessions.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (f *FileStore) path(sessionID string) string {
	return filepath.Join(f.Dir, "sessions", sessionID+".json")
}

// Save writes the snapshot atomically: a temp file in the same directory is
// renamed over the previous version.
func (f *FileStore) Save(ctx context.Context, snap conversation.Snapshot) (string, error) {
	if err := ValidateSessionID(snap.SessionID); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := f.path(snap.SessionID)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), snap.SessionID+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("replace session file: %w", err)
	}
	return target, nil
}

func (f *FileStore) Load(ctx context.Context, sessionID string) (conversation.Snapshot, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return conversation.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return conversation.Snapshot{}, err
	}
	data, err := os.ReadFile(f.path(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return conversation.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return conversation.Snapshot{}, err
	}
	var snap conversation.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return conversation.Snapshot{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return snap, nil
}

// List returns the ids of the saved sessions.
func (f *FileStore) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(f.Dir, "sessions", "*.json"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		ids = append(ids, base[:len(base)-len(".json")])
	}
	return ids, nil
}
