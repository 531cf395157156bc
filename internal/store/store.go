// Package store provides crash-safe ledger persistence using JSON files.
//
// Each user's state is stored as a separate file: user_<id>.json. Writes use
// atomic file replacement (write to .tmp, then rename) to prevent corruption
// from partial writes or crashes mid-save. The entrypoint saves all users on
// shutdown and restores them on startup, so balances and positions survive
// restarts.
package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tradesim/internal/ledger"
)

// Store persists user states to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string     // directory containing user_*.json files
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// fileFor maps a user id to its file path. Ids are URL-escaped so arbitrary
// header-supplied identities cannot traverse out of the store directory.
func (s *Store) fileFor(userID string) string {
	return filepath.Join(s.dir, "user_"+url.PathEscape(userID)+".json")
}

// SaveUser atomically persists one user's state. It writes to a .tmp file
// first, then renames over the target so the file is never left partial.
func (s *Store) SaveUser(snap ledger.UserSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	path := s.fileFor(snap.UserID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadAll reads every persisted user state. A missing or empty directory
// yields no snapshots and no error.
func (s *Store) LoadAll() ([]ledger.UserSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var snaps []ledger.UserSnapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "user_") || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var snap ledger.UserSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", name, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
