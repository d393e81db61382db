// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package prefs persists the user's local boolean preferences in a small
// JSON file.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/logging"
)

// KeyShare is the "share my location" preference.
const KeyShare = "share"

// Defaults for keys that were never written.
var defaults = map[string]bool{
	KeyShare: true,
}

// Store is a file-backed map of boolean preferences. An empty path keeps
// values in memory only.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]bool
}

// Open loads path. A missing file is an empty store; an unreadable one is
// logged and treated as empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]bool)}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Preferences file is corrupt, starting empty")
		s.values = make(map[string]bool)
	}
	return s, nil
}

// Bool returns the stored value, or the key's default.
func (s *Store) Bool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return defaults[key]
}

// Share returns the share-location preference.
func (s *Store) Share() bool { return s.Bool(KeyShare) }

// SetBool stores value and persists the file. It reports whether the value
// changed.
func (s *Store) SetBool(key string, value bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.values[key]
	if !ok {
		prev = defaults[key]
	}
	s.values[key] = value
	if err := s.persistLocked(); err != nil {
		return prev != value, err
	}
	return prev != value, nil
}

// SetShare stores the share-location preference.
func (s *Store) SetShare(value bool) (bool, error) { return s.SetBool(KeyShare, value) }

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close preferences: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename preferences: %w", err)
	}
	return nil
}
