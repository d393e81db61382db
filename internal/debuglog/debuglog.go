// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package debuglog is a bounded, crash-durable, append-only record of
// lifecycle and diagnostic lines meant to be shown to the user.
//
// The log keeps at most Capacity entries in a circular buffer. Every append
// rewrites the whole buffer, oldest first, as a JSON array so the file on disk
// always reflects the latest state. Appends never fail from the caller's point
// of view: persistence errors are counted and logged, and the in-memory buffer
// still advances.
package debuglog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
	_ "time/tzdata" // fixed-zone prefixes must work without system zoneinfo

	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/metrics"
)

// DefaultCapacity is the number of lines kept when Config.Capacity is zero.
const DefaultCapacity = 100

// DefaultTimezone is the zone used for line prefixes when Config.Timezone is empty.
const DefaultTimezone = "America/Los_Angeles"

const prefixLayout = "2006-01-02 15:04:05"

// Observer receives the full ordered contents after each persisted append.
// It runs while the log is locked and must not call back into the Log.
type Observer func(lines []string)

// Config configures a Log.
type Config struct {
	Path     string
	Capacity int
	Timezone string
}

// Log is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	path     string
	capacity int
	loc      *time.Location
	entries  []string
	next     int // slot overwritten by the next append once full
	observer Observer

	now func() time.Time
}

// Open loads the persisted log at cfg.Path, creating an empty log when the
// file is absent or empty. Only an unknown timezone is an error; unreadable
// or corrupt files start an empty log.
func Open(cfg Config) (*Log, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("debug log timezone %q: %w", cfg.Timezone, err)
	}

	l := &Log{
		path:     cfg.Path,
		capacity: cfg.Capacity,
		loc:      loc,
		entries:  make([]string, 0, cfg.Capacity),
		now:      time.Now,
	}
	l.load()
	return l, nil
}

func (l *Log) load() {
	if l.path == "" {
		return
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn().Err(err).Str("path", l.path).Msg("Debug log unreadable, starting empty")
		}
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	var persisted []string
	if err := json.Unmarshal(data, &persisted); err != nil {
		logging.Warn().Err(err).Str("path", l.path).Msg("Debug log corrupt, starting empty")
		return
	}
	if len(persisted) > l.capacity {
		persisted = persisted[len(persisted)-l.capacity:]
	}
	l.entries = append(l.entries, persisted...)
	l.next = 0
}

// Append records line with a timestamp prefix, persists the buffer, and
// notifies the observer if the write reached disk.
func (l *Log) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.now().In(l.loc).Format(prefixLayout) + ": " + line
	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, entry)
	} else {
		l.entries[l.next] = entry
		l.next = (l.next + 1) % l.capacity
	}

	ordered := l.orderedLocked()
	if err := l.persistLocked(ordered); err != nil {
		metrics.RecordDebugLogAppend(false)
		logging.Debug().Err(err).Str("path", l.path).Msg("Debug log persist failed")
		return
	}
	metrics.RecordDebugLogAppend(true)

	if l.observer != nil {
		l.observer(ordered)
	}
}

// Logf formats and appends a line.
func (l *Log) Logf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Lines returns a snapshot of the log, oldest first.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.orderedLocked()
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Capacity returns the maximum number of entries held.
func (l *Log) Capacity() int {
	return l.capacity
}

// SetObserver installs fn as the single observer. A nil fn clears it.
func (l *Log) SetObserver(fn Observer) {
	l.mu.Lock()
	l.observer = fn
	l.mu.Unlock()
}

func (l *Log) orderedLocked() []string {
	out := make([]string, 0, len(l.entries))
	if len(l.entries) < l.capacity {
		return append(out, l.entries...)
	}
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// persistLocked replaces the file via a temp file and rename so a crash
// leaves either the old or the new contents.
func (l *Log) persistLocked(ordered []string) error {
	if l.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".debuglog-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
