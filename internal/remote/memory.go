// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/metrics"
)

// MemoryStore is an in-process Store. While offline, writes are held and
// applied on GoOnline, mirroring how a networked store queues them.
type MemoryStore struct {
	mu        sync.Mutex
	values    map[string][]byte
	held      map[string][]byte
	watches   map[string]map[*memoryWatch]struct{}
	connected bool
	closed    bool

	goOnlineCalls int
	setCalls      int
}

// NewMemoryStore returns a connected, empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:    make(map[string][]byte),
		held:      make(map[string][]byte),
		watches:   make(map[string]map[*memoryWatch]struct{}),
		connected: true,
	}
}

type memoryWatch struct {
	store *MemoryStore
	path  string
	ch    chan []byte
	done  chan struct{}
	once  sync.Once
}

func (w *memoryWatch) Stop() {
	w.once.Do(func() {
		w.store.mu.Lock()
		delete(w.store.watches[w.path], w)
		w.store.mu.Unlock()
		close(w.done)
	})
}

func (w *memoryWatch) run(fn WatchFunc) {
	for {
		select {
		case <-w.done:
			return
		case v := <-w.ch:
			select {
			case <-w.done:
				return
			default:
			}
			metrics.RemoteWatchEventsTotal.WithLabelValues(Kind(w.path)).Inc()
			fn(v)
		}
	}
}

// Watch delivers the current value, then every change, on a dedicated goroutine.
func (m *MemoryStore) Watch(ctx context.Context, path string, fn WatchFunc) (Subscription, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	w := &memoryWatch{
		store: m,
		path:  path,
		ch:    make(chan []byte, 256),
		done:  make(chan struct{}),
	}
	if m.watches[path] == nil {
		m.watches[path] = make(map[*memoryWatch]struct{})
	}
	m.watches[path][w] = struct{}{}
	w.ch <- m.values[path]

	go w.run(fn)
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()
	return w, nil
}

// Set writes value, or holds it while offline.
func (m *MemoryStore) Set(_ context.Context, path string, value any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.setCalls++

	if !m.connected {
		m.held[path] = data
		metrics.RecordRemoteWrite(Kind(path), "queued")
		return nil
	}
	delete(m.held, path)
	m.applyLocked(path, data)
	metrics.RecordRemoteWrite(Kind(path), "ok")
	return nil
}

// Delete removes path and notifies watchers with a nil value.
func (m *MemoryStore) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(path, nil)
}

func (m *MemoryStore) applyLocked(path string, data []byte) {
	if data == nil {
		delete(m.values, path)
	} else {
		m.values[path] = data
	}
	for w := range m.watches[path] {
		select {
		case w.ch <- data:
		case <-w.done:
		}
	}
}

// Get returns the stored value at path.
func (m *MemoryStore) Get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[path]
	return v, ok
}

// Connected reports the simulated connection state.
func (m *MemoryStore) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected simulates losing or regaining the connection. Regaining it
// flushes held writes.
func (m *MemoryStore) SetConnected(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = up
	if up {
		m.flushLocked()
	}
	metrics.SetConnected(up)
}

// GoOnline reconnects and flushes held writes.
func (m *MemoryStore) GoOnline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goOnlineCalls++
	if m.closed || m.connected {
		return
	}
	m.connected = true
	m.flushLocked()
	metrics.SetConnected(true)
}

func (m *MemoryStore) flushLocked() {
	for path, data := range m.held {
		m.applyLocked(path, data)
	}
	clear(m.held)
}

// GoOnlineCalls returns how often GoOnline was called.
func (m *MemoryStore) GoOnlineCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goOnlineCalls
}

// SetCalls returns how many writes were attempted.
func (m *MemoryStore) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}

// Close stops all watches.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var all []*memoryWatch
	for _, ws := range m.watches {
		for w := range ws {
			all = append(all, w)
		}
	}
	m.mu.Unlock()

	for _, w := range all {
		w.Stop()
	}
	return nil
}
