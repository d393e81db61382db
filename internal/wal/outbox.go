// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package wal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/mirrortracker/internal/config"
	"github.com/tomtom215/mirrortracker/internal/logging"
)

// Errors returned by the outbox.
var (
	ErrClosed        = errors.New("outbox is closed")
	ErrEmptyPath     = errors.New("path cannot be empty")
	ErrEntryNotFound = errors.New("entry not found")
	// ErrSuperseded means a newer write replaced the entry before it was confirmed.
	ErrSuperseded = errors.New("entry superseded by a newer write")
)

// Entry is one queued remote write.
type Entry struct {
	// ID identifies this particular write. A newer write to the same path
	// gets a new ID.
	ID string `json:"id"`

	// Path is the remote store key, e.g. "users.<uid>.location".
	Path string `json:"path"`

	// Value is the JSON-encoded value to write.
	Value json.RawMessage `json:"value"`

	CreatedAt     time.Time  `json:"created_at"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt time.Time  `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

// Stats contains outbox counters for status reporting.
type Stats struct {
	PendingCount   int64
	DeliveredCount int64
	TotalPuts      int64
	TotalConfirms  int64
	TotalRetries   int64
	LastCompaction time.Time
	DBSizeBytes    int64
}

// Key prefixes. Pending entries are keyed by path, delivered ones by ID.
const (
	prefixPending   = "pending:"
	prefixDelivered = "delivered:"
)

// Outbox is a BadgerDB-backed queue of remote writes awaiting delivery.
type Outbox struct {
	db     *badger.DB
	config config.OutboxConfig

	totalPuts     atomic.Int64
	totalConfirms atomic.Int64
	totalRetries  atomic.Int64

	mu             sync.RWMutex
	closed         bool
	lastCompaction time.Time
}

// Open opens (or creates) the outbox database at cfg.Path.
func Open(cfg *config.OutboxConfig) (*Outbox, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("invalid outbox config: %w", ErrEmptyPath)
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(16 << 20).
		WithNumCompactors(2).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	ob := &Outbox{
		db:             db,
		config:         *cfg,
		lastCompaction: time.Now(),
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Outbox opened")
	return ob, nil
}

// Config returns the configuration the outbox was opened with.
func (o *Outbox) Config() config.OutboxConfig {
	return o.config
}

func (o *Outbox) isClosed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.closed
}

// Put queues value for path, replacing any pending write to the same path.
func (o *Outbox) Put(ctx context.Context, path string, value []byte) (string, error) {
	start := time.Now()
	defer func() {
		walWriteLatency.Observe(time.Since(start).Seconds())
	}()

	if o.isClosed() {
		return "", ErrClosed
	}
	if path == "" {
		return "", ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		Path:      path,
		Value:     json.RawMessage(value),
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		walWriteFailures.Inc()
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	err = o.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(prefixPending+path), data)
		if o.config.EntryTTL > 0 {
			e = e.WithTTL(o.config.EntryTTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		walWriteFailures.Inc()
		return "", fmt.Errorf("write to BadgerDB: %w", err)
	}

	o.totalPuts.Add(1)
	walWritesTotal.Inc()
	return entry.ID, nil
}

// Discard drops the pending write for path, if any. Called when a direct
// write to the store made the queued value stale.
func (o *Outbox) Discard(ctx context.Context, path string) error {
	if o.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(prefixPending + path))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete pending entry: %w", err)
		}
		return nil
	})
}

// DiscardEntry drops write id for path. Like Confirm it returns
// ErrSuperseded when a newer write owns the path, which is left queued.
func (o *Outbox) DiscardEntry(ctx context.Context, path, id string) error {
	if o.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(prefixPending + path)
	return o.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, key)
		if err != nil {
			return err
		}
		if entry.ID != id {
			return ErrSuperseded
		}
		return txn.Delete(key)
	})
}

// CheckPending returns nil when write id is still the pending write for
// path, ErrSuperseded when a newer write replaced it, and ErrEntryNotFound
// when nothing is queued for path any more.
func (o *Outbox) CheckPending(ctx context.Context, path, id string) error {
	entry, err := o.Get(ctx, path)
	if err != nil {
		return err
	}
	if entry.ID != id {
		return ErrSuperseded
	}
	return nil
}

// Confirm marks the write id for path as delivered. It returns ErrSuperseded
// when the pending entry for path now belongs to a newer write, which stays
// queued.
func (o *Outbox) Confirm(ctx context.Context, path, id string) error {
	if o.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pendingKey := []byte(prefixPending + path)
	err := o.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, pendingKey)
		if err != nil {
			return err
		}
		if entry.ID != id {
			return ErrSuperseded
		}

		now := time.Now().UTC()
		entry.DeliveredAt = &now
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal delivered entry: %w", err)
		}
		if err := txn.Set([]byte(prefixDelivered+id), data); err != nil {
			return fmt.Errorf("set delivered entry: %w", err)
		}
		if err := txn.Delete(pendingKey); err != nil {
			return fmt.Errorf("delete pending entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.totalConfirms.Add(1)
	walConfirmsTotal.Inc()
	return nil
}

// RecordAttempt bumps the attempt count of write id for path after a failed delivery.
func (o *Outbox) RecordAttempt(ctx context.Context, path, id, lastError string) error {
	if o.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(prefixPending + path)
	err := o.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, key)
		if err != nil {
			return err
		}
		if entry.ID != id {
			return ErrSuperseded
		}
		entry.Attempts++
		entry.LastAttemptAt = time.Now().UTC()
		entry.LastError = lastError

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		e := badger.NewEntry(key, data)
		if o.config.EntryTTL > 0 {
			remaining := o.config.EntryTTL - time.Since(entry.CreatedAt)
			if remaining <= 0 {
				remaining = time.Second
			}
			e = e.WithTTL(remaining)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return err
	}

	o.totalRetries.Add(1)
	walRetriesTotal.Inc()
	return nil
}

// Pending returns all queued writes, oldest path first by key order.
func (o *Outbox) Pending(ctx context.Context) ([]*Entry, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}

	var entries []*Entry
	err := o.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Outbox failed to unmarshal entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	walPendingEntries.Set(float64(len(entries)))
	return entries, nil
}

// Get returns the pending write for path.
func (o *Outbox) Get(ctx context.Context, path string) (*Entry, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entry *Entry
	err := o.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = getEntry(txn, []byte(prefixPending+path))
		return err
	})
	return entry, err
}

func getEntry(txn *badger.Txn, key []byte) (*Entry, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	var entry Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Stats returns counters and current entry counts.
func (o *Outbox) Stats() Stats {
	stats := Stats{
		TotalPuts:     o.totalPuts.Load(),
		TotalConfirms: o.totalConfirms.Load(),
		TotalRetries:  o.totalRetries.Load(),
	}

	o.mu.RLock()
	stats.LastCompaction = o.lastCompaction
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return stats
	}

	_ = o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefixPending)); it.ValidForPrefix([]byte(prefixPending)); it.Next() {
			stats.PendingCount++
		}
		for it.Seek([]byte(prefixDelivered)); it.ValidForPrefix([]byte(prefixDelivered)); it.Next() {
			stats.DeliveredCount++
		}
		return nil
	})

	lsm, vlog := o.db.Size()
	stats.DBSizeBytes = lsm + vlog

	walPendingEntries.Set(float64(stats.PendingCount))
	walDeliveredEntries.Set(float64(stats.DeliveredCount))
	walDBSizeBytes.Set(float64(stats.DBSizeBytes))
	return stats
}

// RunGC runs one BadgerDB value log garbage collection pass.
func (o *Outbox) RunGC() error {
	if o.isClosed() {
		return ErrClosed
	}
	err := o.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("value log GC: %w", err)
	}

	o.mu.Lock()
	o.lastCompaction = time.Now()
	o.mu.Unlock()
	return nil
}

// Close closes the database. Further calls return ErrClosed.
func (o *Outbox) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	if err := o.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Outbox closed")
	return nil
}
