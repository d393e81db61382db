// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package wal

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/logging"
)

// Compactor periodically removes delivered and expired entries and runs
// BadgerDB garbage collection.
type Compactor struct {
	outbox   *Outbox
	interval time.Duration
	entryTTL time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu               sync.Mutex
	running          bool
	lastRun          time.Time
	lastEntriesCount int64
}

// CompactorStats contains statistics about compaction.
type CompactorStats struct {
	LastRun          time.Time
	LastEntriesCount int64
}

// NewCompactor creates a compactor for outbox.
func NewCompactor(outbox *Outbox) *Compactor {
	cfg := outbox.Config()
	return &Compactor{
		outbox:   outbox,
		interval: cfg.CompactInterval,
		entryTTL: cfg.EntryTTL,
	}
}

// Start begins the background compaction loop.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(loopCtx)

	logging.Info().Dur("interval", c.interval).Msg("Outbox compactor started")
	return nil
}

// Stop stops the loop and waits for it to exit.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Outbox compactor stopped")
}

// IsRunning returns whether the compactor is active.
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Compactor) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunNow()
		}
	}
}

// RunNow runs one compaction pass and returns the number of entries removed.
func (c *Compactor) RunNow() int64 {
	start := time.Now()

	delivered, err := c.deleteDelivered()
	if err != nil {
		logging.Error().Err(err).Msg("Outbox compaction failed to delete delivered entries")
	}
	expired, err := c.deleteExpired()
	if err != nil {
		logging.Error().Err(err).Msg("Outbox compaction failed to delete expired entries")
	}
	if err := c.outbox.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Outbox compaction GC error")
	}

	total := delivered + expired
	c.mu.Lock()
	c.lastRun = time.Now()
	c.lastEntriesCount = total
	c.mu.Unlock()

	walCompactionsTotal.Inc()
	if total > 0 {
		walEntriesCompacted.Add(float64(total))
		logging.Info().
			Int64("delivered", delivered).
			Int64("expired", expired).
			Dur("duration", time.Since(start)).
			Msg("Outbox compaction removed entries")
	}
	return total
}

func (c *Compactor) deleteDelivered() (int64, error) {
	if c.outbox.isClosed() {
		return 0, ErrClosed
	}
	var count int64
	err := c.outbox.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		prefix := []byte(prefixDelivered)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func (c *Compactor) deleteExpired() (int64, error) {
	if c.entryTTL <= 0 {
		return 0, nil
	}
	if c.outbox.isClosed() {
		return 0, ErrClosed
	}

	var count int64
	cutoff := time.Now().Add(-c.entryTTL)
	err := c.outbox.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)

		var keys [][]byte
		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				continue
			}
			if entry.CreatedAt.Before(cutoff) {
				keys = append(keys, item.KeyCopy(nil))
			}
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
			walExpiredTotal.Inc()
		}
		return nil
	})
	return count, err
}

// GetStats returns compaction statistics.
func (c *Compactor) GetStats() CompactorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CompactorStats{LastRun: c.lastRun, LastEntriesCount: c.lastEntriesCount}
}
