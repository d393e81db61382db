// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package geocode

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tomtom215/mirrortracker/internal/metrics"
	"github.com/tomtom215/mirrortracker/internal/models"
)

// cellScale rounds coordinates to 4 decimals, about 11 m of latitude.
const cellScale = 1e4

type cellKey struct {
	lat, lng int64
}

func keyFor(lat, lng float64) cellKey {
	return cellKey{lat: int64(math.Round(lat * cellScale)), lng: int64(math.Round(lng * cellScale))}
}

// lruEntry is a node in the recency list.
type lruEntry struct {
	key       cellKey
	addr      models.Address
	expiresAt time.Time
	prev      *lruEntry
	next      *lruEntry
}

// addressLRU is a fixed-capacity LRU with per-entry TTL. Expired entries
// are dropped lazily on access.
type addressLRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[cellKey]*lruEntry
	// head.next is most recently used, tail.prev least.
	head *lruEntry
	tail *lruEntry
	now  func() time.Time
}

func newAddressLRU(capacity int, ttl time.Duration) *addressLRU {
	c := &addressLRU{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[cellKey]*lruEntry, capacity),
		head:     &lruEntry{},
		tail:     &lruEntry{},
		now:      time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

func (c *addressLRU) get(key cellKey) (models.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		metrics.GeocodeCacheLookups.WithLabelValues("miss").Inc()
		return models.Address{}, false
	}
	if c.now().After(e.expiresAt) {
		c.remove(e)
		metrics.GeocodeCacheLookups.WithLabelValues("miss").Inc()
		return models.Address{}, false
	}
	c.unlink(e)
	c.pushFront(e)
	metrics.GeocodeCacheLookups.WithLabelValues("hit").Inc()
	return e.addr, true
}

func (c *addressLRU) add(key cellKey, addr models.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if e, ok := c.items[key]; ok {
		e.addr = addr
		e.expiresAt = expiresAt
		c.unlink(e)
		c.pushFront(e)
		return
	}

	e := &lruEntry{key: key, addr: addr, expiresAt: expiresAt}
	c.pushFront(e)
	c.items[key] = e
	for len(c.items) > c.capacity {
		c.remove(c.tail.prev)
	}
}

func (c *addressLRU) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *addressLRU) pushFront(e *lruEntry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *addressLRU) unlink(e *lruEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *addressLRU) remove(e *lruEntry) {
	c.unlink(e)
	delete(c.items, e.key)
}

// Cached memoizes successful lookups of another Geocoder. Failures are never
// cached, so a recovered provider is retried on the next fix.
type Cached struct {
	next  Geocoder
	cache *addressLRU
}

// NewCached wraps next. A non-positive size returns next unchanged.
func NewCached(next Geocoder, size int, ttl time.Duration) Geocoder {
	if size <= 0 {
		return next
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{next: next, cache: newAddressLRU(size, ttl)}
}

// Available reports the wrapped geocoder's availability.
func (c *Cached) Available() bool { return c.next.Available() }

// Lookup returns the cached address for the coordinate's cell, or asks the
// wrapped geocoder.
func (c *Cached) Lookup(ctx context.Context, lat, lng float64) (models.Address, error) {
	key := keyFor(lat, lng)
	if addr, ok := c.cache.get(key); ok {
		return addr, nil
	}
	addr, err := c.next.Lookup(ctx, lat, lng)
	if err != nil {
		return addr, err
	}
	c.cache.add(key, addr)
	return addr, nil
}
