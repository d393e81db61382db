// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package geocode

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/mirrortracker/internal/models"
)

type countingGeocoder struct {
	calls atomic.Int32
	err   error
}

func (g *countingGeocoder) Lookup(_ context.Context, lat, _ float64) (models.Address, error) {
	g.calls.Add(1)
	if g.err != nil {
		return models.Address{}, g.err
	}
	if lat > 0 {
		return models.Address{Locality: "North"}, nil
	}
	return models.Address{Locality: "South"}, nil
}

func (g *countingGeocoder) Available() bool { return true }

func TestNewCachedZeroSizeReturnsInner(t *testing.T) {
	t.Parallel()
	inner := &countingGeocoder{}
	if got := NewCached(inner, 0, time.Hour); got != Geocoder(inner) {
		t.Errorf("NewCached with size 0 should return the wrapped geocoder")
	}
}

func TestCachedSameCellHits(t *testing.T) {
	t.Parallel()
	inner := &countingGeocoder{}
	g := NewCached(inner, 8, time.Hour)
	ctx := context.Background()

	first, err := g.Lookup(ctx, 37.77490, -122.41940)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	// Within the same ~11 m cell.
	second, err := g.Lookup(ctx, 37.77491, -122.41941)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if first != second {
		t.Errorf("cached address = %+v, want %+v", second, first)
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("inner calls = %d, want 1", n)
	}

	if _, err := g.Lookup(ctx, -33.8688, 151.2093); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if n := inner.calls.Load(); n != 2 {
		t.Errorf("inner calls after new cell = %d, want 2", n)
	}
	if !g.Available() {
		t.Error("Available() = false, want true")
	}
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	t.Parallel()
	inner := &countingGeocoder{err: ErrNoResults}
	g := NewCached(inner, 8, time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := g.Lookup(context.Background(), 1, 1); err != ErrNoResults {
			t.Fatalf("Lookup error = %v, want ErrNoResults", err)
		}
	}
	if n := inner.calls.Load(); n != 2 {
		t.Errorf("inner calls = %d, want 2", n)
	}
}

func TestAddressLRUEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()
	c := newAddressLRU(2, time.Hour)
	a, b, d := keyFor(1, 1), keyFor(2, 2), keyFor(3, 3)

	c.add(a, models.Address{Locality: "a"})
	c.add(b, models.Address{Locality: "b"})
	if _, ok := c.get(a); !ok {
		t.Fatal("expected a to be cached")
	}
	c.add(d, models.Address{Locality: "d"})

	if _, ok := c.get(b); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.get(a); !ok {
		t.Error("a should survive eviction")
	}
	if c.len() != 2 {
		t.Errorf("len = %d, want 2", c.len())
	}
}

func TestAddressLRUExpires(t *testing.T) {
	t.Parallel()
	c := newAddressLRU(4, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := keyFor(10, 20)
	c.add(key, models.Address{Locality: "x"})
	now = now.Add(2 * time.Minute)

	if _, ok := c.get(key); ok {
		t.Error("expired entry returned")
	}
	if c.len() != 0 {
		t.Errorf("len = %d, want 0", c.len())
	}
}
