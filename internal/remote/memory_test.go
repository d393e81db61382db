// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package remote

import (
	"context"
	"errors"
	"testing"
	"time"
)

// collector gathers watch snapshots for assertions.
type collector struct {
	ch chan []byte
}

func newCollector() *collector { return &collector{ch: make(chan []byte, 16)} }

func (c *collector) fn(v []byte) { c.ch <- v }

func (c *collector) next(t *testing.T) []byte {
	t.Helper()
	select {
	case v := <-c.ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch snapshot")
		return nil
	}
}

func (c *collector) none(t *testing.T) {
	t.Helper()
	select {
	case v := <-c.ch:
		t.Fatalf("unexpected snapshot %s", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryWatchDeliversInitialAndUpdates(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	c := newCollector()
	sub, err := s.Watch(ctx, PathShowPrivateInfo, c.fn)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer sub.Stop()

	if v := c.next(t); v != nil {
		t.Errorf("initial snapshot = %s, want nil", v)
	}
	if err := s.Set(ctx, PathShowPrivateInfo, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v := c.next(t); string(v) != "true" {
		t.Errorf("snapshot = %s, want true", v)
	}

	s.Delete(PathShowPrivateInfo)
	if v := c.next(t); v != nil {
		t.Errorf("snapshot after delete = %s, want nil", v)
	}
}

func TestMemoryWatchStop(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	c := newCollector()
	sub, _ := s.Watch(ctx, "a.b", c.fn)
	c.next(t)
	sub.Stop()
	sub.Stop()

	_ = s.Set(ctx, "a.b", 1)
	c.none(t)
}

func TestMemoryOfflineHoldsWrites(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	s.SetConnected(false)
	if s.Connected() {
		t.Fatal("Connected() = true after SetConnected(false)")
	}
	if err := s.Set(ctx, LocationPath("u1"), map[string]float64{"lat": 1}); err != nil {
		t.Fatalf("Set() while offline error = %v", err)
	}
	if _, ok := s.Get(LocationPath("u1")); ok {
		t.Error("offline write applied before reconnect")
	}

	s.GoOnline()
	if !s.Connected() {
		t.Error("GoOnline() did not reconnect")
	}
	if v, ok := s.Get(LocationPath("u1")); !ok || string(v) != `{"lat":1}` {
		t.Errorf("Get() after reconnect = %s, %v", v, ok)
	}
	if s.GoOnlineCalls() != 1 {
		t.Errorf("GoOnlineCalls() = %d, want 1", s.GoOnlineCalls())
	}
}

func TestMemoryWatchContextCancel(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	c := newCollector()
	if _, err := s.Watch(ctx, "a", c.fn); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	c.next(t)
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		n := len(s.watches["a"])
		s.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watch not removed after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryClosed(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	_ = s.Close()
	if err := s.Set(context.Background(), "a", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() error = %v, want ErrClosed", err)
	}
	if _, err := s.Watch(context.Background(), "a", func([]byte) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Watch() error = %v, want ErrClosed", err)
	}
}

func TestValidatePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		ok   bool
	}{
		{PathGeofences, true},
		{LocationPath("abc-123"), true},
		{"", false},
		{"users.*.location", false},
		{"users..location", false},
		{"users.>", false},
		{"has space", false},
	}
	for _, tt := range tests {
		if err := ValidatePath(tt.path); (err == nil) != tt.ok {
			t.Errorf("ValidatePath(%q) error = %v, want ok=%v", tt.path, err, tt.ok)
		}
	}
}

func TestValidateUserID(t *testing.T) {
	t.Parallel()
	if err := ValidateUserID("Xy_9-z"); err != nil {
		t.Errorf("ValidateUserID() error = %v", err)
	}
	for _, uid := range []string{"", "a.b", "a*", "a b"} {
		if err := ValidateUserID(uid); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("ValidateUserID(%q) error = %v, want ErrInvalidUserID", uid, err)
		}
	}
}

func TestKind(t *testing.T) {
	t.Parallel()
	if got := Kind(ShareLocationPath("u")); got != "shareLocation" {
		t.Errorf("Kind() = %q", got)
	}
	if got := Kind("flat"); got != "flat" {
		t.Errorf("Kind(flat) = %q", got)
	}
}
