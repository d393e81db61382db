// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package wal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingDeliverer struct {
	mu        sync.Mutex
	fail      error
	delivered map[string]string
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{delivered: make(map[string]string)}
}

func (d *recordingDeliverer) Deliver(_ context.Context, path, _ string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.delivered[path] = string(value)
	return nil
}

func (d *recordingDeliverer) get(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.delivered[path]
	return v, ok
}

func TestRetryNowDelivers(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()
	d := newRecordingDeliverer()

	_, _ = ob.Put(ctx, "users.u1.location", []byte(`{"lat":1}`))
	_, _ = ob.Put(ctx, "users.u1.shareLocation", []byte(`true`))

	result := NewRetryLoop(ob, d).RetryNow(ctx)
	if result.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", result.Delivered)
	}
	if v, _ := d.get("users.u1.location"); v != `{"lat":1}` {
		t.Errorf("delivered location = %q", v)
	}
	entries, _ := ob.Pending(ctx)
	if len(entries) != 0 {
		t.Errorf("Pending() = %d entries after delivery", len(entries))
	}
}

func TestRetryNowFailureBacksOff(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()
	d := newRecordingDeliverer()
	d.fail = errors.New("store offline")

	_, _ = ob.Put(ctx, "p", []byte(`1`))
	loop := NewRetryLoop(ob, d)

	if result := loop.RetryNow(ctx); result.Failed != 1 {
		t.Fatalf("first pass Failed = %d, want 1", result.Failed)
	}
	if result := loop.RetryNow(ctx); result.Skipped != 1 {
		t.Errorf("second pass within backoff Skipped = %d, want 1", result.Skipped)
	}

	entry, _ := ob.Get(ctx, "p")
	if entry.Attempts != 1 || entry.LastError != "store offline" {
		t.Errorf("entry = %+v", entry)
	}

	d.mu.Lock()
	d.fail = nil
	d.mu.Unlock()
	loop.now = func() time.Time { return time.Now().Add(time.Hour) }
	if result := loop.RetryNow(ctx); result.Delivered != 1 {
		t.Errorf("pass after backoff Delivered = %d, want 1", result.Delivered)
	}
}

func TestRetryNowDropsExhaustedEntries(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()
	d := newRecordingDeliverer()
	d.fail = errors.New("store offline")

	id, _ := ob.Put(ctx, "p", []byte(`1`))
	for i := 0; i < 3; i++ {
		_ = ob.RecordAttempt(ctx, "p", id, "store offline")
	}

	if result := NewRetryLoop(ob, d).RetryNow(ctx); result.Expired != 1 {
		t.Errorf("Expired = %d, want 1", result.Expired)
	}
	if _, err := ob.Get(ctx, "p"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get() error = %v, want ErrEntryNotFound", err)
	}
}

func TestRetryNowDropsAgedEntries(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()

	_, _ = ob.Put(ctx, "p", []byte(`1`))
	loop := NewRetryLoop(ob, newRecordingDeliverer())
	loop.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if result := loop.RetryNow(ctx); result.Expired != 1 {
		t.Errorf("Expired = %d, want 1", result.Expired)
	}
}

func TestRetryNowKeepsNewerWrite(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()

	_, _ = ob.Put(ctx, "p", []byte(`1`))
	d := DelivererFunc(func(ctx context.Context, path, _ string, _ []byte) error {
		_, err := ob.Put(ctx, path, []byte(`2`))
		return err
	})

	result := NewRetryLoop(ob, d).RetryNow(ctx)
	if result.Superseded != 1 {
		t.Errorf("Superseded = %d, want 1", result.Superseded)
	}
	entry, err := ob.Get(ctx, "p")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(entry.Value) != "2" {
		t.Errorf("queued value = %s, want 2", entry.Value)
	}
}

func TestRetryNowNeverOverwritesDirectWrite(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()

	_, _ = ob.Put(ctx, "users.u1.location", []byte(`"old"`))

	var mu sync.Mutex
	remoteValue := ""
	d := DelivererFunc(func(ctx context.Context, path, id string, value []byte) error {
		// A fresh fix is written directly while this delivery is in flight.
		mu.Lock()
		remoteValue = `"new"`
		mu.Unlock()
		if err := ob.Discard(ctx, path); err != nil {
			return err
		}

		if err := ob.CheckPending(ctx, path, id); err != nil {
			return err
		}
		mu.Lock()
		remoteValue = string(value)
		mu.Unlock()
		return nil
	})

	result := NewRetryLoop(ob, d).RetryNow(ctx)
	if result.Superseded != 1 || result.Delivered != 0 || result.Failed != 0 {
		t.Errorf("result = %+v, want one superseded entry", result)
	}
	mu.Lock()
	defer mu.Unlock()
	if remoteValue != `"new"` {
		t.Errorf("remote value = %s, want the direct write to win", remoteValue)
	}
	if _, err := ob.Get(ctx, "users.u1.location"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get() error = %v, want ErrEntryNotFound", err)
	}
}

func TestRetryNowSupersededDeliveryRecordsNoAttempt(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()

	_, _ = ob.Put(ctx, "p", []byte(`1`))
	d := DelivererFunc(func(context.Context, string, string, []byte) error {
		return ErrSuperseded
	})

	if result := NewRetryLoop(ob, d).RetryNow(ctx); result.Superseded != 1 {
		t.Errorf("Superseded = %d, want 1", result.Superseded)
	}
	entry, err := ob.Get(ctx, "p")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", entry.Attempts)
	}
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()
	loop := &RetryLoop{}
	loop.config.RetryBackoff = time.Second

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{20, 5 * time.Minute},
		{100, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := loop.calculateBackoff(tt.attempts); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestRetryLoopStartStop(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()
	d := newRecordingDeliverer()
	_, _ = ob.Put(ctx, "p", []byte(`1`))

	loop := NewRetryLoop(ob, d)
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := loop.Start(ctx); err != nil {
		t.Errorf("second Start() error = %v", err)
	}
	if !loop.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := d.get("p"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("startup pass did not deliver the queued write")
		}
		time.Sleep(10 * time.Millisecond)
	}

	loop.Stop()
	loop.Stop()
	if loop.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestCompactorRemovesDelivered(t *testing.T) {
	t.Parallel()
	ob := openTestOutbox(t)
	ctx := context.Background()

	id, _ := ob.Put(ctx, "a", []byte(`1`))
	_ = ob.Confirm(ctx, "a", id)
	_, _ = ob.Put(ctx, "b", []byte(`2`))

	c := NewCompactor(ob)
	if removed := c.RunNow(); removed != 1 {
		t.Errorf("RunNow() removed %d, want 1", removed)
	}
	stats := ob.Stats()
	if stats.DeliveredCount != 0 || stats.PendingCount != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if c.GetStats().LastRun.IsZero() {
		t.Error("GetStats().LastRun not recorded")
	}
}

func TestCompactorStartStop(t *testing.T) {
	t.Parallel()
	c := NewCompactor(openTestOutbox(t))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !c.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	c.Stop()
	if c.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}
