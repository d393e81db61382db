// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/mirrortracker/internal/config"
	"github.com/tomtom215/mirrortracker/internal/wal"
)

var (
	_ suture.Service = (*OutboxRetryService)(nil)
	_ suture.Service = (*OutboxCompactorService)(nil)
	_ StartStopper   = (*wal.RetryLoop)(nil)
	_ StartStopper   = (*wal.Compactor)(nil)
)

type fakeLoop struct {
	running  atomic.Bool
	starts   atomic.Int32
	stops    atomic.Int32
	startErr error
}

func (f *fakeLoop) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts.Add(1)
	f.running.Store(true)
	return nil
}

func (f *fakeLoop) Stop() {
	f.stops.Add(1)
	f.running.Store(false)
}

func (f *fakeLoop) IsRunning() bool { return f.running.Load() }

func TestOutboxServicesLifecycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		newSvc  func(StartStopper) suture.Service
		wantStr string
	}{
		{"retry", func(s StartStopper) suture.Service { return NewOutboxRetryService(s) }, "outbox-retry-loop"},
		{"compactor", func(s StartStopper) suture.Service { return NewOutboxCompactorService(s) }, "outbox-compactor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loop := &fakeLoop{}
			svc := tt.newSvc(loop)

			if s, ok := svc.(interface{ String() string }); !ok || s.String() != tt.wantStr {
				t.Errorf("String() = %v, want %q", svc, tt.wantStr)
			}

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			deadline := time.Now().Add(time.Second)
			for !loop.IsRunning() {
				if time.Now().After(deadline) {
					t.Fatal("loop was not started")
				}
				time.Sleep(5 * time.Millisecond)
			}
			cancel()

			if err := <-errCh; !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() error = %v, want context.Canceled", err)
			}
			if loop.IsRunning() || loop.stops.Load() != 1 {
				t.Errorf("loop not stopped: running=%v stops=%d", loop.IsRunning(), loop.stops.Load())
			}
		})
	}
}

func TestOutboxRetryServiceStartFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("outbox closed")
	err := NewOutboxRetryService(&fakeLoop{startErr: boom}).Serve(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Serve() error = %v, want %v", err, boom)
	}
}

func TestOutboxServicesWithBadger(t *testing.T) {
	t.Parallel()

	outbox, err := wal.Open(&config.OutboxConfig{
		Path:            filepath.Join(t.TempDir(), "outbox"),
		RetryInterval:   50 * time.Millisecond,
		RetryBackoff:    10 * time.Millisecond,
		MaxRetries:      5,
		EntryTTL:        time.Hour,
		CompactInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = outbox.Close() })

	ctx := context.Background()
	if _, err := outbox.Put(ctx, "users.u1.location", []byte(`{"lat":1}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var delivered atomic.Int32
	retry := wal.NewRetryLoop(outbox, wal.DelivererFunc(func(context.Context, string, string, []byte) error {
		delivered.Add(1)
		return nil
	}))

	sup := suture.New("outbox-test", suture.Spec{Timeout: time.Second})
	sup.Add(NewOutboxRetryService(retry))
	sup.Add(NewOutboxCompactorService(wal.NewCompactor(outbox)))

	runCtx, cancel := context.WithCancel(ctx)
	errCh := sup.ServeBackground(runCtx)

	deadline := time.Now().Add(2 * time.Second)
	for delivered.Load() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("queued write was not delivered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-errCh

	pending, err := outbox.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}
