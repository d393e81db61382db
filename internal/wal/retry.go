// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package wal

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/tomtom215/mirrortracker/internal/config"
	"github.com/tomtom215/mirrortracker/internal/logging"
)

// Deliverer writes a queued value straight to the remote store. It must
// write only while write id is still pending for path (see
// Outbox.CheckPending) and otherwise return ErrSuperseded or
// ErrEntryNotFound, so an older queued value never lands on top of a newer
// direct write.
type Deliverer interface {
	Deliver(ctx context.Context, path, id string, value []byte) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, path, id string, value []byte) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, path, id string, value []byte) error {
	return f(ctx, path, id, value)
}

// RetryLoop periodically delivers queued writes.
type RetryLoop struct {
	outbox    *Outbox
	deliverer Deliverer
	config    config.OutboxConfig
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	running  bool
	stopping bool
	stopDone chan struct{}
}

// NewRetryLoop creates a retry loop delivering through d.
func NewRetryLoop(outbox *Outbox, d Deliverer) *RetryLoop {
	return &RetryLoop{
		outbox:    outbox,
		deliverer: d,
		config:    outbox.Config(),
		now:       time.Now,
	}
}

// Start runs one delivery pass immediately, which recovers writes left over
// from a previous run, then keeps retrying every RetryInterval until Stop.
func (r *RetryLoop) Start(ctx context.Context) error {
	r.mu.Lock()
	for r.stopping {
		stopDone := r.stopDone
		r.mu.Unlock()
		<-stopDone
		r.mu.Lock()
	}
	if r.running {
		r.mu.Unlock()
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.stopDone = make(chan struct{})
	loopCtx := r.ctx
	done := r.stopDone
	r.mu.Unlock()

	go r.run(loopCtx, done)

	logging.Info().
		Dur("interval", r.config.RetryInterval).
		Int("max_retries", r.config.MaxRetries).
		Msg("Outbox retry loop started")
	return nil
}

// Stop stops the loop and waits for the in-flight pass to finish.
func (r *RetryLoop) Stop() {
	r.mu.Lock()
	if !r.running || r.stopping {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.running = false
	r.stopping = true
	stopDone := r.stopDone
	r.mu.Unlock()

	<-stopDone

	r.mu.Lock()
	r.stopping = false
	r.mu.Unlock()

	logging.Info().Msg("Outbox retry loop stopped")
}

// IsRunning returns whether the loop is active.
func (r *RetryLoop) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RetryLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.RetryNow(ctx)

	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RetryNow(ctx)
		}
	}
}

// RetryResult summarizes one delivery pass.
type RetryResult struct {
	Delivered  int
	Failed     int
	Expired    int
	Superseded int
	Skipped    int
}

// RetryNow runs one delivery pass over all queued writes.
func (r *RetryLoop) RetryNow(ctx context.Context) RetryResult {
	var result RetryResult

	entries, err := r.outbox.Pending(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Outbox retry: failed to list pending entries")
		}
		return result
	}
	if len(entries) == 0 {
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		r.process(ctx, entry, &result)
	}

	if result.Delivered > 0 || result.Failed > 0 || result.Expired > 0 {
		logging.Info().
			Int("delivered", result.Delivered).
			Int("failed", result.Failed).
			Int("expired", result.Expired).
			Int("superseded", result.Superseded).
			Msg("Outbox retry complete")
	}
	return result
}

func (r *RetryLoop) process(ctx context.Context, entry *Entry, result *RetryResult) {
	expired := r.config.EntryTTL > 0 && r.now().Sub(entry.CreatedAt) > r.config.EntryTTL
	if expired || (r.config.MaxRetries > 0 && entry.Attempts >= r.config.MaxRetries) {
		logging.Warn().
			Str("path", entry.Path).
			Int("attempts", entry.Attempts).
			Bool("expired", expired).
			Msg("Outbox retry: dropping undeliverable write")
		switch err := r.outbox.DiscardEntry(ctx, entry.Path, entry.ID); {
		case err == nil:
			walExpiredTotal.Inc()
			result.Expired++
		case errors.Is(err, ErrSuperseded), errors.Is(err, ErrEntryNotFound):
			result.Superseded++
		default:
			logging.Error().Err(err).Str("path", entry.Path).Msg("Outbox retry: failed to drop entry")
		}
		return
	}

	if !r.isReadyForRetry(entry) {
		result.Skipped++
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := r.deliverer.Deliver(deliverCtx, entry.Path, entry.ID, entry.Value)
	cancel()

	if errors.Is(err, ErrSuperseded) || errors.Is(err, ErrEntryNotFound) {
		result.Superseded++
		return
	}
	if err != nil {
		logging.Debug().
			Err(err).
			Str("path", entry.Path).
			Int("attempt", entry.Attempts+1).
			Msg("Outbox retry: delivery failed")
		if updateErr := r.outbox.RecordAttempt(ctx, entry.Path, entry.ID, err.Error()); updateErr != nil && !errors.Is(updateErr, ErrSuperseded) {
			logging.Error().Err(updateErr).Str("path", entry.Path).Msg("Outbox retry: failed to record attempt")
		}
		result.Failed++
		return
	}

	switch err := r.outbox.Confirm(ctx, entry.Path, entry.ID); {
	case err == nil:
		result.Delivered++
	case errors.Is(err, ErrSuperseded), errors.Is(err, ErrEntryNotFound):
		result.Superseded++
	default:
		logging.Error().Err(err).Str("path", entry.Path).Msg("Outbox retry: failed to confirm entry")
		result.Failed++
	}
}

func (r *RetryLoop) isReadyForRetry(entry *Entry) bool {
	if entry.LastAttemptAt.IsZero() {
		return true
	}
	return r.now().Sub(entry.LastAttemptAt) >= r.calculateBackoff(entry.Attempts)
}

// calculateBackoff returns base * 2^attempts capped at 5 minutes.
func (r *RetryLoop) calculateBackoff(attempts int) time.Duration {
	base := r.config.RetryBackoff
	maxBackoff := 5 * time.Minute

	if attempts > 50 {
		return maxBackoff
	}
	backoff := time.Duration(float64(base) * math.Pow(2, float64(attempts)))
	if backoff < 0 || backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
