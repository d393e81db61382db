// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package services

import (
	"context"
	"fmt"
)

// StartStopper is the lifecycle of the outbox background loops.
//
// Satisfied by *wal.RetryLoop and *wal.Compactor.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// OutboxRetryService supervises the outbox retry loop, which redelivers
// remote writes queued while the store was unreachable.
//
//	retry := wal.NewRetryLoop(outbox, backend.KV)
//	tree.AddDataService(services.NewOutboxRetryService(retry))
type OutboxRetryService struct {
	loop StartStopper
	name string
}

// NewOutboxRetryService creates the service.
func NewOutboxRetryService(loop StartStopper) *OutboxRetryService {
	return &OutboxRetryService{loop: loop, name: "outbox-retry-loop"}
}

// Serve implements suture.Service. A failed Start is returned so suture
// restarts the service with backoff.
func (s *OutboxRetryService) Serve(ctx context.Context) error {
	return runStartStopper(ctx, s.loop, "outbox retry loop")
}

// String implements fmt.Stringer for supervisor logs.
func (s *OutboxRetryService) String() string {
	return s.name
}

// OutboxCompactorService supervises outbox compaction and BadgerDB GC.
type OutboxCompactorService struct {
	compactor StartStopper
	name      string
}

// NewOutboxCompactorService creates the service.
func NewOutboxCompactorService(compactor StartStopper) *OutboxCompactorService {
	return &OutboxCompactorService{compactor: compactor, name: "outbox-compactor"}
}

// Serve implements suture.Service.
func (s *OutboxCompactorService) Serve(ctx context.Context) error {
	return runStartStopper(ctx, s.compactor, "outbox compactor")
}

// String implements fmt.Stringer for supervisor logs.
func (s *OutboxCompactorService) String() string {
	return s.name
}

// runStartStopper starts c, blocks until ctx is canceled, then stops c.
// Stop waits for the loop goroutine to exit.
func runStartStopper(ctx context.Context, c StartStopper, what string) error {
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", what, err)
	}
	<-ctx.Done()
	c.Stop()
	return ctx.Err()
}
