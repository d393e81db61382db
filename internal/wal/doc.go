// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package wal provides a durable outbox for remote store writes using BadgerDB.
//
// A write that the remote store could not take is persisted before the caller
// returns and replayed once the store is reachable again:
//
//	Set(path, value) → store down → Outbox.Put (fsync) → RetryLoop → Deliver → Confirm
//
// Entries are keyed by path, so a newer write to the same path replaces the
// queued one. The remote store is last-write-wins and only the latest value
// of each path is ever worth delivering.
//
// # Components
//
//   - Outbox: BadgerDB-backed pending/delivered entries
//   - RetryLoop: background delivery with exponential backoff
//   - Compactor: removes delivered and expired entries and runs value log GC
//
// # Usage
//
//	ob, err := wal.Open(&cfg.Remote.Outbox)
//	if err != nil {
//	    return err
//	}
//	defer ob.Close()
//
//	loop := wal.NewRetryLoop(ob, store)
//	_ = loop.Start(ctx)
//	defer loop.Stop()
package wal
