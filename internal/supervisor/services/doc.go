// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

/*
Package services adapts tracker components to suture.Service.

Each wrapper translates a component's lifecycle (Start/Stop,
RunWithContext, ListenAndServe) into Serve(ctx) error and names itself via
fmt.Stringer for supervisor logs:

  - HTTPServerService: *http.Server with graceful shutdown
  - OutboxRetryService, OutboxCompactorService: *wal.RetryLoop and *wal.Compactor
  - WebSocketHubService: *websocket.Hub

The platform dispatcher and the tracking coordinator implement
suture.Service themselves and are added to the tree directly.
*/
package services
