// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

/*
Package supervisor runs the tracker's long-lived services under suture v4.

	RootSupervisor ("mirrortracker")
	├── DataSupervisor ("data-layer")
	│   ├── OutboxRetryService
	│   └── OutboxCompactorService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── platform-dispatcher (platform fixes, geofence events, NATS fix feed)
	│   ├── tracking-coordinator
	│   └── WebSocketHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Starting the coordinator under the tree is the process's boot-time
activation: tracking comes up whenever the process does, subject to the
tracking policy.

Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog into the zerolog-backed slog handler from internal/logging.
*/
package supervisor
