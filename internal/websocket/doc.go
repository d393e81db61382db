// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

/*
Package websocket streams observer events to connected displays.

The Hub is bound as the coordinator's observer and as the debug log observer.
Every event becomes a typed JSON message:

	{"type": "location", "data": {"timestamp": 1700000000000, "city": "San Francisco", ...}}
	{"type": "show_private_info", "data": true}
	{"type": "geofences", "data": [{"label": "home", ...}]}
	{"type": "share_location", "data": true}
	{"type": "debug_log", "data": ["2026-01-01 12:00:00: service started"]}

Clients may send {"type": "ping"} and receive {"type": "pong"}. The hub keeps
the latest message of each type and replays them to a client when it
connects.

Broadcasts never block: when the hub's queue is full the message is dropped
and logged, and a client whose send buffer is full is disconnected.
*/
package websocket
