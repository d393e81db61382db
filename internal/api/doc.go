// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

/*
Package api provides the HTTP control surface for the tracker.

Routes (all JSON, wrapped in APIResponse):

  - GET  /api/v1/health/live, /api/v1/health/ready
  - GET  /api/v1/status: coordinator state, flags, geofences, last location
  - GET  /api/v1/debuglog: persisted debug log, oldest first
  - PUT  /api/v1/preferences/share, /api/v1/preferences/private: {"enabled": bool}
  - POST /api/v1/fixes: raw fix for the software location provider (202)
  - POST /api/v1/stop: sign out and stop tracking
  - GET  /api/v1/ws: websocket observer stream
  - GET  /metrics: Prometheus exposition

Middleware order: request id and correlation id, real IP, panic recovery,
CORS (go-chi/cors), then per group rate limiting (go-chi/httprate),
request metrics and bearer JWT authentication when server.require_auth is
set. Health endpoints never require authentication.
*/
package api
