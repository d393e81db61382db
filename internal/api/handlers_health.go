// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status          string  `json:"status"`
	TrackingState   string  `json:"tracking_state,omitempty"`
	RemoteConnected *bool   `json:"remote_connected,omitempty"`
	Uptime          float64 `json:"uptime_seconds"`
}

// HealthLive reports that the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status: "alive",
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports tracking state and remote connectivity. Offline is
// "degraded", not unready: writes queue in the outbox until the store returns.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	st := HealthStatus{
		Status:        "healthy",
		TrackingState: h.tracker.Status().State,
		Uptime:        time.Since(h.startTime).Seconds(),
	}
	if h.remote != nil {
		up := h.remote.Connected()
		st.RemoteConnected = &up
		if !up {
			st.Status = "degraded"
		}
	}
	NewResponseWriter(w, r).Success(st)
}
