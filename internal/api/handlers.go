// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/mirrortracker/internal/coordinator"
	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/models"
	"github.com/tomtom215/mirrortracker/internal/platform"
)

// Tracker is the tracking coordinator as seen by the control surface.
type Tracker interface {
	Status() coordinator.Status
	SetShareLocation(ctx context.Context, share bool) error
	SetShowPrivateInfo(ctx context.Context, show bool) error
	Stop()
}

// FixIngester accepts raw fixes. *platform.Provider satisfies it.
type FixIngester interface {
	IngestFix(ctx context.Context, fix models.Fix) error
}

// DebugLog is the read side of the persistent debug log.
type DebugLog interface {
	Lines() []string
	Capacity() int
}

// SignOuter forgets the signed-in user.
type SignOuter interface {
	SignOut()
}

// Connectivity reports whether the remote store is reachable.
type Connectivity interface {
	Connected() bool
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and control endpoints
//   - handlers_health.go: health endpoints
type Handler struct {
	tracker   Tracker
	fixes     FixIngester
	debugLog  DebugLog
	identity  SignOuter
	remote    Connectivity
	startTime time.Time
}

// HandlerDeps lists the handler's collaborators. Remote is optional.
type HandlerDeps struct {
	Tracker  Tracker
	Fixes    FixIngester
	DebugLog DebugLog
	Identity SignOuter
	Remote   Connectivity
}

// NewHandler creates a new API handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		tracker:   deps.Tracker,
		fixes:     deps.Fixes,
		debugLog:  deps.DebugLog,
		identity:  deps.Identity,
		remote:    deps.Remote,
		startTime: time.Now(),
	}
}

// Status returns the coordinator state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.tracker.Status())
}

// DebugLogResponse is the body of GET /debuglog.
type DebugLogResponse struct {
	Lines    []string `json:"lines"`
	Capacity int      `json:"capacity"`
}

// DebugLogLines returns the debug log, oldest line first.
func (h *Handler) DebugLogLines(w http.ResponseWriter, r *http.Request) {
	lines := h.debugLog.Lines()
	if lines == nil {
		lines = []string{}
	}
	NewResponseWriter(w, r).Success(DebugLogResponse{Lines: lines, Capacity: h.debugLog.Capacity()})
}

// ToggleResponse echoes an accepted preference change.
type ToggleResponse struct {
	Enabled bool `json:"enabled"`
}

// SetShareLocation handles PUT /preferences/share.
func (h *Handler) SetShareLocation(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)
	if err := h.tracker.SetShareLocation(r.Context(), *req.Enabled); err != nil {
		rw.InternalError("Failed to save share preference", err)
		return
	}
	logging.Ctx(r.Context()).Info().Bool("share", *req.Enabled).Msg("Share location preference changed")
	rw.Success(ToggleResponse{Enabled: *req.Enabled})
}

// SetShowPrivateInfo handles PUT /preferences/private.
func (h *Handler) SetShowPrivateInfo(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)
	err := h.tracker.SetShowPrivateInfo(r.Context(), *req.Enabled)
	switch {
	case errors.Is(err, coordinator.ErrNotRunning):
		rw.Conflict("Tracking is not running; sign in first")
		return
	case err != nil:
		rw.InternalError("Failed to write privacy flag", err)
		return
	}
	rw.Success(ToggleResponse{Enabled: *req.Enabled})
}

// IngestFix handles POST /fixes. Accepted fixes flow through the platform
// dispatcher asynchronously.
func (h *Handler) IngestFix(w http.ResponseWriter, r *http.Request) {
	var req FixRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)

	fix := models.Fix{Lat: *req.Lat, Lng: *req.Lng, Accuracy: req.Accuracy, Source: "http"}
	if req.Time != "" {
		t, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			rw.BadRequest("time must be RFC 3339")
			return
		}
		fix.Time = t
	}

	err := h.fixes.IngestFix(r.Context(), fix)
	switch {
	case errors.Is(err, platform.ErrInvalidFix):
		rw.BadRequest(err.Error())
		return
	case err != nil:
		rw.InternalError("Failed to publish fix", err)
		return
	}
	rw.Accepted(fix)
}

// Stop signs the user out and stops tracking.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	if h.identity != nil {
		h.identity.SignOut()
	}
	h.tracker.Stop()
	logging.Ctx(r.Context()).Info().Msg("Tracking stopped from control surface")
	NewResponseWriter(w, r).Success(h.tracker.Status())
}
