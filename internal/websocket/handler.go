// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/mirrortracker/internal/logging"
)

const registerTimeout = 5 * time.Second

// Handler upgrades observer connections and registers them with the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	origins  []string

	onConnect func()
}

// NewHandler returns a handler accepting the given origins. "*" accepts any
// origin; an empty list accepts only requests without a browser Origin.
func NewHandler(hub *Hub, origins []string) *Handler {
	h := &Handler{hub: hub, origins: origins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// SetOnConnect sets a hook run after each client registers, e.g. to bind the
// hub to the tracking coordinator. Call before serving.
func (h *Handler) SetOnConnect(fn func()) {
	h.onConnect = fn
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := NewClient(h.hub, conn)
	select {
	case h.hub.Register <- client:
		client.Start()
		if h.onConnect != nil {
			h.onConnect()
		}
	case <-time.After(registerTimeout):
		logging.Warn().Msg("WebSocket hub not running, closing connection")
		_ = conn.Close()
	}
}

// checkOrigin lets non-browser observers (the mirror itself) through and
// checks browsers against the allowed list.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
