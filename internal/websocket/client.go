// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mirrortracker/internal/logging"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	// Observers only ever send pings.
	maxInboundBytes = 4 * 1024
	sendBuffer      = 256
)

var clientIDCounter atomic.Uint64

// Client is one connected observer, usually the mirror display. IDs are
// assigned in connection order so broadcasts reach observers deterministically.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
	log  zerolog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := clientIDCounter.Add(1)
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
		log: logging.With().
			Uint64("observer_id", id).
			Str("remote_addr", conn.RemoteAddr().String()).
			Logger(),
	}
}

// ID returns the connection-order identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Start runs the read and write loops until the connection drops or the hub
// closes the send channel.
func (c *Client) Start() {
	c.log.Debug().Msg("Observer connected")
	go c.writeLoop()
	go c.readLoop()
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
		c.log.Debug().Msg("Observer disconnected")
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	if err := extend(""); err != nil {
		c.log.Warn().Err(err).Msg("Failed to set observer read deadline")
		return
	}
	c.conn.SetPongHandler(extend)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("Observer connection closed unexpectedly")
			}
			return
		}
		c.handleInbound(msg)
	}
}

// handleInbound answers application-level pings. Everything else an observer
// sends is ignored.
func (c *Client) handleInbound(msg Message) {
	if msg.Type != MessageTypePing {
		return
	}
	select {
	case c.send <- Message{Type: MessageTypePong}:
	default:
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub dropped us; say goodbye and stop.
				_ = c.write(func() error { return c.conn.WriteMessage(websocket.CloseMessage, nil) })
				return
			}
			if err := c.write(func() error { return c.conn.WriteJSON(msg) }); err != nil {
				c.log.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write to observer")
				return
			}
		case <-ticker.C:
			if err := c.write(func() error { return c.conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(fn func() error) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return fn()
}
