// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package remote

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is an in-process NATS server with JetStream enabled, for
// single-node deployments that do not run their own NATS cluster.
type EmbeddedServer struct {
	server *server.Server
}

// EmbeddedOptions configures the embedded server. Port -1 picks a free port.
type EmbeddedOptions struct {
	Host     string
	Port     int
	StoreDir string
	Ready    time.Duration
}

// NewEmbeddedServer starts the server and waits until it accepts connections.
func NewEmbeddedServer(opts EmbeddedOptions) (*EmbeddedServer, error) {
	if opts.Ready <= 0 {
		opts.Ready = 30 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: "mirrortracker",
		Host:       opts.Host,
		Port:       opts.Port,
		JetStream:  true,
		StoreDir:   opts.StoreDir,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(opts.Ready) {
		ns.Shutdown()
		return nil, errors.New("NATS server not ready within timeout")
	}
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// IsRunning returns server health status.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
