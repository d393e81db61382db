// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package remote

import (
	"context"
	"fmt"

	"github.com/tomtom215/mirrortracker/internal/config"
	"github.com/tomtom215/mirrortracker/internal/logging"
)

// Backend is an opened store plus whatever it needs torn down with it.
type Backend struct {
	Store    Store
	KV       *KVStore // nil for the memory backend
	Embedded *EmbeddedServer
}

// Close closes the store, then the embedded server if one was started.
func (b *Backend) Close() error {
	err := b.Store.Close()
	if b.Embedded != nil {
		b.Embedded.Shutdown()
	}
	return err
}

// Open opens the configured backend. outbox may be nil.
func Open(ctx context.Context, cfg *config.RemoteConfig, outbox Outbox) (*Backend, error) {
	switch cfg.Backend {
	case "memory":
		logging.Info().Msg("Using in-memory remote store")
		return &Backend{Store: NewMemoryStore()}, nil
	case "nats":
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Backend)
	}

	b := &Backend{}
	url := cfg.URL
	if cfg.EmbeddedServer {
		srv, err := NewEmbeddedServer(EmbeddedOptions{
			Host:     cfg.Host,
			Port:     cfg.Port,
			StoreDir: cfg.StoreDir,
		})
		if err != nil {
			return nil, err
		}
		b.Embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Str("store_dir", cfg.StoreDir).Msg("Embedded NATS server started")
	}

	kv, err := NewKVStore(ctx, KVConfig{
		URL:            url,
		Bucket:         cfg.Bucket,
		ConnectTimeout: cfg.ConnectTimeout,
		ReconnectWait:  cfg.ReconnectWait,
	}, outbox)
	if err != nil {
		if b.Embedded != nil {
			b.Embedded.Shutdown()
		}
		return nil, err
	}
	b.Store = kv
	b.KV = kv
	return b, nil
}
