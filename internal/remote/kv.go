// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/metrics"
)

// Outbox queues writes the store could not deliver. *wal.Outbox satisfies it.
type Outbox interface {
	Put(ctx context.Context, path string, value []byte) (string, error)
	Discard(ctx context.Context, path string) error
	// CheckPending returns nil only while write id is the queued write for path.
	CheckPending(ctx context.Context, path, id string) error
}

// KVConfig configures a KVStore.
type KVConfig struct {
	URL            string
	Bucket         string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
}

// KVStore is a Store backed by a NATS JetStream key-value bucket. Paths map
// directly onto keys.
type KVStore struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	outbox Outbox

	mu     sync.Mutex
	subs   map[*kvWatch]struct{}
	closed bool

	// pathLocks serialize direct writes with outbox deliveries per key.
	locksMu   sync.Mutex
	pathLocks map[string]*sync.Mutex
}

// NewKVStore connects to NATS and opens (creating if needed) the bucket.
// outbox may be nil, in which case undeliverable writes fail.
func NewKVStore(ctx context.Context, cfg KVConfig, outbox Outbox) (*KVStore, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("mirrortracker"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.SetConnected(false)
			if err != nil {
				logging.Warn().Err(err).Msg("Remote store disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.SetConnected(true)
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("Remote store reconnected")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			metrics.SetConnected(true)
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("Remote store connected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Mirror shared state",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open key-value bucket %s: %w", cfg.Bucket, err)
	}

	metrics.SetConnected(nc.IsConnected())
	return &KVStore{
		nc:     nc,
		kv:     kv,
		outbox:    outbox,
		subs:      make(map[*kvWatch]struct{}),
		pathLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Connected reports whether the NATS connection is up.
func (s *KVStore) Connected() bool {
	return s.nc.IsConnected()
}

// GoOnline forces a reconnect attempt when the connection is down.
func (s *KVStore) GoOnline() {
	if s.nc.IsConnected() || s.nc.IsClosed() {
		return
	}
	if err := s.nc.ForceReconnect(); err != nil {
		logging.Debug().Err(err).Msg("Remote store reconnect request failed")
	}
}

func (s *KVStore) lockPath(path string) func() {
	s.locksMu.Lock()
	l, ok := s.pathLocks[path]
	if !ok {
		l = &sync.Mutex{}
		s.pathLocks[path] = l
	}
	s.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

// Set writes value at path. When the store is unreachable the write goes to
// the outbox and Set returns nil. A successful direct write drops whatever
// was queued for path.
func (s *KVStore) Set(ctx context.Context, path string, value any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", path, err)
	}
	if s.isClosed() {
		return ErrClosed
	}

	unlock := s.lockPath(path)
	defer unlock()

	kind := Kind(path)
	if s.nc.IsConnected() {
		if _, err = s.kv.Put(ctx, path, data); err == nil {
			metrics.RecordRemoteWrite(kind, "ok")
			if s.outbox != nil {
				if derr := s.outbox.Discard(ctx, path); derr != nil {
					logging.Warn().Err(derr).Str("path", path).Msg("Failed to drop stale queued write")
				}
			}
			return nil
		}
	} else {
		err = nats.ErrConnectionClosed
		if s.nc.IsReconnecting() {
			err = nats.ErrConnectionReconnecting
		}
	}

	if s.outbox == nil {
		metrics.RecordRemoteWrite(kind, "error")
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, qerr := s.outbox.Put(ctx, path, data); qerr != nil {
		metrics.RecordRemoteWrite(kind, "error")
		return fmt.Errorf("write %s: %w (queue: %v)", path, err, qerr)
	}
	metrics.RecordRemoteWrite(kind, "queued")
	logging.Debug().Err(err).Str("path", path).Msg("Remote write queued")
	return nil
}

// Deliver writes queued write id for path, bypassing the outbox. The outbox
// retry loop calls this. When a direct Set has replaced or dropped the queued
// write, Deliver writes nothing and returns the outbox's error.
func (s *KVStore) Deliver(ctx context.Context, path, id string, value []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	if !s.nc.IsConnected() {
		return nats.ErrConnectionReconnecting
	}

	unlock := s.lockPath(path)
	defer unlock()

	if s.outbox != nil {
		if err := s.outbox.CheckPending(ctx, path, id); err != nil {
			return fmt.Errorf("deliver %s: %w", path, err)
		}
	}
	if _, err := s.kv.Put(ctx, path, value); err != nil {
		return err
	}
	metrics.RecordRemoteWrite(Kind(path), "ok")
	return nil
}

type kvWatch struct {
	store   *KVStore
	watcher jetstream.KeyWatcher
	cancel  context.CancelFunc
	once    sync.Once
}

func (w *kvWatch) Stop() {
	w.once.Do(func() {
		w.cancel()
		if err := w.watcher.Stop(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			logging.Debug().Err(err).Msg("Stopping remote watch")
		}
		w.store.mu.Lock()
		delete(w.store.subs, w)
		w.store.mu.Unlock()
	})
}

// Watch delivers the current value at path (nil when absent) and then every
// change, in order, on one goroutine.
func (s *KVStore) Watch(ctx context.Context, path string, fn WatchFunc) (Subscription, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrClosed
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := s.kv.Watch(watchCtx, path)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &kvWatch{store: s, watcher: watcher, cancel: cancel}
	s.mu.Lock()
	s.subs[w] = struct{}{}
	s.mu.Unlock()

	go func() {
		kind := Kind(path)
		seen := false
		for {
			select {
			case <-watchCtx.Done():
				w.Stop()
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				switch {
				case entry == nil:
					// End of initial values. Report an absent key once.
					if seen {
						continue
					}
					fn(nil)
				case entry.Operation() == jetstream.KeyValueDelete, entry.Operation() == jetstream.KeyValuePurge:
					fn(nil)
				default:
					fn(entry.Value())
				}
				seen = true
				metrics.RemoteWatchEventsTotal.WithLabelValues(kind).Inc()
			}
		}
	}()
	return w, nil
}

func (s *KVStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops all watches and drains the connection.
func (s *KVStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*kvWatch, 0, len(s.subs))
	for w := range s.subs {
		subs = append(subs, w)
	}
	s.mu.Unlock()

	for _, w := range subs {
		w.Stop()
	}
	metrics.SetConnected(false)
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
