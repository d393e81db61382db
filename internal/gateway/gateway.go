// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package gateway reads and writes the tracker's paths in the remote store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/geofence"
	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/models"
	"github.com/tomtom215/mirrortracker/internal/remote"
)

// ErrNotOpen is returned by per-user writes before Open or after Close.
var ErrNotOpen = errors.New("gateway is not open")

// Listener receives remote snapshots. Calls for one path arrive in order;
// calls for different paths are not ordered relative to each other.
type Listener interface {
	OnGeofencesUpdated(fences []models.Geofence)
	OnShowPrivateInfoUpdated(show bool)
	OnShareLocationUpdated(share bool)
}

// Pinger wakes up connectivity. *netcheck.Pinger satisfies it.
type Pinger interface {
	Ping(ctx context.Context) bool
}

// Options configures a Gateway.
type Options struct {
	// Pinger runs when the store reports it is offline. Optional.
	Pinger Pinger
	// WatchShareLocation subscribes to users.<uid>.shareLocation as well.
	WatchShareLocation bool
}

// Gateway owns the live subscriptions for one user.
type Gateway struct {
	store remote.Store
	opts  Options

	mu   sync.Mutex
	uid  string
	subs []remote.Subscription
}

// New returns a closed gateway over store.
func New(store remote.Store, opts Options) *Gateway {
	return &Gateway{store: store, opts: opts}
}

// Open subscribes listener to the shared config paths for uid. A watch that
// cannot be established is logged and skipped. Reopening replaces the
// previous subscriptions.
func (g *Gateway) Open(ctx context.Context, uid string, listener Listener) error {
	if err := remote.ValidateUserID(uid); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	g.Close()

	type watch struct {
		path string
		fn   remote.WatchFunc
	}
	watches := []watch{
		{remote.PathShowPrivateInfo, func(v []byte) {
			listener.OnShowPrivateInfoUpdated(decodeBool(remote.PathShowPrivateInfo, v, false))
		}},
		{remote.PathGeofences, func(v []byte) {
			listener.OnGeofencesUpdated(decodeGeofences(v))
		}},
	}
	if g.opts.WatchShareLocation {
		path := remote.ShareLocationPath(uid)
		watches = append(watches, watch{path, func(v []byte) {
			// An absent flag means the user never opted out.
			listener.OnShareLocationUpdated(decodeBool(path, v, true))
		}})
	}

	subs := make([]remote.Subscription, 0, len(watches))
	for _, w := range watches {
		sub, err := g.store.Watch(ctx, w.path, w.fn)
		if err != nil {
			logging.Warn().Err(err).Str("path", w.path).Msg("Failed to watch remote path")
			continue
		}
		subs = append(subs, sub)
	}

	g.mu.Lock()
	g.uid = uid
	g.subs = subs
	g.mu.Unlock()

	logging.Info().Str("uid", uid).Int("watches", len(subs)).Msg("Remote gateway opened")
	return nil
}

// Close stops all subscriptions. The store itself stays open.
func (g *Gateway) Close() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.uid = ""
	g.mu.Unlock()

	for _, s := range subs {
		s.Stop()
	}
}

// UserID returns the user the gateway is open for.
func (g *Gateway) UserID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uid
}

// UpdateLocation overwrites users.<uid>.location with ev. An offline store
// is nudged to reconnect first; the write itself is queued by the store when
// it still cannot be delivered.
func (g *Gateway) UpdateLocation(ctx context.Context, ev models.LocationEvent) error {
	uid := g.UserID()
	if uid == "" {
		return ErrNotOpen
	}
	g.goOnline(ctx)
	return g.store.Set(ctx, remote.LocationPath(uid), ev)
}

// UpdateShowPrivateInfo writes the shared privacy flag.
func (g *Gateway) UpdateShowPrivateInfo(ctx context.Context, show bool) error {
	return g.store.Set(ctx, remote.PathShowPrivateInfo, show)
}

// UpdateShareLocation writes the user's share flag.
func (g *Gateway) UpdateShareLocation(ctx context.Context, share bool) error {
	uid := g.UserID()
	if uid == "" {
		return ErrNotOpen
	}
	return g.store.Set(ctx, remote.ShareLocationPath(uid), share)
}

// Connected reports the store's connection state.
func (g *Gateway) Connected() bool {
	return g.store.Connected()
}

func (g *Gateway) goOnline(ctx context.Context) {
	if g.store.Connected() {
		return
	}
	g.store.GoOnline()
	if g.opts.Pinger != nil {
		g.opts.Pinger.Ping(ctx)
	}
}

func decodeBool(path string, v []byte, absent bool) bool {
	if v == nil {
		return absent
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Remote value is not a boolean")
		return absent
	}
	return b
}

func decodeGeofences(v []byte) []models.Geofence {
	if v == nil {
		return nil
	}
	fences, rejected, err := geofence.DecodeSet(v)
	if err != nil {
		logging.Warn().Err(err).Str("path", remote.PathGeofences).Msg("Remote geofence set is malformed")
		return nil
	}
	for _, r := range rejected {
		logging.Warn().
			Str("path", remote.PathGeofences).
			Str("label", r.Label).
			Str("reason", r.Reason).
			Msg("Skipping malformed remote geofence")
	}
	return fences
}
