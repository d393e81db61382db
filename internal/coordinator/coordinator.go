// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package coordinator decides whether tracking should run and wires the
// remote gateway, the geofence reconciler and the location provider together.
//
// Lock order: dispatchMu, then Coordinator.mu, then the reconciler, then the
// debug log, then Coordinator.obsMu. Observer callbacks hold only
// dispatchMu. Gateway teardown runs with no coordinator lock held.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/mirrortracker/internal/debuglog"
	"github.com/tomtom215/mirrortracker/internal/gateway"
	"github.com/tomtom215/mirrortracker/internal/geofence"
	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/metrics"
	"github.com/tomtom215/mirrortracker/internal/models"
	"github.com/tomtom215/mirrortracker/internal/platform"
	"github.com/tomtom215/mirrortracker/internal/policy"
)

// ErrNotRunning is returned by operations that need an open gateway.
var ErrNotRunning = errors.New("tracking coordinator is not running")

// Identity reports the signed-in user. auth.Provider satisfies it.
type Identity interface {
	CurrentUserID() (string, bool)
}

// Availability reports whether the reverse geocoder can be used.
type Availability interface {
	Available() bool
}

// Platform is the location provider.
type Platform interface {
	geofence.Registrar
	RequestPeriodicUpdates(req platform.UpdateRequest, topic string) error
	RemoveUpdates(topic string) error
}

// Gateway is the remote sync gateway. *gateway.Gateway satisfies it.
type Gateway interface {
	Open(ctx context.Context, uid string, listener gateway.Listener) error
	Close()
	UpdateShowPrivateInfo(ctx context.Context, show bool) error
	UpdateShareLocation(ctx context.Context, share bool) error
}

// Preferences is the local preference store. *prefs.Store satisfies it.
type Preferences interface {
	Share() bool
	SetShare(share bool) (bool, error)
}

// Options holds the coordinator's collaborators. All are required.
type Options struct {
	Identity      Identity
	Geocoder      Availability
	Platform      Platform
	Gateway       Gateway
	Prefs         Preferences
	DebugLog      *debuglog.Log
	UpdateRequest platform.UpdateRequest
	LocationTopic string
	GeofenceTopic string
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	identity   Identity
	geocoder   Availability
	platform   Platform
	gateway    Gateway
	prefs      Preferences
	dlog       *debuglog.Log
	reconciler *geofence.Reconciler
	request    platform.UpdateRequest
	locTopic   string

	state atomic.Int32

	mu               sync.Mutex
	ctx              context.Context
	baseCtx          context.Context // outlives Stop; scopes restarts on sign-in
	uid              string
	showPrivateInfo  bool
	periodicActive   bool
	lastPolicyReason string

	// dispatchMu serializes observer callbacks with binding changes.
	dispatchMu sync.Mutex
	obsMu      sync.Mutex
	observer   Observer
	last     *models.LocationEvent
}

// New returns a stopped coordinator.
func New(opts Options) *Coordinator {
	if opts.LocationTopic == "" {
		opts.LocationTopic = platform.TopicLocation
	}
	if opts.GeofenceTopic == "" {
		opts.GeofenceTopic = platform.TopicGeofence
	}
	return &Coordinator{
		identity:   opts.Identity,
		geocoder:   opts.Geocoder,
		platform:   opts.Platform,
		gateway:    opts.Gateway,
		prefs:      opts.Prefs,
		dlog:       opts.DebugLog,
		reconciler: geofence.NewReconciler(opts.Platform, opts.DebugLog, opts.GeofenceTopic),
		request:    opts.UpdateRequest,
		locTopic:   opts.LocationTopic,
		ctx:        context.Background(),
	}
}

// State returns the lifecycle state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Running reports Starting or Active.
func (c *Coordinator) Running() bool { return c.State() != StateStopped }

func (c *Coordinator) setStateLocked(s State) {
	prev := State(c.state.Swap(int32(s)))
	metrics.TrackingState.Set(float64(s))
	if prev != s {
		logging.Info().Str("from", prev.String()).Str("to", s.String()).Msg("Tracking state changed")
	}
}

// Start brings the coordinator up for the signed-in user. Without a user it
// stays Stopped and does nothing else. ctx scopes the remote watches and is
// used for work triggered by later callbacks.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateStopped {
		return nil
	}
	uid, ok := c.identity.CurrentUserID()
	if !ok {
		logging.Info().Msg("No authenticated user, tracking stays stopped")
		return nil
	}

	if c.baseCtx == nil {
		c.baseCtx = ctx
	}
	if err := c.gateway.Open(ctx, uid, (*listener)(c)); err != nil {
		c.dlog.Logf("remote gateway open failed: %v", err)
		return fmt.Errorf("open gateway: %w", err)
	}
	c.ctx = ctx
	c.uid = uid
	c.dlog.LogServiceStarted()
	c.setStateLocked(StateStarting)
	c.evaluateLocked("start")
	return nil
}

// Stop tears down tracking: registrations are removed, the observer is
// cleared and the gateway closed. Stopping a stopped coordinator is a no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.State() == StateStopped {
		c.mu.Unlock()
		return
	}
	c.deactivateLocked()
	c.dlog.LogServiceStopped()
	c.setStateLocked(StateStopped)
	c.uid = ""
	c.mu.Unlock()

	c.clearObserver()
	c.gateway.Close()
}

// Serve starts the coordinator and keeps it up until ctx is canceled.
func (c *Coordinator) Serve(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (c *Coordinator) String() string { return "tracking-coordinator" }

// Reevaluate recomputes the policy, e.g. after the geocoder recovered or
// the location permission changed.
func (c *Coordinator) Reevaluate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == StateStopped {
		return
	}
	c.evaluateLocked("reevaluate")
}

// OnAuthChanged reacts to sign-in and sign-out. Losing the user stops the
// coordinator; a new user starts it, and a different user restarts it under
// the context it was first started or served with.
func (c *Coordinator) OnAuthChanged() error {
	uid, ok := c.identity.CurrentUserID()

	c.mu.Lock()
	running := c.State() != StateStopped
	same := ok && uid == c.uid
	base := c.baseCtx
	if running && same {
		c.evaluateLocked("auth")
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if running {
		c.Stop()
	}
	if !ok || base == nil || base.Err() != nil {
		return nil
	}
	return c.Start(base)
}

// SetShareLocation stores the user's share preference, mirrors it to the
// remote store and re-evaluates.
func (c *Coordinator) SetShareLocation(ctx context.Context, share bool) error {
	changed, err := c.prefs.SetShare(share)
	if err != nil {
		return fmt.Errorf("save share preference: %w", err)
	}
	if c.Running() {
		if err := c.gateway.UpdateShareLocation(ctx, share); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Bool("share", share).Msg("Failed to write share flag")
		}
	}
	if changed {
		c.Reevaluate()
		c.notify(func(o Observer) { o.OnShareLocation(share) })
	}
	return nil
}

// SetShowPrivateInfo writes the shared privacy flag. The change comes back
// through the remote watch.
func (c *Coordinator) SetShowPrivateInfo(ctx context.Context, show bool) error {
	if !c.Running() {
		return ErrNotRunning
	}
	if err := c.gateway.UpdateShowPrivateInfo(ctx, show); err != nil {
		return fmt.Errorf("write privacy flag: %w", err)
	}
	return nil
}

// Status is a point-in-time view for the control surface.
type Status struct {
	State           string                `json:"state"`
	Tracking        bool                  `json:"tracking"`
	UserID          string                `json:"user_id,omitempty"`
	ShowPrivateInfo bool                  `json:"show_private_info"`
	ShareLocation   bool                  `json:"share_location"`
	Reason          string                `json:"reason,omitempty"`
	Geofences       []models.Geofence     `json:"geofences"`
	DeferredAdd     bool                  `json:"deferred_geofence_add"`
	LastLocation    *models.LocationEvent `json:"last_location,omitempty"`
}

// Status returns the current state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	st := Status{
		State:           c.State().String(),
		Tracking:        c.State() == StateActive,
		UserID:          c.uid,
		ShowPrivateInfo: c.showPrivateInfo,
		ShareLocation:   c.prefs.Share(),
		Reason:          c.lastPolicyReason,
		Geofences:       c.reconciler.Snapshot(),
		DeferredAdd:     c.reconciler.Deferred(),
	}
	c.mu.Unlock()

	if ev, ok := c.LastLocation(); ok {
		st.LastLocation = &ev
	}
	return st
}

func (c *Coordinator) trackingConfigLocked() policy.TrackingConfig {
	_, authed := c.identity.CurrentUserID()
	return policy.TrackingConfig{
		Authenticated:     authed,
		GeocoderAvailable: c.geocoder.Available(),
		UserOptedIn:       c.prefs.Share(),
	}
}

// evaluateLocked applies the policy: register everything and go Active, or
// unregister everything and sit in Starting. Work that was skipped for a
// transient reason is retried while Active.
func (c *Coordinator) evaluateLocked(trigger string) {
	cfg := c.trackingConfigLocked()
	track := policy.ShouldTrack(cfg)
	c.lastPolicyReason = policy.Reason(cfg)

	result := "disabled"
	if track {
		result = "enabled"
	}
	metrics.PolicyEvaluationsTotal.WithLabelValues(result).Inc()
	logging.Debug().
		Str("trigger", trigger).
		Bool("authenticated", cfg.Authenticated).
		Bool("geocoder_available", cfg.GeocoderAvailable).
		Bool("opted_in", cfg.UserOptedIn).
		Bool("track", track).
		Msg("Tracking policy evaluated")

	if !track {
		if c.State() == StateActive {
			c.deactivateLocked()
			c.setStateLocked(StateStarting)
		}
		return
	}

	if c.State() != StateActive {
		c.reconciler.Register(c.ctx)
		c.setStateLocked(StateActive)
	} else {
		c.reconciler.RetryDeferred(c.ctx)
	}
	if !c.periodicActive {
		c.requestUpdatesLocked()
	}
}

func (c *Coordinator) requestUpdatesLocked() {
	if err := c.platform.RequestPeriodicUpdates(c.request, c.locTopic); err != nil {
		logging.Warn().Err(err).Msg("Periodic location request failed")
		c.dlog.Logf("location updates request failed: %v", err)
		return
	}
	c.periodicActive = true
}

func (c *Coordinator) deactivateLocked() {
	c.reconciler.Unregister(c.ctx)
	if c.periodicActive {
		if err := c.platform.RemoveUpdates(c.locTopic); err != nil {
			logging.Warn().Err(err).Msg("Removing periodic location updates failed")
			c.dlog.Logf("location updates removal failed: %v", err)
		}
		c.periodicActive = false
	}
}

// listener receives remote snapshots from the gateway.
type listener Coordinator

func (l *listener) OnGeofencesUpdated(fences []models.Geofence) {
	c := (*Coordinator)(l)
	c.mu.Lock()
	if c.State() == StateStopped {
		c.mu.Unlock()
		return
	}
	c.reconciler.OnGeofenceSetReceived(c.ctx, fences, c.State() == StateActive)
	c.evaluateLocked("geofences")
	snapshot := c.reconciler.Snapshot()
	c.mu.Unlock()

	c.notify(func(o Observer) { o.OnGeofences(snapshot) })
}

func (l *listener) OnShowPrivateInfoUpdated(show bool) {
	c := (*Coordinator)(l)
	c.mu.Lock()
	if c.State() == StateStopped {
		c.mu.Unlock()
		return
	}
	c.showPrivateInfo = show
	c.evaluateLocked("privacy")
	c.mu.Unlock()

	c.notify(func(o Observer) { o.OnShowPrivateInfo(show) })
}

func (l *listener) OnShareLocationUpdated(share bool) {
	c := (*Coordinator)(l)
	if !c.Running() {
		return
	}
	if _, err := c.prefs.SetShare(share); err != nil {
		logging.Warn().Err(err).Bool("share", share).Msg("Failed to store remote share flag locally")
	}
	c.Reevaluate()
	c.notify(func(o Observer) { o.OnShareLocation(share) })
}
