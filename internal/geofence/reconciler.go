// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package geofence keeps the location provider's geofence registrations in
// line with the remotely configured set.
//
// Reconciliation is remove-all then add-all. The cached set is trusted: the
// reconciler never asks the provider what it currently holds.
package geofence

import (
	"context"
	"sync"

	"github.com/tomtom215/mirrortracker/internal/debuglog"
	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/metrics"
	"github.com/tomtom215/mirrortracker/internal/models"
	"github.com/tomtom215/mirrortracker/internal/policy"
)

// Registrar is the part of the location provider the reconciler drives.
type Registrar interface {
	AddGeofences(ctx context.Context, fences []models.Geofence, topic string) error
	RemoveGeofences(ctx context.Context, labels []string) error
	FineLocationGranted() bool
}

// Reconciler is safe for concurrent use.
type Reconciler struct {
	registrar Registrar
	dlog      *debuglog.Log
	topic     string

	mu       sync.Mutex
	cached   []models.Geofence
	deferred bool
}

// NewReconciler returns a reconciler that registers fences for delivery on topic.
func NewReconciler(registrar Registrar, dlog *debuglog.Log, topic string) *Reconciler {
	return &Reconciler{registrar: registrar, dlog: dlog, topic: topic}
}

// OnGeofenceSetReceived replaces the cached set with the valid members of
// fences. Registrations for the old set are removed first, and the new set is
// added when trackingEnabled. Rejected fences are returned and skipped.
func (r *Reconciler) OnGeofenceSetReceived(ctx context.Context, fences []models.Geofence, trackingEnabled bool) []Rejection {
	valid, rejected := ValidateSet(fences)
	for _, rej := range rejected {
		metrics.GeofenceRejectedTotal.WithLabelValues(rej.Reason).Inc()
		logging.Warn().Str("label", rej.Label).Str("reason", rej.Reason).Msg("Geofence rejected")
		r.dlog.Logf("geofence rejected %q: %s", rej.Label, rej.Reason)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(ctx)
	r.cached = valid
	r.deferred = false
	if trackingEnabled {
		r.addLocked(ctx)
	}
	return rejected
}

// Register adds the cached set. Used when tracking turns on.
func (r *Reconciler) Register(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(ctx)
}

// Unregister removes the cached set. The cache itself is kept.
func (r *Reconciler) Unregister(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred = false
	r.removeLocked(ctx)
}

// RetryDeferred re-attempts an add that was skipped for a transient reason.
// It reports whether an add was attempted.
func (r *Reconciler) RetryDeferred(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.deferred {
		return false
	}
	r.addLocked(ctx)
	return true
}

// Deferred reports whether an add is waiting on a transient condition.
func (r *Reconciler) Deferred() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deferred
}

// Snapshot returns a copy of the cached set.
func (r *Reconciler) Snapshot() []models.Geofence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Geofence(nil), r.cached...)
}

func (r *Reconciler) guardLocked() policy.GuardResult {
	return policy.CanMutateRegistrations(policy.RegistrationContext{
		CachedFences:        len(r.cached),
		FineLocationGranted: r.registrar.FineLocationGranted(),
	})
}

func (r *Reconciler) removeLocked(ctx context.Context) {
	if guard := r.guardLocked(); !guard.Allowed {
		logging.Debug().Str("reason", guard.Reason).Msg("Geofence removal skipped")
		return
	}
	labels := models.Labels(r.cached)
	if err := r.registrar.RemoveGeofences(ctx, labels); err != nil {
		logging.Warn().Err(err).Strs("labels", labels).Msg("Geofence removal failed")
		r.dlog.Logf("geofence remove failed: %v", err)
		return
	}
	metrics.GeofencesRegistered.Set(0)
}

func (r *Reconciler) addLocked(ctx context.Context) {
	guard := r.guardLocked()
	if !guard.Allowed {
		r.deferred = guard.Transient
		logging.Debug().Str("reason", guard.Reason).Bool("deferred", guard.Transient).Msg("Geofence registration skipped")
		return
	}
	r.deferred = false
	if err := r.registrar.AddGeofences(ctx, r.cached, r.topic); err != nil {
		logging.Warn().Err(err).Strs("labels", models.Labels(r.cached)).Msg("Geofence registration failed")
		r.dlog.Logf("geofence add failed: %v", err)
		return
	}
	metrics.GeofencesRegistered.Set(float64(len(r.cached)))
}
