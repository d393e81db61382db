// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package policy holds the pure decisions that gate tracking. Functions here
// have no side effects and read nothing but their arguments.
package policy

import "fmt"

// TrackingConfig is the set of inputs the tracking decision depends on.
// It is derived, never persisted, and recomputed on every relevant event.
type TrackingConfig struct {
	Authenticated     bool
	GeocoderAvailable bool
	UserOptedIn       bool
}

// ShouldTrack reports whether periodic updates and geofences should be active.
// Every input is required.
func ShouldTrack(cfg TrackingConfig) bool {
	return cfg.Authenticated && cfg.GeocoderAvailable && cfg.UserOptedIn
}

// Reason explains a false ShouldTrack result, or returns "" when tracking is on.
func Reason(cfg TrackingConfig) string {
	switch {
	case !cfg.Authenticated:
		return "no authenticated user"
	case !cfg.GeocoderAvailable:
		return "geocoder unavailable"
	case !cfg.UserOptedIn:
		return "location sharing disabled"
	default:
		return ""
	}
}

// GuardResult is the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	// Transient is set when the condition may clear without a new geofence
	// set, e.g. a permission grant. Callers mark the work as deferred.
	Transient bool
}

// Error converts a denied result into an error.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// RegistrationContext provides the inputs for CanMutateRegistrations.
type RegistrationContext struct {
	CachedFences        int
	FineLocationGranted bool
}

// CanMutateRegistrations evaluates whether geofence registrations may be
// added or removed.
// Rules:
// - the cached set must be non-empty (structural)
// - fine location must be granted (transient)
func CanMutateRegistrations(ctx RegistrationContext) GuardResult {
	if ctx.CachedFences == 0 {
		return GuardResult{Allowed: false, Reason: "no geofences cached"}
	}
	if !ctx.FineLocationGranted {
		return GuardResult{Allowed: false, Reason: "fine location permission not granted", Transient: true}
	}
	return GuardResult{Allowed: true}
}
