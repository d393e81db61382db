// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package coordinator

// State is the coordinator lifecycle state.
type State int32

const (
	// StateStopped: no user, or torn down.
	StateStopped State = iota
	// StateStarting: gateway open, tracking not active.
	StateStarting
	// StateActive: geofences and periodic updates are registered.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}
