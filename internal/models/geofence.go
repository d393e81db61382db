// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package models

// Geofence is a circular region identified by Label. The label doubles as the
// platform registration id, so it must be unique within a set.
type Geofence struct {
	Label  string  `json:"label" validate:"required,notblank"`
	Lat    float64 `json:"lat" validate:"finite,latitude"`
	Lng    float64 `json:"lng" validate:"finite,longitude"`
	Radius int     `json:"radius" validate:"gt=0"` // meters
}

// Labels returns the labels of fences in order.
func Labels(fences []Geofence) []string {
	out := make([]string, len(fences))
	for i, f := range fences {
		out[i] = f.Label
	}
	return out
}

// Transition is the kind of geofence crossing reported by the provider.
type Transition string

const (
	TransitionEnter Transition = "enter"
	TransitionExit  Transition = "exit"
	TransitionDwell Transition = "dwell"
)

// GeofencingEvent is a batch of fences crossed by a single fix.
type GeofencingEvent struct {
	Transition Transition `json:"transition" validate:"oneof=enter exit dwell"`
	Labels     []string   `json:"labels"`
	Fix        Fix        `json:"fix"`
}
