// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package models defines the values exchanged between the tracker's components
// and with the remote store.
package models

import (
	"time"
)

// LocationEvent is the geocoded summary of one fix. It is the value stored at
// users.<uid>.location, and each write replaces the previous one.
type LocationEvent struct {
	// Timestamp is the fix time in epoch milliseconds.
	Timestamp int64   `json:"timestamp"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat" validate:"finite,latitude"`
	Lng       float64 `json:"lng" validate:"finite,longitude"`
	Label     string  `json:"label"`
}

// Time returns Timestamp as a time.Time.
func (e LocationEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Summary renders the event as "City, State, Country", skipping empty parts.
func (e LocationEvent) Summary() string {
	out := ""
	for _, part := range []string{e.City, e.State, e.Country} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

// Fix is a raw position reported by the location provider.
type Fix struct {
	Lat  float64   `json:"lat" validate:"finite,latitude"`
	Lng  float64   `json:"lng" validate:"finite,longitude"`
	Time time.Time `json:"time"`
	// Accuracy in meters, zero when unknown.
	Accuracy float64 `json:"accuracy,omitempty" validate:"gte=0"`
	// Source names the producer (http, feed).
	Source string `json:"source,omitempty"`
}

// Address is the single best reverse-geocoding result for a coordinate.
type Address struct {
	Locality    string `json:"locality"`
	AdminArea   string `json:"admin_area"`
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// NewLocationEvent combines an address with the raw fix it was resolved from.
func NewLocationEvent(fix Fix, addr Address) LocationEvent {
	return LocationEvent{
		Timestamp: fix.Time.UnixMilli(),
		City:      addr.Locality,
		State:     addr.AdminArea,
		Country:   addr.CountryName,
		Lat:       fix.Lat,
		Lng:       fix.Lng,
	}
}
