// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package geocode resolves coordinates to a locality/region/country address.
package geocode

import (
	"context"
	"errors"

	"github.com/tomtom215/mirrortracker/internal/models"
)

// Lookup failures. Every one of them ends processing of the fix.
var (
	// ErrNoResults means the provider answered but had no address for the point.
	ErrNoResults = errors.New("no address found")
	// ErrInvalidCoordinates means the provider rejected the coordinates.
	ErrInvalidCoordinates = errors.New("invalid lat/long")
	// ErrUnavailable means the lookup was not attempted (circuit open, rate
	// limited, or no provider configured).
	ErrUnavailable = errors.New("geocoder unavailable")
	// ErrIO wraps transport and decoding failures.
	ErrIO = errors.New("I/O issue with reverse geocoding")
)

// Geocoder returns at most one address per coordinate.
type Geocoder interface {
	Lookup(ctx context.Context, lat, lng float64) (models.Address, error)
	// Available reports whether a geocoding backend is present at all.
	Available() bool
}

// Disabled is a Geocoder with no backend.
type Disabled struct{}

// Lookup always fails with ErrUnavailable.
func (Disabled) Lookup(context.Context, float64, float64) (models.Address, error) {
	return models.Address{}, ErrUnavailable
}

// Available reports false.
func (Disabled) Available() bool { return false }
