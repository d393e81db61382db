// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package platform

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want, tolerance        float64
	}{
		{"same point", 37.7749, -122.4194, 37.7749, -122.4194, 0, 1e-9},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 10},
		{"SF to LA", 37.7749, -122.4194, 34.0522, -118.2437, 559120, 1000},
		{"across the antimeridian", 0, 179.9995, 0, -179.9995, 111.2, 0.5},
	}
	for _, tt := range tests {
		got := Distance(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
		if math.Abs(got-tt.want) > tt.tolerance {
			t.Errorf("%s: Distance() = %.1f, want %.1f ± %.1f", tt.name, got, tt.want, tt.tolerance)
		}
	}
}
