// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package geofence

import (
	"testing"

	"github.com/tomtom215/mirrortracker/internal/models"
)

func TestValidateSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         models.Geofence
		wantReason string
	}{
		{"valid", models.Geofence{Label: "home", Lat: 10, Lng: 10, Radius: 50}, ""},
		{"empty label", models.Geofence{Label: "", Lat: 10, Lng: 10, Radius: 50}, "label_required"},
		{"blank label", models.Geofence{Label: "  ", Lat: 10, Lng: 10, Radius: 50}, "label_notblank"},
		{"bad latitude", models.Geofence{Label: "x", Lat: -91, Lng: 10, Radius: 50}, "lat_latitude"},
		{"bad longitude", models.Geofence{Label: "x", Lat: 10, Lng: 181, Radius: 50}, "lng_longitude"},
		{"negative radius", models.Geofence{Label: "x", Lat: 10, Lng: 10, Radius: -1}, "radius_gt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			valid, rejected := ValidateSet([]models.Geofence{tt.in})
			if tt.wantReason == "" {
				if len(valid) != 1 || len(rejected) != 0 {
					t.Errorf("ValidateSet() = %v / %v, want one valid", valid, rejected)
				}
				return
			}
			if len(rejected) != 1 || rejected[0].Reason != tt.wantReason {
				t.Errorf("rejected = %v, want reason %s", rejected, tt.wantReason)
			}
		})
	}
}

func TestValidateSetDuplicates(t *testing.T) {
	t.Parallel()

	valid, rejected := ValidateSet([]models.Geofence{
		{Label: "a", Lat: 1, Lng: 1, Radius: 5},
		{Label: "a", Lat: 2, Lng: 2, Radius: 5},
	})
	if len(valid) != 1 || valid[0].Lat != 1 {
		t.Errorf("valid = %v, want first occurrence only", valid)
	}
	if len(rejected) != 1 || rejected[0].Reason != ReasonDuplicate {
		t.Errorf("rejected = %v, want one duplicate", rejected)
	}
}

func TestDecodeSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		raw          string
		wantLabels   []string
		wantRejected []Rejection
		wantErr      bool
	}{
		{
			name:       "all valid",
			raw:        `[{"label":"home","lat":1,"lng":2,"radius":100},{"label":"work","lat":3,"lng":4,"radius":50}]`,
			wantLabels: []string{"home", "work"},
		},
		{
			name:         "fractional radius",
			raw:          `[{"label":"home","lat":1,"lng":2,"radius":100},{"label":"work","lat":3,"lng":4,"radius":150.5}]`,
			wantLabels:   []string{"home"},
			wantRejected: []Rejection{{Label: "work", Reason: ReasonMalformed}},
		},
		{
			name:         "non-object element",
			raw:          `["nope",{"label":"home","lat":1,"lng":2,"radius":100}]`,
			wantLabels:   []string{"home"},
			wantRejected: []Rejection{{Label: "", Reason: ReasonMalformed}},
		},
		{name: "empty array", raw: `[]`, wantLabels: []string{}},
		{name: "not an array", raw: `{"label":"home"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fences, rejected, err := DecodeSet([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeSet() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			labels := models.Labels(fences)
			if len(labels) != len(tt.wantLabels) {
				t.Fatalf("labels = %v, want %v", labels, tt.wantLabels)
			}
			for i := range labels {
				if labels[i] != tt.wantLabels[i] {
					t.Errorf("labels[%d] = %q, want %q", i, labels[i], tt.wantLabels[i])
				}
			}
			if len(rejected) != len(tt.wantRejected) {
				t.Fatalf("rejected = %+v, want %+v", rejected, tt.wantRejected)
			}
			for i := range rejected {
				if rejected[i] != tt.wantRejected[i] {
					t.Errorf("rejected[%d] = %+v, want %+v", i, rejected[i], tt.wantRejected[i])
				}
			}
		})
	}
}
