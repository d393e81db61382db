// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package validation

import (
	"math"
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type point struct {
	Label  string  `json:"label" validate:"required,notblank"`
	Lat    float64 `json:"lat" validate:"finite,latitude"`
	Lng    float64 `json:"lng" validate:"finite,longitude"`
	Radius int     `json:"radius" validate:"gt=0"`
	Mode   string  `json:"mode" validate:"omitempty,oneof=enter exit"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     point
		wantField string
		wantTag   string
	}{
		{"valid", point{Label: "home", Lat: 37.77, Lng: -122.42, Radius: 100}, "", ""},
		{"empty label", point{Label: "", Lat: 1, Lng: 1, Radius: 1}, "label", "required"},
		{"blank label", point{Label: "   ", Lat: 1, Lng: 1, Radius: 1}, "label", "notblank"},
		{"latitude out of range", point{Label: "a", Lat: 91, Lng: 1, Radius: 1}, "lat", "latitude"},
		{"longitude out of range", point{Label: "a", Lat: 1, Lng: -181, Radius: 1}, "lng", "longitude"},
		{"nan latitude", point{Label: "a", Lat: math.NaN(), Lng: 1, Radius: 1}, "lat", "finite"},
		{"zero radius", point{Label: "a", Lat: 1, Lng: 1, Radius: 0}, "radius", "gt"},
		{"bad mode", point{Label: "a", Lat: 1, Lng: 1, Radius: 1, Mode: "dwell"}, "mode", "oneof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateStruct() = nil, want error on %s", tt.wantField)
			}
			first := err.Errors()[0]
			if first.Field() != tt.wantField || first.Tag() != tt.wantTag {
				t.Errorf("first error = %s/%s, want %s/%s", first.Field(), first.Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&point{Label: "a", Lat: 100, Lng: 0, Radius: -5})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"lat must be a valid latitude", "radius must be greater than 0"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
	if err.FirstTag() != "lat_latitude" {
		t.Errorf("FirstTag() = %q, want lat_latitude", err.FirstTag())
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	single := ValidateStruct(&point{Label: "", Lat: 0, Lng: 0, Radius: 1}).ToAPIError()
	if single.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", single.Code)
	}
	if single.Details["field"] != "label" {
		t.Errorf("Details[field] = %v, want label", single.Details["field"])
	}

	multi := ValidateStruct(&point{Label: "", Lat: 200, Lng: 0, Radius: 0}).ToAPIError()
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 3 {
		t.Errorf("Details[fields] = %v, want 3 entries", multi.Details["fields"])
	}
}
