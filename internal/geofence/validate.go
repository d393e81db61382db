// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package geofence

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/models"
	"github.com/tomtom215/mirrortracker/internal/validation"
)

// Rejection names a fence dropped from a set and why.
type Rejection struct {
	Label  string
	Reason string
}

// Rejection reasons not produced by struct validation.
const (
	// ReasonDuplicate marks a fence whose label appeared earlier in the set.
	ReasonDuplicate = "duplicate_label"
	// ReasonMalformed marks an element that does not decode as a fence.
	ReasonMalformed = "malformed"
)

// DecodeSet decodes a JSON array of fences element by element, so one bad
// element is rejected without losing the others. It fails only when raw is
// not an array at all. Decoded fences still need ValidateSet.
func DecodeSet(raw []byte) ([]models.Geofence, []Rejection, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, fmt.Errorf("decode geofence set: %w", err)
	}

	fences := make([]models.Geofence, 0, len(elems))
	var rejected []Rejection
	for _, elem := range elems {
		var f models.Geofence
		if err := json.Unmarshal(elem, &f); err != nil {
			rejected = append(rejected, Rejection{Label: labelOf(elem), Reason: ReasonMalformed})
			continue
		}
		fences = append(fences, f)
	}
	return fences, rejected, nil
}

// labelOf recovers the label of an element that failed to decode, if any.
func labelOf(elem json.RawMessage) string {
	var partial struct {
		Label string `json:"label"`
	}
	_ = json.Unmarshal(elem, &partial)
	return partial.Label
}

// ValidateSet splits fences into the ones that may be registered and the ones
// that may not. A bad fence never blocks the rest of the batch. The first
// occurrence of a label wins.
func ValidateSet(fences []models.Geofence) ([]models.Geofence, []Rejection) {
	valid := make([]models.Geofence, 0, len(fences))
	var rejected []Rejection
	seen := make(map[string]struct{}, len(fences))

	for i := range fences {
		f := fences[i]
		if err := validation.ValidateStruct(&f); err != nil {
			rejected = append(rejected, Rejection{Label: f.Label, Reason: err.FirstTag()})
			continue
		}
		if _, dup := seen[f.Label]; dup {
			rejected = append(rejected, Rejection{Label: f.Label, Reason: ReasonDuplicate})
			continue
		}
		seen[f.Label] = struct{}{}
		valid = append(valid, f)
	}
	return valid, rejected
}
