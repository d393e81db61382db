// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/validation"
)

// maxBodyBytes caps request bodies; every accepted body is a small object.
const maxBodyBytes = 64 * 1024

// ToggleRequest is the body of the preference endpoints.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// FixRequest is one raw fix for the software location provider.
type FixRequest struct {
	Lat      *float64 `json:"lat" validate:"required"`
	Lng      *float64 `json:"lng" validate:"required"`
	Time     string   `json:"time,omitempty"`
	Accuracy float64  `json:"accuracy,omitempty" validate:"gte=0"`
}

// decodeAndValidate reads a JSON body into dst and validates it. On failure
// the error response has already been written.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.BadRequest(fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
			return false
		}
		rw.BadRequest("failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		rw.BadRequest("invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
