// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package platform is the software location provider: it accepts raw fixes,
// evaluates registered geofences, throttles periodic location updates, and
// delivers both through watermill topics to registered receivers.
package platform

import (
	"time"

	"github.com/tomtom215/mirrortracker/internal/config"
)

// Delivery topics.
const (
	TopicLocation = "mirror.platform.location"
	TopicGeofence = "mirror.platform.geofence"
)

// Priority is the accuracy/power trade-off requested for periodic updates.
type Priority string

// Priorities.
const (
	PriorityHighAccuracy Priority = "high_accuracy"
	PriorityBalanced     Priority = "balanced_power_accuracy"
	PriorityLowPower     Priority = "low_power"
)

// UpdateRequest describes how often periodic updates should be delivered.
//
// A fix is delivered when it is the first one, when Interval has passed
// since the last delivery, or when FastestInterval has passed and the
// device moved at least SmallestDisplacement meters.
type UpdateRequest struct {
	Priority             Priority      `json:"priority"`
	Interval             time.Duration `json:"interval"`
	FastestInterval      time.Duration `json:"fastest_interval"`
	SmallestDisplacement float64       `json:"smallest_displacement"`
}

// DefaultUpdateRequest is balanced accuracy, every 20 minutes, at most every
// 5 minutes, ignoring moves under 15 meters.
func DefaultUpdateRequest() UpdateRequest {
	return UpdateRequest{
		Priority:             PriorityBalanced,
		Interval:             20 * time.Minute,
		FastestInterval:      5 * time.Minute,
		SmallestDisplacement: 15,
	}
}

// UpdateRequestFromConfig applies configured overrides to the defaults.
func UpdateRequestFromConfig(cfg *config.PlatformConfig) UpdateRequest {
	req := DefaultUpdateRequest()
	if cfg.Interval > 0 {
		req.Interval = cfg.Interval
	}
	if cfg.FastestInterval > 0 {
		req.FastestInterval = cfg.FastestInterval
	}
	if cfg.SmallestDisplacement > 0 {
		req.SmallestDisplacement = cfg.SmallestDisplacement
	}
	return req
}
