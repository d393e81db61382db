// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package debuglog

import (
	"fmt"
	"strings"
)

// Line texts shared by the coordinator and pipeline.
const (
	MsgServiceStarted  = "service started"
	MsgServiceStopped  = "service stopped"
	MsgLocationWritten = "updated location in remote store"
)

// LogServiceStarted records coordinator startup.
func (l *Log) LogServiceStarted() { l.Append(MsgServiceStarted) }

// LogServiceStopped records coordinator teardown.
func (l *Log) LogServiceStopped() { l.Append(MsgServiceStopped) }

// LogGeofencingEvent records a transition and the fence labels involved,
// e.g. "geofence enter home work".
func (l *Log) LogGeofencingEvent(transition string, labels []string) {
	line := "geofence " + transition
	if len(labels) > 0 {
		line += " " + strings.Join(labels, " ")
	}
	l.Append(line)
}

// LogLocationUpdated records a raw fix.
func (l *Log) LogLocationUpdated(lat, lng float64) {
	l.Append(fmt.Sprintf("location %3.8f %3.8f", lat, lng))
}

// LogDBWrite records a location handed to the remote store.
func (l *Log) LogDBWrite() { l.Append(MsgLocationWritten) }
