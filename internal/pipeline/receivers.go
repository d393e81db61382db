// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package pipeline

import (
	"context"

	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/models"
)

// ReceiveLocation handles a periodic location delivery. Its signature matches
// platform.FixHandler.
func (p *Pipeline) ReceiveLocation(ctx context.Context, fix models.Fix) error {
	p.dlog.LogLocationUpdated(fix.Lat, fix.Lng)
	_, err := p.Process(ctx, fix)
	return err
}

// ReceiveGeofencing handles a geofence transition: the transition is logged
// and the triggering fix runs through the pipeline. Its signature matches
// platform.GeofencingHandler.
func (p *Pipeline) ReceiveGeofencing(ctx context.Context, ev models.GeofencingEvent) error {
	logging.Ctx(ctx).Info().
		Str("transition", string(ev.Transition)).
		Strs("labels", ev.Labels).
		Msg("Geofence transition")
	p.dlog.LogGeofencingEvent(string(ev.Transition), ev.Labels)
	_, err := p.Process(ctx, ev.Fix)
	return err
}
