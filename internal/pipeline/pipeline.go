// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package pipeline turns a raw fix into a geocoded LocationEvent and writes
// it to the remote store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/mirrortracker/internal/debuglog"
	"github.com/tomtom215/mirrortracker/internal/geocode"
	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/metrics"
	"github.com/tomtom215/mirrortracker/internal/models"
	"github.com/tomtom215/mirrortracker/internal/validation"
)

// ErrInvalidFix is returned for fixes with out-of-range or non-finite coordinates.
var ErrInvalidFix = errors.New("invalid lat/long")

// Writer stores the event remotely. *gateway.Gateway satisfies it.
type Writer interface {
	UpdateLocation(ctx context.Context, ev models.LocationEvent) error
}

// Sink receives written events while tracking runs. The coordinator
// satisfies it.
type Sink interface {
	Running() bool
	DeliverLocation(ev models.LocationEvent)
}

// Pipeline is stateless apart from its collaborators and safe for concurrent use.
type Pipeline struct {
	geocoder geocode.Geocoder
	writer   Writer
	dlog     *debuglog.Log

	mu   sync.RWMutex
	sink Sink
}

// New builds a pipeline. sink may be nil.
func New(g geocode.Geocoder, w Writer, dlog *debuglog.Log, sink Sink) *Pipeline {
	return &Pipeline{geocoder: g, writer: w, dlog: dlog, sink: sink}
}

// SetSink attaches the running coordinator.
func (p *Pipeline) SetSink(sink Sink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// Process runs one fix through validation, geocoding and the remote write.
// Every failure is terminal for the fix: it is logged, counted and returned,
// and nothing partial is written.
func (p *Pipeline) Process(ctx context.Context, fix models.Fix) (models.LocationEvent, error) {
	log := logging.Ctx(ctx)

	if verr := validation.ValidateStruct(fix); verr != nil {
		metrics.RecordFix(metrics.OutcomeInvalid)
		log.Warn().Float64("lat", fix.Lat).Float64("lng", fix.Lng).Str("error", verr.Error()).Msg("Dropping fix with invalid coordinates")
		p.dlog.Logf("%s. Latitude = %v, Longitude = %v", ErrInvalidFix, fix.Lat, fix.Lng)
		return models.LocationEvent{}, fmt.Errorf("%w: %s", ErrInvalidFix, verr.Error())
	}

	addr, err := p.geocoder.Lookup(ctx, fix.Lat, fix.Lng)
	if err != nil {
		outcome, msg := classify(err)
		metrics.RecordFix(outcome)
		log.Warn().Err(err).Float64("lat", fix.Lat).Float64("lng", fix.Lng).Msg("Dropping fix: " + msg)
		p.dlog.Append(msg)
		return models.LocationEvent{}, err
	}

	ev := models.NewLocationEvent(fix, addr)
	if err := p.writer.UpdateLocation(ctx, ev); err != nil {
		metrics.RecordFix(metrics.OutcomeWriteFailed)
		log.Error().Err(err).Str("location", ev.Summary()).Msg("Failed to write location to remote store")
		p.dlog.Logf("location write failed: %v", err)
		return ev, fmt.Errorf("write location: %w", err)
	}
	p.dlog.LogDBWrite()
	metrics.RecordFix(metrics.OutcomeWritten)
	log.Info().Str("location", ev.Summary()).Int64("timestamp", ev.Timestamp).Msg("Updated location in remote store")

	// Work finishing after tracking stopped still writes, but never reaches
	// a torn-down observer.
	p.mu.RLock()
	sink := p.sink
	p.mu.RUnlock()
	if sink != nil && sink.Running() {
		sink.DeliverLocation(ev)
	}
	return ev, nil
}

func classify(err error) (outcome, msg string) {
	switch {
	case errors.Is(err, geocode.ErrNoResults):
		return metrics.OutcomeNoResults, geocode.ErrNoResults.Error()
	case errors.Is(err, geocode.ErrInvalidCoordinates):
		return metrics.OutcomeInvalid, geocode.ErrInvalidCoordinates.Error()
	case errors.Is(err, geocode.ErrUnavailable):
		return metrics.OutcomeUnavailable, geocode.ErrUnavailable.Error()
	default:
		return metrics.OutcomeGeocodeFailed, geocode.ErrIO.Error()
	}
}
