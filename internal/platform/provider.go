// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/metrics"
	"github.com/tomtom215/mirrortracker/internal/models"
	"github.com/tomtom215/mirrortracker/internal/validation"
)

// Errors returned by the provider.
var (
	ErrPermissionDenied = errors.New("fine location permission not granted")
	ErrInvalidFix       = errors.New("invalid fix")
)

type fenceState int

const (
	stateUnknown fenceState = iota
	stateInside
	stateOutside
)

type registeredFence struct {
	fence models.Geofence
	topic string
	state fenceState
}

type periodicRequest struct {
	req   UpdateRequest
	topic string
	last  *models.Fix
}

// Provider is a location provider fed by raw fixes. It is safe for
// concurrent use. Deliveries are published on the topic given at
// registration and never block on receivers.
type Provider struct {
	pub message.Publisher
	now func() time.Time

	mu       sync.Mutex
	granted  bool
	fences   map[string]*registeredFence
	periodic *periodicRequest
}

// NewProvider publishes deliveries through pub.
func NewProvider(pub message.Publisher, fineLocationGranted bool) *Provider {
	return &Provider{
		pub:     pub,
		now:     time.Now,
		granted: fineLocationGranted,
		fences:  make(map[string]*registeredFence),
	}
}

// FineLocationGranted reports whether precise location access is allowed.
func (p *Provider) FineLocationGranted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

// SetFineLocationGranted changes the permission. Revoking it keeps existing
// registrations but suppresses every delivery.
func (p *Provider) SetFineLocationGranted(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = granted
}

// RequestPeriodicUpdates starts periodic delivery on topic, replacing any
// previous request.
func (p *Provider) RequestPeriodicUpdates(req UpdateRequest, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return ErrPermissionDenied
	}
	p.periodic = &periodicRequest{req: req, topic: topic}
	logging.Info().
		Str("topic", topic).
		Str("priority", string(req.Priority)).
		Dur("interval", req.Interval).
		Dur("fastest_interval", req.FastestInterval).
		Float64("smallest_displacement", req.SmallestDisplacement).
		Msg("Periodic location updates requested")
	return nil
}

// RemoveUpdates stops periodic delivery on topic.
func (p *Provider) RemoveUpdates(topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.periodic != nil && p.periodic.topic == topic {
		p.periodic = nil
		logging.Info().Str("topic", topic).Msg("Periodic location updates removed")
	}
	return nil
}

// PeriodicRequest returns the active request, if any.
func (p *Provider) PeriodicRequest() (UpdateRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.periodic == nil {
		return UpdateRequest{}, false
	}
	return p.periodic.req, true
}

// AddGeofences registers fences for enter and exit transitions on topic.
// A label that is already registered is replaced. A new registration fires
// an enter transition on the first fix inside it.
func (p *Provider) AddGeofences(_ context.Context, fences []models.Geofence, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return ErrPermissionDenied
	}
	for _, f := range fences {
		p.fences[f.Label] = &registeredFence{fence: f, topic: topic}
	}
	return nil
}

// RemoveGeofences drops registrations by label. Unknown labels are ignored.
func (p *Provider) RemoveGeofences(_ context.Context, labels []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range labels {
		delete(p.fences, l)
	}
	return nil
}

// Geofences returns the registered fences sorted by label.
func (p *Provider) Geofences() []models.Geofence {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Geofence, 0, len(p.fences))
	for _, rf := range p.fences {
		out = append(out, rf.fence)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

type delivery struct {
	topic   string
	payload any
}

// IngestFix feeds one raw fix. It publishes geofence transitions, then the
// periodic update if the request's throttle lets it through. A fix without a
// time is stamped now.
func (p *Provider) IngestFix(ctx context.Context, fix models.Fix) error {
	if verr := validation.ValidateStruct(fix); verr != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFix, verr.Error())
	}
	if fix.Time.IsZero() {
		fix.Time = p.now()
	}

	p.mu.Lock()
	if !p.granted {
		p.mu.Unlock()
		logging.Debug().Msg("Fix ignored: fine location permission not granted")
		return nil
	}
	deliveries := p.transitionsLocked(fix)
	if p.periodic != nil && p.periodic.shouldDeliver(fix) {
		f := fix
		p.periodic.last = &f
		deliveries = append(deliveries, delivery{topic: p.periodic.topic, payload: fix})
	}
	p.mu.Unlock()

	var errs []error
	for _, d := range deliveries {
		if err := p.publish(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// transitionsLocked updates fence states and groups changed labels by
// topic and transition.
func (p *Provider) transitionsLocked(fix models.Fix) []delivery {
	type key struct {
		topic      string
		transition models.Transition
	}
	grouped := make(map[key][]string)

	for label, rf := range p.fences {
		inside := Distance(fix.Lat, fix.Lng, rf.fence.Lat, rf.fence.Lng) <= float64(rf.fence.Radius)
		var transition models.Transition
		switch {
		case inside && rf.state != stateInside:
			transition = models.TransitionEnter
			rf.state = stateInside
		case !inside && rf.state == stateInside:
			transition = models.TransitionExit
			rf.state = stateOutside
		case !inside:
			rf.state = stateOutside
		}
		if transition != "" {
			k := key{rf.topic, transition}
			grouped[k] = append(grouped[k], label)
		}
	}

	keys := make([]key, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	// Exits before enters so a move between adjacent fences reads naturally.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].topic != keys[j].topic {
			return keys[i].topic < keys[j].topic
		}
		return keys[i].transition > keys[j].transition
	})

	out := make([]delivery, 0, len(keys))
	for _, k := range keys {
		labels := grouped[k]
		sort.Strings(labels)
		metrics.GeofenceTransitionsTotal.WithLabelValues(string(k.transition)).Add(float64(len(labels)))
		out = append(out, delivery{
			topic:   k.topic,
			payload: models.GeofencingEvent{Transition: k.transition, Labels: labels, Fix: fix},
		})
	}
	return out
}

func (r *periodicRequest) shouldDeliver(fix models.Fix) bool {
	if r.last == nil {
		return true
	}
	elapsed := fix.Time.Sub(r.last.Time)
	if elapsed >= r.req.Interval {
		return true
	}
	if elapsed < r.req.FastestInterval {
		return false
	}
	return Distance(r.last.Lat, r.last.Lng, fix.Lat, fix.Lng) >= r.req.SmallestDisplacement
}

func (p *Provider) publish(ctx context.Context, d delivery) error {
	payload, err := json.Marshal(d.payload)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		middleware.SetCorrelationID(id, msg)
	}
	if err := p.pub.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", d.topic, err)
	}
	return nil
}
