// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package platform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/models"
)

type published struct {
	topic   string
	payload []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		p.msgs = append(p.msgs, published{topic: topic, payload: m.Payload})
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) take() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.msgs
	p.msgs = nil
	return out
}

func geofencingEvents(t *testing.T, msgs []published) []models.GeofencingEvent {
	t.Helper()
	var out []models.GeofencingEvent
	for _, m := range msgs {
		if m.topic != TopicGeofence {
			continue
		}
		var ev models.GeofencingEvent
		if err := json.Unmarshal(m.payload, &ev); err != nil {
			t.Fatalf("decode geofencing event: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

// Home is a 100 m circle; the office is about 1.1 km north.
var (
	home   = models.Geofence{Label: "home", Lat: 37.7749, Lng: -122.4194, Radius: 100}
	office = models.Geofence{Label: "office", Lat: 37.7849, Lng: -122.4194, Radius: 100}
	t0     = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

func fixAt(lat, lng float64, at time.Time) models.Fix {
	return models.Fix{Lat: lat, Lng: lng, Time: at}
}

func TestAddGeofencesRequiresPermission(t *testing.T) {
	t.Parallel()
	p := NewProvider(&recordingPublisher{}, false)
	if err := p.AddGeofences(context.Background(), []models.Geofence{home}, TopicGeofence); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("AddGeofences() error = %v, want ErrPermissionDenied", err)
	}
	if err := p.RequestPeriodicUpdates(DefaultUpdateRequest(), TopicLocation); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("RequestPeriodicUpdates() error = %v, want ErrPermissionDenied", err)
	}
}

func TestInitialEnterTrigger(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	p := NewProvider(pub, true)
	ctx := context.Background()
	_ = p.AddGeofences(ctx, []models.Geofence{home, office}, TopicGeofence)

	if err := p.IngestFix(ctx, fixAt(home.Lat, home.Lng, t0)); err != nil {
		t.Fatalf("IngestFix() error = %v", err)
	}
	events := geofencingEvents(t, pub.take())
	if len(events) != 1 {
		t.Fatalf("got %d geofencing events, want 1", len(events))
	}
	if events[0].Transition != models.TransitionEnter || len(events[0].Labels) != 1 || events[0].Labels[0] != "home" {
		t.Errorf("event = %+v, want enter [home]", events[0])
	}

	// Staying inside fires nothing.
	_ = p.IngestFix(ctx, fixAt(home.Lat+0.0001, home.Lng, t0.Add(time.Minute)))
	if events := geofencingEvents(t, pub.take()); len(events) != 0 {
		t.Errorf("got %+v while staying inside", events)
	}
}

func TestOutsideAtRegistrationFiresNothing(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	p := NewProvider(pub, true)
	ctx := context.Background()
	_ = p.AddGeofences(ctx, []models.Geofence{home}, TopicGeofence)

	_ = p.IngestFix(ctx, fixAt(office.Lat, office.Lng, t0))
	if events := geofencingEvents(t, pub.take()); len(events) != 0 {
		t.Errorf("got %+v for a fix outside every fence", events)
	}
}

func TestMoveBetweenFencesExitsThenEnters(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	p := NewProvider(pub, true)
	ctx := context.Background()
	_ = p.AddGeofences(ctx, []models.Geofence{home, office}, TopicGeofence)

	_ = p.IngestFix(ctx, fixAt(home.Lat, home.Lng, t0))
	pub.take()

	_ = p.IngestFix(ctx, fixAt(office.Lat, office.Lng, t0.Add(10*time.Minute)))
	events := geofencingEvents(t, pub.take())
	if len(events) != 2 {
		t.Fatalf("got %d events, want exit then enter", len(events))
	}
	if events[0].Transition != models.TransitionExit || events[0].Labels[0] != "home" {
		t.Errorf("first event = %+v, want exit [home]", events[0])
	}
	if events[1].Transition != models.TransitionEnter || events[1].Labels[0] != "office" {
		t.Errorf("second event = %+v, want enter [office]", events[1])
	}
}

func TestRemoveGeofencesStopsTransitions(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	p := NewProvider(pub, true)
	ctx := context.Background()
	_ = p.AddGeofences(ctx, []models.Geofence{home}, TopicGeofence)
	_ = p.RemoveGeofences(ctx, []string{"home", "never-added"})

	if len(p.Geofences()) != 0 {
		t.Errorf("Geofences() = %+v after removal", p.Geofences())
	}
	_ = p.IngestFix(ctx, fixAt(home.Lat, home.Lng, t0))
	if events := geofencingEvents(t, pub.take()); len(events) != 0 {
		t.Errorf("got %+v after removal", events)
	}
}

func TestPeriodicThrottle(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	p := NewProvider(pub, true)
	ctx := context.Background()
	if err := p.RequestPeriodicUpdates(DefaultUpdateRequest(), TopicLocation); err != nil {
		t.Fatalf("RequestPeriodicUpdates() error = %v", err)
	}

	// About 111 m north per 0.001 degree.
	steps := []struct {
		name    string
		fix     models.Fix
		deliver bool
	}{
		{"first fix", fixAt(37.0, -122.0, t0), true},
		{"moved but too soon", fixAt(37.001, -122.0, t0.Add(time.Minute)), false},
		{"fastest interval passed, moved", fixAt(37.001, -122.0, t0.Add(5*time.Minute)), true},
		{"fastest interval passed, barely moved", fixAt(37.00101, -122.0, t0.Add(11*time.Minute)), false},
		{"interval passed while stationary", fixAt(37.00101, -122.0, t0.Add(25*time.Minute)), true},
	}
	for _, step := range steps {
		_ = p.IngestFix(ctx, step.fix)
		msgs := pub.take()
		got := len(msgs) == 1 && msgs[0].topic == TopicLocation
		if got != step.deliver {
			t.Errorf("%s: delivered = %v, want %v", step.name, got, step.deliver)
		}
	}
}

func TestRemoveUpdates(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	p := NewProvider(pub, true)
	ctx := context.Background()
	_ = p.RequestPeriodicUpdates(DefaultUpdateRequest(), TopicLocation)

	_ = p.RemoveUpdates("some.other.topic")
	if _, ok := p.PeriodicRequest(); !ok {
		t.Fatal("RemoveUpdates() for another topic cleared the request")
	}
	_ = p.RemoveUpdates(TopicLocation)
	if _, ok := p.PeriodicRequest(); ok {
		t.Fatal("request still active after RemoveUpdates()")
	}
	_ = p.IngestFix(ctx, fixAt(1, 1, t0))
	if msgs := pub.take(); len(msgs) != 0 {
		t.Errorf("got %d deliveries after RemoveUpdates()", len(msgs))
	}
}

func TestIngestFixValidation(t *testing.T) {
	t.Parallel()
	p := NewProvider(&recordingPublisher{}, true)
	if err := p.IngestFix(context.Background(), models.Fix{Lat: 100, Lng: 0}); !errors.Is(err, ErrInvalidFix) {
		t.Errorf("IngestFix() error = %v, want ErrInvalidFix", err)
	}
}

func TestRevokedPermissionSuppressesDeliveries(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	p := NewProvider(pub, true)
	ctx := context.Background()
	_ = p.AddGeofences(ctx, []models.Geofence{home}, TopicGeofence)
	_ = p.RequestPeriodicUpdates(DefaultUpdateRequest(), TopicLocation)

	p.SetFineLocationGranted(false)
	_ = p.IngestFix(ctx, fixAt(home.Lat, home.Lng, t0))
	if msgs := pub.take(); len(msgs) != 0 {
		t.Errorf("got %d deliveries without permission", len(msgs))
	}
}

func TestIngestFixStampsMissingTime(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	p := NewProvider(pub, true)
	p.now = func() time.Time { return t0 }
	_ = p.RequestPeriodicUpdates(DefaultUpdateRequest(), TopicLocation)

	_ = p.IngestFix(context.Background(), models.Fix{Lat: 1, Lng: 1})
	msgs := pub.take()
	if len(msgs) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(msgs))
	}
	var fix models.Fix
	_ = json.Unmarshal(msgs[0].payload, &fix)
	if !fix.Time.Equal(t0) {
		t.Errorf("fix time = %v, want %v", fix.Time, t0)
	}
}

func TestUpdateRequestFromConfig(t *testing.T) {
	t.Parallel()
	req := DefaultUpdateRequest()
	if req.Interval != 20*time.Minute || req.FastestInterval != 5*time.Minute || req.SmallestDisplacement != 15 || req.Priority != PriorityBalanced {
		t.Errorf("DefaultUpdateRequest() = %+v", req)
	}
}
