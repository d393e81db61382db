// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package coordinator

import (
	"github.com/tomtom215/mirrortracker/internal/models"
)

// Observer is the UI binding. Callbacks run on the goroutine that produced
// the change, one at a time, under the coordinator's dispatch lock. They must
// return promptly and must not call back into the Coordinator.
type Observer interface {
	OnLocation(ev models.LocationEvent)
	OnShowPrivateInfo(show bool)
	OnGeofences(fences []models.Geofence)
	OnShareLocation(share bool)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	Location        func(models.LocationEvent)
	ShowPrivateInfo func(bool)
	Geofences       func([]models.Geofence)
	ShareLocation   func(bool)
}

func (o ObserverFuncs) OnLocation(ev models.LocationEvent) {
	if o.Location != nil {
		o.Location(ev)
	}
}

func (o ObserverFuncs) OnShowPrivateInfo(show bool) {
	if o.ShowPrivateInfo != nil {
		o.ShowPrivateInfo(show)
	}
}

func (o ObserverFuncs) OnGeofences(fences []models.Geofence) {
	if o.Geofences != nil {
		o.Geofences(fences)
	}
}

func (o ObserverFuncs) OnShareLocation(share bool) {
	if o.ShareLocation != nil {
		o.ShareLocation(share)
	}
}

// SetObserver binds obs, replacing any previous observer, and replays the
// current flags, geofences and last location to it. nil clears the slot.
func (c *Coordinator) SetObserver(obs Observer) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.obsMu.Lock()
	c.observer = obs
	last := c.last
	c.obsMu.Unlock()

	if obs == nil || !c.Running() {
		return
	}
	st := c.Status()
	obs.OnShowPrivateInfo(st.ShowPrivateInfo)
	obs.OnShareLocation(st.ShareLocation)
	obs.OnGeofences(st.Geofences)
	if last != nil {
		obs.OnLocation(*last)
	}
}

// LastLocation returns the most recent event written while running.
func (c *Coordinator) LastLocation() (models.LocationEvent, bool) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	if c.last == nil {
		return models.LocationEvent{}, false
	}
	return *c.last, true
}

// DeliverLocation caches ev and hands it to the bound observer. The pipeline
// only calls it while Running.
func (c *Coordinator) DeliverLocation(ev models.LocationEvent) {
	c.obsMu.Lock()
	c.last = &ev
	c.obsMu.Unlock()

	c.notify(func(o Observer) { o.OnLocation(ev) })
}

// notify calls fn with the current observer while the coordinator is
// running. The dispatch lock is held across fn, so once SetObserver(nil) or
// Stop returns the previous observer is never called again.
func (c *Coordinator) notify(fn func(Observer)) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.obsMu.Lock()
	obs := c.observer
	c.obsMu.Unlock()
	if obs == nil || !c.Running() {
		return
	}
	fn(obs)
}

// clearObserver waits for an in-flight callback and empties the slot.
func (c *Coordinator) clearObserver() {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	c.obsMu.Lock()
	c.observer = nil
	c.obsMu.Unlock()
}
