// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/models"
)

// FixHandler receives periodic location deliveries.
type FixHandler func(ctx context.Context, fix models.Fix) error

// GeofencingHandler receives geofence transitions.
type GeofencingHandler func(ctx context.Context, ev models.GeofencingEvent) error

// Dispatcher routes provider deliveries to receivers. Each topic has one
// handler that processes messages in arrival order. A panicking receiver is
// recovered and its message dropped.
type Dispatcher struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewDispatcher creates the in-process pub/sub and the router.
func NewDispatcher(closeTimeout time.Duration) (*Dispatcher, error) {
	if closeTimeout <= 0 {
		closeTimeout = 10 * time.Second
	}
	logger := logging.NewWatermillLogger("dispatcher")

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	router.AddMiddleware(
		ackAlways,
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)

	return &Dispatcher{pubsub: pubsub, router: router, logger: logger}, nil
}

// Publisher is where the provider publishes deliveries.
func (d *Dispatcher) Publisher() message.Publisher { return d.pubsub }

// HandleFixes registers the receiver for periodic location deliveries on topic.
func (d *Dispatcher) HandleFixes(name, topic string, fn FixHandler) {
	d.router.AddConsumerHandler(name, topic, d.pubsub, func(msg *message.Message) error {
		var fix models.Fix
		if err := json.Unmarshal(msg.Payload, &fix); err != nil {
			logging.Warn().Err(err).Str("handler", name).Msg("Dropping undecodable fix delivery")
			return nil
		}
		return fn(messageContext(msg), fix)
	})
}

// HandleGeofencing registers the receiver for geofence transitions on topic.
func (d *Dispatcher) HandleGeofencing(name, topic string, fn GeofencingHandler) {
	d.router.AddConsumerHandler(name, topic, d.pubsub, func(msg *message.Message) error {
		var ev models.GeofencingEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			logging.Warn().Err(err).Str("handler", name).Msg("Dropping undecodable geofencing delivery")
			return nil
		}
		return fn(messageContext(msg), ev)
	})
}

// HandleFeed registers a handler for raw fixes arriving from an external
// subscriber, typically the NATS fix feed.
func (d *Dispatcher) HandleFeed(name, topic string, sub message.Subscriber, fn FixHandler) {
	d.router.AddConsumerHandler(name, topic, sub, func(msg *message.Message) error {
		var fix models.Fix
		if err := json.Unmarshal(msg.Payload, &fix); err != nil {
			logging.Warn().Err(err).Str("handler", name).Msg("Dropping undecodable fix from feed")
			return nil
		}
		if fix.Source == "" {
			fix.Source = "feed"
		}
		return fn(messageContext(msg), fix)
	})
}

// ackAlways makes deliveries fire-and-forget: a receiver error or recovered
// panic is logged and the message acked, so nothing is redelivered.
func ackAlways(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		msgs, err := h(msg)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("handler", message.HandlerNameFromCtx(msg.Context())).
				Str("message_uuid", msg.UUID).
				Msg("Receiver dropped delivery")
		}
		return msgs, nil
	}
}

func messageContext(msg *message.Message) context.Context {
	ctx := msg.Context()
	if id := middleware.MessageCorrelationID(msg); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	return ctx
}

// Serve runs the router until ctx is canceled.
func (d *Dispatcher) Serve(ctx context.Context) error {
	if err := d.router.Run(ctx); err != nil {
		return fmt.Errorf("dispatcher router: %w", err)
	}
	return ctx.Err()
}

// Running is closed once all handlers are subscribed.
func (d *Dispatcher) Running() chan struct{} { return d.router.Running() }

// IsRunning reports whether the router is running.
func (d *Dispatcher) IsRunning() bool { return d.router.IsRunning() }

// Close stops the router and the pub/sub.
func (d *Dispatcher) Close() error {
	rerr := d.router.Close()
	perr := d.pubsub.Close()
	if rerr != nil {
		return fmt.Errorf("close router: %w", rerr)
	}
	if perr != nil {
		return fmt.Errorf("close pubsub: %w", perr)
	}
	return nil
}

// String implements fmt.Stringer for supervisor logs.
func (d *Dispatcher) String() string { return "platform-dispatcher" }
