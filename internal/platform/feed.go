// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package platform

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

// FixFeedConfig configures the NATS subscription devices publish raw fixes to.
type FixFeedConfig struct {
	URL           string
	Subject       string
	QueueGroup    string
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

// rawFixUnmarshaler accepts plain JSON bodies. Devices publish bare fixes,
// not watermill-framed messages.
type rawFixUnmarshaler struct{}

func (rawFixUnmarshaler) Unmarshal(msg *natsgo.Msg) (*message.Message, error) {
	return message.NewMessage(watermill.NewUUID(), msg.Data), nil
}

// NewFixFeed subscribes to raw fixes on core NATS. Register it with
// Dispatcher.HandleFeed using cfg.Subject as the topic.
func NewFixFeed(cfg FixFeedConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("mirrortracker-fix-feed"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Fix feed disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Fix feed reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      rawFixUnmarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create fix feed subscriber: %w", err)
	}
	return sub, nil
}
