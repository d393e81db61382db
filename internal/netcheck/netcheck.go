// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package netcheck sends a cheap outbound request to wake up connectivity
// before a remote write.
package netcheck

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/mirrortracker/internal/logging"
)

// Pinger issues a HEAD request to a fixed URL. The result is informational
// only; failures are logged at debug level and otherwise ignored.
type Pinger struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// New returns a Pinger for url. A zero timeout means one second.
func New(url string, timeout time.Duration) *Pinger {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Pinger{
		url:     url,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Ping reports whether the URL answered at all.
func (p *Pinger) Ping(ctx context.Context) bool {
	if p == nil || p.url == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, http.NoBody)
	if err != nil {
		logging.Debug().Err(err).Str("url", p.url).Msg("Connectivity ping request invalid")
		return false
	}
	req.Header.Set("User-Agent", "Mirror")
	req.Header.Set("Connection", "close")
	req.Close = true

	resp, err := p.client.Do(req)
	if err != nil {
		logging.Debug().Err(err).Str("url", p.url).Msg("Connectivity ping failed")
		return false
	}
	resp.Body.Close()
	logging.Debug().Int("status", resp.StatusCode).Str("url", p.url).Msg("Connectivity ping answered")
	return true
}
