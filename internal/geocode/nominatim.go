// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mirrortracker/internal/config"
	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/metrics"
	"github.com/tomtom215/mirrortracker/internal/models"
)

// Nominatim is a reverse geocoder for Nominatim-compatible HTTP services.
// Requests are rate limited and guarded by a circuit breaker so a failing
// provider stops being called for a while.
type Nominatim struct {
	baseURL   string
	userAgent string
	language  string
	client    *http.Client
	limiter   *rate.Limiter
	cb        *gobreaker.CircuitBreaker[models.Address]
}

// NewNominatim builds a client from configuration.
func NewNominatim(cfg *config.GeocoderConfig) *Nominatim {
	metrics.GeocoderCircuitState.Set(0)

	settings := gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: cfg.BreakerHalfOpen,
		Interval:    cfg.BreakerResetSpan,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= cfg.BreakerFailures
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening geocoder circuit")
			}
			return trip
		},
		// Definite answers from the provider are not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoResults) || errors.Is(err, ErrInvalidCoordinates)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.GeocoderCircuitState.Set(stateToFloat(to))
			metrics.GeocoderCircuitTransitions.WithLabelValues(from.String(), to.String()).Inc()
		},
	}

	return &Nominatim{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		language:  cfg.Language,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cb:        gobreaker.NewCircuitBreaker[models.Address](settings),
	}
}

// Available reports true: a configured provider is present even while its
// circuit is open. Open circuits fail individual lookups with ErrUnavailable.
func (n *Nominatim) Available() bool { return true }

// State returns the circuit breaker state for status reporting.
func (n *Nominatim) State() string { return n.cb.State().String() }

// Lookup reverse geocodes one coordinate.
func (n *Nominatim) Lookup(ctx context.Context, lat, lng float64) (models.Address, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return models.Address{}, fmt.Errorf("%w: rate limit: %v", ErrUnavailable, err)
	}

	start := time.Now()
	addr, err := n.cb.Execute(func() (models.Address, error) {
		return n.reverse(ctx, lat, lng)
	})
	metrics.RecordGeocode(time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.Address{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return addr, err
}

// nominatimResponse is the subset of the jsonv2 reverse response we read.
type nominatimResponse struct {
	Error       string            `json:"error"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

func (n *Nominatim) reverse(ctx context.Context, lat, lng float64) (models.Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")
	if n.language != "" {
		q.Set("accept-language", n.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), http.NoBody)
	if err != nil {
		return models.Address{}, fmt.Errorf("%w: build request: %v", ErrIO, err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return models.Address{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return models.Address{}, ErrInvalidCoordinates
	case resp.StatusCode != http.StatusOK:
		return models.Address{}, fmt.Errorf("%w: unexpected status %d", ErrIO, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Address{}, fmt.Errorf("%w: read body: %v", ErrIO, err)
	}
	var parsed nominatimResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.Address{}, fmt.Errorf("%w: decode: %v", ErrIO, err)
	}
	if parsed.Error != "" || len(parsed.Address) == 0 {
		return models.Address{}, ErrNoResults
	}

	return models.Address{
		Locality:    firstNonEmpty(parsed.Address, "city", "town", "village", "hamlet", "municipality"),
		AdminArea:   firstNonEmpty(parsed.Address, "state", "region", "province"),
		CountryName: parsed.Address["country"],
		CountryCode: strings.ToUpper(parsed.Address["country_code"]),
		DisplayName: parsed.DisplayName,
	}, nil
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
