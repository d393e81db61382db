// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/mirrortracker/internal/auth"
)

// Router holds the handler and middleware the route table is built from.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	auth          *auth.Middleware
	ws            http.Handler
}

// NewRouter creates a router. ws serves the observer stream and may be nil.
func NewRouter(handler *Handler, mw *ChiMiddleware, authMW *auth.Middleware, ws http.Handler) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	if authMW == nil {
		authMW = auth.NewMiddleware(nil, false)
	}
	return &Router{handler: handler, chiMiddleware: mw, auth: authMW, ws: ws}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(PrometheusMetrics)
		r.Use(router.auth.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(APISecurityHeaders())

			r.Get("/status", router.handler.Status)
			r.Get("/debuglog", router.handler.DebugLogLines)

			r.Put("/preferences/share", router.handler.SetShareLocation)
			r.Put("/preferences/private", router.handler.SetShowPrivateInfo)

			r.Post("/fixes", router.handler.IngestFix)
			r.Post("/stop", router.handler.Stop)
		})

		if router.ws != nil {
			r.Method(http.MethodGet, "/ws", router.ws)
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
