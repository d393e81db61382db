// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/mirrortracker/internal/api"
	"github.com/tomtom215/mirrortracker/internal/auth"
	"github.com/tomtom215/mirrortracker/internal/config"
	"github.com/tomtom215/mirrortracker/internal/coordinator"
	"github.com/tomtom215/mirrortracker/internal/debuglog"
	"github.com/tomtom215/mirrortracker/internal/gateway"
	"github.com/tomtom215/mirrortracker/internal/geocode"
	"github.com/tomtom215/mirrortracker/internal/logging"
	"github.com/tomtom215/mirrortracker/internal/netcheck"
	"github.com/tomtom215/mirrortracker/internal/pipeline"
	"github.com/tomtom215/mirrortracker/internal/platform"
	"github.com/tomtom215/mirrortracker/internal/prefs"
	"github.com/tomtom215/mirrortracker/internal/remote"
	"github.com/tomtom215/mirrortracker/internal/supervisor"
	"github.com/tomtom215/mirrortracker/internal/supervisor/services"
	"github.com/tomtom215/mirrortracker/internal/wal"
	"github.com/tomtom215/mirrortracker/internal/websocket"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker",
		RunE:  runServe,
	}
}

// loadConfig loads configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return cfg, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.Info().
		Str("version", Version).
		Str("auth_mode", cfg.Auth.Mode).
		Str("remote_backend", cfg.Remote.Backend).
		Bool("geocoder", cfg.Geocoder.Enabled).
		Msg("Starting Mirror Tracker with supervisor tree")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := app.tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
			serveErr = err
		}
	}
	cancel()
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := app.tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Mirror Tracker stopped")
	return serveErr
}

// app holds what buildApp created that needs closing after the tree stops.
type app struct {
	tree    *supervisor.SupervisorTree
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warn().Err(err).Msg("Error during shutdown")
		}
	}
}

// buildApp wires every component and adds the long-lived ones to a new
// supervisor tree.
//
//nolint:gocyclo // sequential wiring
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}
	a.tree = tree

	dlog, err := debuglog.Open(debuglog.Config{
		Path:     cfg.DebugLog.Path,
		Capacity: cfg.DebugLog.Capacity,
		Timezone: cfg.DebugLog.Timezone,
	})
	if err != nil {
		return fail(err)
	}
	preferences, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		return fail(err)
	}
	identity, err := auth.NewProvider(&cfg.Auth)
	if err != nil {
		return fail(fmt.Errorf("auth provider: %w", err))
	}

	// Outbox for writes the remote store could not take.
	var outbox *wal.Outbox
	var remoteOutbox remote.Outbox
	if cfg.Outbox.Enabled {
		outbox, err = wal.Open(&cfg.Outbox)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, outbox.Close)
		remoteOutbox = outbox
	}

	backend, err := remote.Open(ctx, &cfg.Remote, remoteOutbox)
	if err != nil {
		return fail(fmt.Errorf("open remote store: %w", err))
	}
	a.closers = append(a.closers, backend.Close)

	if outbox != nil && backend.KV != nil {
		tree.AddDataService(services.NewOutboxRetryService(wal.NewRetryLoop(outbox, backend.KV)))
		tree.AddDataService(services.NewOutboxCompactorService(wal.NewCompactor(outbox)))
	}

	gw := gateway.New(backend.Store, gateway.Options{
		Pinger:             netcheck.New(cfg.Sync.PingURL, cfg.Sync.PingTimeout),
		WatchShareLocation: cfg.Sync.WatchShareLocation,
	})

	var geocoder geocode.Geocoder = geocode.Disabled{}
	if cfg.Geocoder.Enabled {
		geocoder = geocode.NewCached(geocode.NewNominatim(&cfg.Geocoder), cfg.Geocoder.CacheSize, cfg.Geocoder.CacheTTL)
	}

	dispatcher, err := platform.NewDispatcher(cfg.Platform.RouterCloseTimeout)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, dispatcher.Close)
	provider := platform.NewProvider(dispatcher.Publisher(), cfg.Platform.FineLocationGranted)

	pipe := pipeline.New(geocoder, gw, dlog, nil)
	dispatcher.HandleFixes("location-updates", platform.TopicLocation, pipe.ReceiveLocation)
	dispatcher.HandleGeofencing("geofence-transitions", platform.TopicGeofence, pipe.ReceiveGeofencing)

	if cfg.Platform.FixFeedEnabled {
		feedURL := cfg.Platform.FixFeedURL
		if feedURL == "" {
			feedURL = cfg.Remote.URL
			if backend.Embedded != nil {
				feedURL = backend.Embedded.ClientURL()
			}
		}
		feed, err := platform.NewFixFeed(platform.FixFeedConfig{
			URL:           feedURL,
			Subject:       cfg.Platform.FixFeedSubject,
			QueueGroup:    cfg.Platform.FixFeedQueueGroup,
			ReconnectWait: cfg.Remote.ReconnectWait,
		}, logging.NewWatermillLogger("fix-feed"))
		if err != nil {
			return fail(fmt.Errorf("fix feed: %w", err))
		}
		dispatcher.HandleFeed("fix-feed", cfg.Platform.FixFeedSubject, feed, provider.IngestFix)
		logging.Info().Str("url", feedURL).Str("subject", cfg.Platform.FixFeedSubject).Msg("Fix feed enabled")
	}

	coord := coordinator.New(coordinator.Options{
		Identity:      identity,
		Geocoder:      geocoder,
		Platform:      provider,
		Gateway:       gw,
		Prefs:         preferences,
		DebugLog:      dlog,
		UpdateRequest: platform.UpdateRequestFromConfig(&cfg.Platform),
	})
	pipe.SetSink(coord)

	hub := websocket.NewHub()
	coord.SetObserver(hub)
	identity.OnChange(func() {
		if err := coord.OnAuthChanged(); err != nil {
			logging.Warn().Err(err).Msg("Failed to apply sign-in change")
		}
		coord.SetObserver(hub)
	})
	dlog.SetObserver(hub.BroadcastDebugLog)

	tree.AddMessagingService(dispatcher)
	tree.AddMessagingService(coord)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))

	if cfg.Server.Enabled {
		server, err := buildHTTPServer(cfg, coord, provider, dlog, identity, gw, hub)
		if err != nil {
			return fail(err)
		}
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))
	}
	return a, nil
}

func buildHTTPServer(
	cfg *config.Config,
	coord *coordinator.Coordinator,
	provider *platform.Provider,
	dlog *debuglog.Log,
	identity auth.Provider,
	gw *gateway.Gateway,
	hub *websocket.Hub,
) (*http.Server, error) {
	var jwtManager *auth.JWTManager
	if cfg.Auth.JWTSecret != "" {
		m, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, err
		}
		jwtManager = m
	}
	if cfg.Server.RequireAuth && jwtManager == nil {
		return nil, errors.New("server.require_auth needs auth.jwt_secret")
	}

	wsHandler := websocket.NewHandler(hub, cfg.Server.CORSOrigins)
	// Each new observer rebinds the hub; Stop clears the coordinator's observer.
	wsHandler.SetOnConnect(func() { coord.SetObserver(hub) })

	handler := api.NewHandler(api.HandlerDeps{
		Tracker:  coord,
		Fixes:    provider,
		DebugLog: dlog,
		Identity: identity,
		Remote:   gw,
	})
	router := api.NewRouter(
		handler,
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server)),
		auth.NewMiddleware(jwtManager, cfg.Server.RequireAuth),
		wsHandler,
	)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}, nil
}
