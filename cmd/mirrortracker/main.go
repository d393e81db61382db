// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package main is the entry point for Mirror Tracker.
//
// Mirror Tracker tracks the signed-in user's location, geocodes each fix,
// writes it to a shared realtime store (NATS JetStream key-value) and keeps
// the user's geofences registered with the location provider. Tracking runs
// only while the user is signed in, has opted in to sharing, and a geocoder
// is available.
//
// # Commands
//
//   - serve: run the tracker under the supervisor tree (default)
//   - log: print the persisted debug log
//   - token: mint a bearer token for the control surface
//   - version: print build information
//
// # Configuration
//
// Configuration is loaded via koanf v2 with layered sources (highest
// priority wins): environment variables, config file (CONFIG_PATH or
// ./config.yaml), built-in defaults.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func versionString() string {
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("mirrortracker %s (commit: %s, built: %s)", Version, commit, BuildTime)
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "mirrortracker",
		Short:   "Mirror Tracker - location tracking and sync coordinator",
		Version: versionString(),
		Long: `Mirror Tracker feeds location fixes through reverse geocoding into a shared
realtime store and keeps the user's geofences registered while tracking is
allowed.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}
