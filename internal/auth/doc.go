// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

/*
Package auth identifies the tracked user and guards the HTTP control surface.

Identity providers (AUTH_MODE):

  - static: a configured user id, always signed in until SignOut
  - jwt: an HS256 token whose sub claim is the user id; expiry is honored on
    every CurrentUserID call
  - none: nobody is signed in and tracking stays stopped

The same JWTManager validates bearer tokens on /api/v1 when
SERVER_REQUIRE_AUTH is set.

Usage Example:

	provider, err := auth.NewProvider(&cfg.Auth)
	if err != nil {
	    return err
	}
	uid, ok := provider.CurrentUserID()
*/
package auth
