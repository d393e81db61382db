// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package remote is the shared realtime key-value store the tracker syncs
// through. Values are JSON documents addressed by dotted paths.
package remote

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Well-known paths.
const (
	PathShowPrivateInfo = "mirror.config.showPrivateInfo"
	PathGeofences       = "mirror.geofences"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("remote store is closed")
	// ErrInvalidPath is returned for paths the store cannot address.
	ErrInvalidPath = errors.New("invalid remote path")
	// ErrInvalidUserID is returned for user ids that cannot be used in a path.
	ErrInvalidUserID = errors.New("invalid user id")
)

// WatchFunc receives the whole current value at a path. A nil value means the
// path is absent or was deleted.
type WatchFunc func(value []byte)

// Subscription is a live watch.
type Subscription interface {
	Stop()
}

// Store is a realtime key-value store with per-path watches. Writes are
// last-write-wins and Set returns once the write is delivered or queued.
type Store interface {
	Watch(ctx context.Context, path string, fn WatchFunc) (Subscription, error)
	Set(ctx context.Context, path string, value any) error
	Connected() bool
	// GoOnline asks the transport to reconnect if it is offline.
	GoOnline()
	Close() error
}

var (
	pathPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// ValidatePath checks that path is a dotted key without wildcards.
func ValidatePath(path string) error {
	if !pathPattern.MatchString(path) {
		return ErrInvalidPath
	}
	return nil
}

// ValidateUserID checks that uid can be embedded in a path.
func ValidateUserID(uid string) error {
	if !userIDPattern.MatchString(uid) {
		return ErrInvalidUserID
	}
	return nil
}

// LocationPath is where a user's latest location event lives.
func LocationPath(uid string) string { return "users." + uid + ".location" }

// ShareLocationPath is where a user's share flag lives.
func ShareLocationPath(uid string) string { return "users." + uid + ".shareLocation" }

// Kind returns the last path segment, used as a metrics label.
func Kind(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}
