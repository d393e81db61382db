// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package netcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPingSendsHeadWithMirrorAgent(t *testing.T) {
	t.Parallel()

	got := make(chan *http.Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if !New(server.URL, time.Second).Ping(context.Background()) {
		t.Fatal("Ping() = false against a live server")
	}
	r := <-got
	if r.Method != http.MethodHead {
		t.Errorf("method = %s, want HEAD", r.Method)
	}
	if ua := r.Header.Get("User-Agent"); ua != "Mirror" {
		t.Errorf("User-Agent = %q, want Mirror", ua)
	}
	if !r.Close {
		t.Error("request did not ask to close the connection")
	}
}

func TestPingFailures(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	tests := []struct {
		name string
		p    *Pinger
	}{
		{"nil pinger", nil},
		{"empty url", New("", 0)},
		{"bad url", New("://nope", 0)},
		{"timeout", New(slow.URL, 50*time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.p.Ping(context.Background()) {
				t.Error("Ping() = true, want false")
			}
		})
	}
}

func TestPingRedirectCountsAsAnswer(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://127.0.0.1:1/", http.StatusFound)
	}))
	defer server.Close()

	if !New(server.URL, time.Second).Ping(context.Background()) {
		t.Error("Ping() = false for a redirect response")
	}
}
