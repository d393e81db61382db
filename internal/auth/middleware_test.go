// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddlewareAuthenticate(t *testing.T) {
	t.Parallel()
	m, _ := NewJWTManager(testSecret, time.Hour)
	token, _ := m.GenerateToken("alice")

	var gotSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			gotSubject = claims.Subject
		}
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		required   bool
		header     string
		wantStatus int
	}{
		{"not required", false, "", http.StatusNoContent},
		{"missing header", true, "", http.StatusUnauthorized},
		{"wrong scheme", true, "Basic abc", http.StatusUnauthorized},
		{"bad token", true, "Bearer nope", http.StatusUnauthorized},
		{"valid token", true, "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMiddleware(m, tt.required).Authenticate(next)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
	if gotSubject != "alice" {
		t.Errorf("claims subject = %q, want alice", gotSubject)
	}
}
