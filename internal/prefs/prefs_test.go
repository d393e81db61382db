// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShareDefaultsToTrue(t *testing.T) {
	t.Parallel()
	s, err := Open(filepath.Join(t.TempDir(), "prefs.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !s.Share() {
		t.Error("Share() = false for a fresh store, want true")
	}
	if s.Bool("unknown") {
		t.Error("Bool(unknown) = true, want false")
	}
}

func TestSetSharePersists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")

	s, _ := Open(path)
	changed, err := s.SetShare(false)
	if err != nil {
		t.Fatalf("SetShare() error = %v", err)
	}
	if !changed {
		t.Error("SetShare(false) reported no change from the default")
	}
	if changed, _ := s.SetShare(false); changed {
		t.Error("repeated SetShare(false) reported a change")
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if reopened.Share() {
		t.Error("Share() after reopen = true, want false")
	}
}

func TestOpenToleratesBadFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"corrupt", "{not json"},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.name+".json")
		if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
			t.Fatal(err)
		}
		s, err := Open(path)
		if err != nil {
			t.Errorf("%s: Open() error = %v", tt.name, err)
			continue
		}
		if !s.Share() {
			t.Errorf("%s: Share() = false, want default true", tt.name)
		}
	}
}

func TestInMemoryStore(t *testing.T) {
	t.Parallel()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\") error = %v", err)
	}
	if _, err := s.SetShare(false); err != nil {
		t.Fatalf("SetShare() error = %v", err)
	}
	if s.Share() {
		t.Error("Share() = true after SetShare(false)")
	}
}
