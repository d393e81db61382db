// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFix(t *testing.T) {
	before := testutil.ToFloat64(PipelineFixesTotal.WithLabelValues(OutcomeNoResults))
	RecordFix(OutcomeNoResults)
	after := testutil.ToFloat64(PipelineFixesTotal.WithLabelValues(OutcomeNoResults))
	if after-before != 1 {
		t.Errorf("expected no_results counter to increase by 1, got %v", after-before)
	}
}

func TestRecordRemoteWrite(t *testing.T) {
	before := testutil.ToFloat64(RemoteWritesTotal.WithLabelValues("location", "queued"))
	RecordRemoteWrite("location", "queued")
	RecordRemoteWrite("location", "queued")
	after := testutil.ToFloat64(RemoteWritesTotal.WithLabelValues("location", "queued"))
	if after-before != 2 {
		t.Errorf("expected queued counter to increase by 2, got %v", after-before)
	}
}

func TestRecordDebugLogAppend(t *testing.T) {
	okBefore := testutil.ToFloat64(DebugLogAppendsTotal.WithLabelValues("persisted"))
	failBefore := testutil.ToFloat64(DebugLogAppendsTotal.WithLabelValues("failed"))

	RecordDebugLogAppend(true)
	RecordDebugLogAppend(false)

	if got := testutil.ToFloat64(DebugLogAppendsTotal.WithLabelValues("persisted")) - okBefore; got != 1 {
		t.Errorf("persisted delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DebugLogAppendsTotal.WithLabelValues("failed")) - failBefore; got != 1 {
		t.Errorf("failed delta = %v, want 1", got)
	}
}

func TestSetConnected(t *testing.T) {
	SetConnected(true)
	if got := testutil.ToFloat64(RemoteConnected); got != 1 {
		t.Errorf("RemoteConnected = %v, want 1", got)
	}
	SetConnected(false)
	if got := testutil.ToFloat64(RemoteConnected); got != 0 {
		t.Errorf("RemoteConnected = %v, want 0", got)
	}
}

func TestRecordTimings(t *testing.T) {
	// Histograms only need to accept observations without panicking.
	RecordGeocode(25 * time.Millisecond)
	RecordAPIRequest("GET", "/api/v1/status", "200", 3*time.Millisecond)
	if testutil.CollectAndCount(APIRequestDuration) == 0 {
		t.Error("expected api duration series to be collected")
	}
}
