package core

import (
	"errors"
	"testing"
	"time"
)

func TestConnectionTransitionTo_ValidAndInvalid(t *testing.T) {
	now := time.Now().UTC()
	conn := Connection{Status: ConnectionStatusValid}

	if err := conn.TransitionTo(ConnectionStatusExpired, "access token expired", now); err != nil {
		t.Fatalf("expected valid transition, got error: %v", err)
	}
	if conn.Status != ConnectionStatusExpired {
		t.Fatalf("expected expired, got %q", conn.Status)
	}
	if conn.LastError == "" {
		t.Fatalf("expected last_error to be set")
	}

	if err := conn.TransitionTo(ConnectionStatusValid, "", now); err != nil {
		t.Fatalf("expected expired -> valid to be allowed: %v", err)
	}
	if conn.LastError != "" {
		t.Fatalf("expected last_error cleared on recovery, got %q", conn.LastError)
	}

	conn.Status = ConnectionStatusError
	err := conn.TransitionTo(ConnectionStatusExpired, "", now)
	if !errors.Is(err, ErrInvalidConnectionStatusTransition) {
		t.Fatalf("expected invalid transition error, got: %v", err)
	}
}

func TestConnectionTransitionTo_SameStatusIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	conn := Connection{Status: ConnectionStatusValid}

	if err := conn.TransitionTo(ConnectionStatusValid, "", now); err != nil {
		t.Fatalf("expected same-status transition to succeed: %v", err)
	}
	if !conn.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at bump on idempotent transition")
	}
}

func TestConnectionIsExpired(t *testing.T) {
	now := time.Now().UTC()

	conn := Connection{}
	if conn.IsExpired(now) {
		t.Fatalf("connection without expiry must never expire")
	}

	conn.ExpiresAt = now.Add(time.Minute)
	if conn.IsExpired(now) {
		t.Fatalf("future expiry reported as expired")
	}

	conn.ExpiresAt = now.Add(-time.Second)
	if !conn.IsExpired(now) {
		t.Fatalf("past expiry not reported as expired")
	}

	conn.ExpiresAt = now
	if !conn.IsExpired(now) {
		t.Fatalf("expiry boundary counts as expired")
	}
}

func TestSyncEventTransitionTo_ClosedEventsStayClosed(t *testing.T) {
	now := time.Now().UTC()
	event := SyncEvent{Status: SyncEventStatusInitialized}

	if err := event.TransitionTo(SyncEventStatusSuccess, "", now); err != nil {
		t.Fatalf("expected initialized -> success: %v", err)
	}

	err := event.TransitionTo(SyncEventStatusFail, "late failure", now)
	if !errors.Is(err, ErrInvalidSyncEventStatusTransition) {
		t.Fatalf("expected closed event to reject reopening, got: %v", err)
	}
}

func TestSyncEventTransitionTo_FailCapturesReason(t *testing.T) {
	now := time.Now().UTC()
	event := SyncEvent{Status: SyncEventStatusInitialized}

	if err := event.TransitionTo(SyncEventStatusFail, "provider 500", now); err != nil {
		t.Fatalf("expected initialized -> fail: %v", err)
	}
	if event.Error != "provider 500" {
		t.Fatalf("expected failure reason recorded, got %q", event.Error)
	}
}
