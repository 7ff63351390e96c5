package provider

import (
	"testing"
	"time"
)

func TestMonitor_ThrottleAfterRepeated429(t *testing.T) {
	m := NewProviderMonitor()

	m.RecordThrottle(429, "")
	if got := m.CheckProviderStatus(); got != StatusHealthy {
		t.Fatalf("expected healthy after one 429, got %v", got)
	}

	m.RecordThrottle(429, "120")
	m.RecordThrottle(429, "120")
	if got := m.CheckProviderStatus(); got != StatusThrottled {
		t.Fatalf("expected throttled, got %v", got)
	}
	if m.GetRetryAfter() <= 100*time.Second {
		t.Errorf("expected Retry-After to be honoured, got %v", m.GetRetryAfter())
	}
}

func TestMonitor_BlockedOn403(t *testing.T) {
	m := NewProviderMonitor()
	m.RecordThrottle(403, "")

	if got := m.CheckProviderStatus(); got != StatusBlocked {
		t.Fatalf("expected blocked, got %v", got)
	}
}

func TestMonitor_DegradedWhenSlow(t *testing.T) {
	m := NewProviderMonitor()
	for i := 0; i < 11; i++ {
		m.RecordRequest(4 * time.Second)
	}

	stats := m.GetStats()
	if stats.Status != StatusDegraded {
		t.Errorf("expected degraded, got %v", stats.Status)
	}
	if stats.Requests != 11 {
		t.Errorf("expected 11 requests, got %d", stats.Requests)
	}
}

func TestMonitor_DetectThrottlePattern(t *testing.T) {
	m := NewProviderMonitor()
	if !m.DetectThrottlePattern("Project rate limit exceeded for key") {
		t.Error("expected pattern match")
	}
	if m.DetectThrottlePattern("nonce too low") {
		t.Error("unexpected pattern match")
	}
}
