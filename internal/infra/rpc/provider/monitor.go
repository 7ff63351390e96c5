package provider

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProviderStatus represents the health state of a provider.
type ProviderStatus int

const (
	StatusHealthy   ProviderStatus = iota // Provider is working normally
	StatusDegraded                        // Provider is slow but working
	StatusThrottled                       // Provider is rate limiting
	StatusBlocked                         // Provider has blocked this client
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusBlocked:
		return "blocked"
	}
	return "unknown"
}

// MonitorStats holds monitoring statistics for a provider.
type MonitorStats struct {
	Status           ProviderStatus
	AverageLatency   time.Duration
	ThrottleCount429 int
	ThrottleCount403 int
	Requests         int
}

// ProviderMonitor tracks rate limiting and latency of one endpoint.
type ProviderMonitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int
	requests         int

	status429Count   int
	status403Count   int
	throttlePatterns []string
	lastThrottleTime time.Time
	retryAfter       time.Duration

	slowResponseThreshold time.Duration
	throttleAfter429      int
}

// NewProviderMonitor creates a new monitor with default settings.
func NewProviderMonitor() *ProviderMonitor {
	return &ProviderMonitor{
		recentLatencies:  make([]time.Duration, 0, 50),
		maxLatencyWindow: 50,
		throttlePatterns: []string{
			"rate limit exceeded",
			"too many requests",
			"daily request count exceeded",
			"project rate limit",
			"monthly quota exceeded",
		},
		slowResponseThreshold: 3 * time.Second,
		throttleAfter429:      3,
	}
}

// RecordRequest records a successful request with its latency.
func (pm *ProviderMonitor) RecordRequest(latency time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.requests++
	pm.recentLatencies = append(pm.recentLatencies, latency)
	if len(pm.recentLatencies) > pm.maxLatencyWindow {
		pm.recentLatencies = pm.recentLatencies[1:]
	}
	// a success after a throttle window means the endpoint recovered
	if pm.retryAfter > 0 && time.Since(pm.lastThrottleTime) >= pm.retryAfter {
		pm.status429Count = 0
		pm.status403Count = 0
		pm.retryAfter = 0
	}
}

// RecordThrottle records a 429 or 403 response. retryAfter is the raw
// Retry-After header in seconds, if any.
func (pm *ProviderMonitor) RecordThrottle(statusCode int, retryAfter string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.lastThrottleTime = time.Now()

	switch statusCode {
	case 429:
		pm.status429Count++
		pm.retryAfter = 30 * time.Second
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
			pm.retryAfter = time.Duration(secs) * time.Second
		}
	case 403:
		pm.status403Count++
		pm.retryAfter = 5 * time.Minute
	}
}

// DetectThrottlePattern checks if a message contains throttle patterns.
func (pm *ProviderMonitor) DetectThrottlePattern(message string) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	lowerMsg := strings.ToLower(message)
	for _, pattern := range pm.throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}
	return false
}

// CheckProviderStatus returns the current status of the provider.
func (pm *ProviderMonitor) CheckProviderStatus() ProviderStatus {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.statusLocked()
}

func (pm *ProviderMonitor) statusLocked() ProviderStatus {
	inWindow := time.Since(pm.lastThrottleTime) < pm.retryAfter
	if pm.status403Count > 0 && inWindow {
		return StatusBlocked
	}
	if pm.status429Count >= pm.throttleAfter429 && inWindow {
		return StatusThrottled
	}
	if len(pm.recentLatencies) > 10 && pm.averageLocked() > pm.slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// GetRetryAfter returns remaining time before retry is allowed.
func (pm *ProviderMonitor) GetRetryAfter() time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if remaining := pm.retryAfter - time.Since(pm.lastThrottleTime); remaining > 0 {
		return remaining
	}
	return 0
}

func (pm *ProviderMonitor) averageLocked() time.Duration {
	if len(pm.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range pm.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(pm.recentLatencies))
}

// GetStats returns current monitoring statistics.
func (pm *ProviderMonitor) GetStats() MonitorStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return MonitorStats{
		Status:           pm.statusLocked(),
		AverageLatency:   pm.averageLocked(),
		ThrottleCount429: pm.status429Count,
		ThrottleCount403: pm.status403Count,
		Requests:         pm.requests,
	}
}
