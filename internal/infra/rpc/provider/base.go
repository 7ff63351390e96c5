package provider

import (
	"sync"
	"time"
)

// BaseProvider implements health tracking shared by every transport.
type BaseProvider struct {
	Name string

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int

	Monitor *ProviderMonitor
}

// NewBaseProvider creates a new BaseProvider.
func NewBaseProvider(name string) *BaseProvider {
	return &BaseProvider{
		Name: name,
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
		Monitor: NewProviderMonitor(),
	}
}

// GetName returns the provider's name.
func (p *BaseProvider) GetName() string {
	return p.Name
}

// GetHealth returns the provider's health status.
func (p *BaseProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.health
	stats := p.Monitor.GetStats()
	h.MonitorStats = &stats
	return h
}

// IsAvailable is false while the endpoint is throttling or blocking us.
func (p *BaseProvider) IsAvailable() bool {
	status := p.Monitor.CheckProviderStatus()
	return status == StatusHealthy || status == StatusDegraded
}

func (p *BaseProvider) recordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true
	p.health.ErrorRate = p.errorRate()
	p.health.Latency = p.totalLatency / time.Duration(p.successCount)

	p.Monitor.RecordRequest(latency)
}

func (p *BaseProvider) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.health.LastFailureAt = time.Now()
	p.health.ErrorRate = p.errorRate()

	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}

func (p *BaseProvider) errorRate() float64 {
	total := p.successCount + p.failureCount
	if total == 0 {
		return 0
	}
	return float64(p.failureCount) / float64(total)
}
