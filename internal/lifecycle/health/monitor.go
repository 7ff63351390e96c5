package health

import (
	"context"
	"sync"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc/provider"
)

const checkInterval = 10 * time.Second

// ProviderStats reports the health of a chain's node providers.
type ProviderStats interface {
	ProviderStats() map[string]provider.HealthStatus
}

// JobCounter reports running tracker jobs.
type JobCounter interface {
	Active() int
}

// PendingCounter reports persisted pending transactions.
type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// Monitor aggregates health status from providers, the tracker and storage.
type Monitor struct {
	clients    map[domain.Chain]ProviderStats
	jobs       JobCounter
	pending    PendingCounter
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(clients map[domain.Chain]ProviderStats, jobs JobCounter, pending PendingCounter) *Monitor {
	return &Monitor{
		clients: clients,
		jobs:    jobs,
		pending: pending,
	}
}

// CheckHealth builds a report, reusing the previous one for 10s.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < checkInterval {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Chains:       make(map[string]ChainHealth, len(m.clients)),
	}

	for c, client := range m.clients {
		health := chainHealth(string(c), client.ProviderStats())
		report.Chains[health.Chain] = health
		report.SystemStatus = worse(report.SystemStatus, health.Status)
	}

	if m.jobs != nil {
		report.ActiveJobs = m.jobs.Active()
	}
	if m.pending != nil {
		count, err := m.pending.CountPending(ctx)
		if err != nil {
			// storage unreachable: tracking cannot make progress
			report.SystemStatus = StatusCritical
		} else {
			report.Pending = count
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func chainHealth(name string, stats map[string]provider.HealthStatus) ChainHealth {
	health := ChainHealth{
		Chain:     name,
		Status:    StatusHealthy,
		Providers: len(stats),
	}
	var errorRate float64
	for _, s := range stats {
		if s.Available {
			health.AvailableProviders++
		}
		errorRate += s.ErrorRate
	}
	if len(stats) > 0 {
		health.RPCErrorRate = errorRate / float64(len(stats))
	}

	switch {
	case health.AvailableProviders == 0:
		health.Status = StatusCritical
	case health.AvailableProviders < health.Providers || health.RPCErrorRate > 0.5:
		health.Status = StatusDegraded
	}
	return health
}
