// Package health provides engine health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the engine or a chain.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains health metrics for one chain's node providers.
type ChainHealth struct {
	Chain              string       `json:"chain"`
	Status             SystemStatus `json:"status"`
	Providers          int          `json:"providers"`
	AvailableProviders int          `json:"available_providers"`
	RPCErrorRate       float64      `json:"rpc_error_rate"`
}

// HealthReport contains the full engine health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	Chains       map[string]ChainHealth `json:"chains"`
	ActiveJobs   int                    `json:"active_jobs"`
	Pending      int                    `json:"pending"`
}

func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
