// Package routing handles provider ordering, failover and retry.
//
// This package contains:
//   - Router: interface for provider selection and health tracking
//   - DefaultRouter: implementation with a per-provider circuit breaker
//   - Retry: retry logic with exponential backoff and failover
package routing

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc/provider"
)

// Router handles provider selection and health tracking.
type Router interface {
	// AddProvider registers a provider for a specific chain
	AddProvider(chainID string, p provider.Provider)

	// GetProvider returns the best available provider for a chain
	GetProvider(chainID string) (provider.Provider, error)

	// GetAllProviders returns the chain's providers, best first
	GetAllProviders(chainID string) []provider.Provider

	// RecordSuccess tracks successful calls
	RecordSuccess(providerName string, latency time.Duration)

	// RecordFailure tracks failed calls
	RecordFailure(providerName string, err error)
}

type providerMetrics struct {
	successCount     int
	failureCount     int
	totalLatency     time.Duration
	lastSuccessAt    time.Time
	lastFailureAt    time.Time
	consecutiveFails int
	circuitOpenUntil time.Time
}

func (m *providerMetrics) circuitOpen(now time.Time) bool {
	return now.Before(m.circuitOpenUntil)
}

// DefaultRouter keeps registration order but moves providers with an open
// circuit or a throttling monitor to the back.
type DefaultRouter struct {
	mu             sync.RWMutex
	chainProviders map[string][]provider.Provider
	providerHealth map[string]*providerMetrics

	failureThreshold int
	openDuration     time.Duration
}

// NewRouter creates a router with default circuit settings.
func NewRouter() *DefaultRouter {
	return &DefaultRouter{
		chainProviders:   make(map[string][]provider.Provider),
		providerHealth:   make(map[string]*providerMetrics),
		failureThreshold: 3,
		openDuration:     30 * time.Second,
	}
}

// AddProvider registers a provider for a chain.
func (r *DefaultRouter) AddProvider(chainID string, p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chainProviders[chainID] = append(r.chainProviders[chainID], p)
	r.providerHealth[p.GetName()] = &providerMetrics{lastSuccessAt: time.Now()}
}

// GetProvider returns the best available provider for a chain.
func (r *DefaultRouter) GetProvider(chainID string) (provider.Provider, error) {
	providers := r.GetAllProviders(chainID)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers for chain %s", chainID)
	}
	return providers[0], nil
}

// GetAllProviders returns all providers for a chain, healthy ones first.
func (r *DefaultRouter) GetAllProviders(chainID string) []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := r.chainProviders[chainID]
	result := make([]provider.Provider, len(providers))
	copy(result, providers)

	now := time.Now()
	penalty := func(p provider.Provider) int {
		score := 0
		if m, ok := r.providerHealth[p.GetName()]; ok && m.circuitOpen(now) {
			score += 2
		}
		if !p.IsAvailable() {
			score++
		}
		return score
	}
	sort.SliceStable(result, func(i, j int) bool {
		return penalty(result[i]) < penalty(result[j])
	})
	return result
}

// RecordSuccess records a successful call and closes the circuit.
func (r *DefaultRouter) RecordSuccess(providerName string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics, ok := r.providerHealth[providerName]
	if !ok {
		return
	}

	metrics.successCount++
	metrics.totalLatency += latency
	metrics.lastSuccessAt = time.Now()
	metrics.consecutiveFails = 0
	metrics.circuitOpenUntil = time.Time{}
}

// RecordFailure records a failed call, opening the circuit after
// consecutive failures.
func (r *DefaultRouter) RecordFailure(providerName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics, ok := r.providerHealth[providerName]
	if !ok {
		return
	}

	metrics.failureCount++
	metrics.lastFailureAt = time.Now()
	metrics.consecutiveFails++

	if metrics.consecutiveFails >= r.failureThreshold {
		metrics.circuitOpenUntil = metrics.lastFailureAt.Add(r.openDuration)
	}
}

// CircuitOpen reports whether the provider is currently benched.
func (r *DefaultRouter) CircuitOpen(providerName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.providerHealth[providerName]
	return ok && m.circuitOpen(time.Now())
}
