package chain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

// Registry resolves capabilities by chain. It is filled once at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Chain]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.Chain]Adapter)}
}

// Register adds an adapter, replacing any previous one for the chain.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Chain()] = a
}

// Adapter returns the adapter for the chain.
func (r *Registry) Adapter(chain domain.Chain) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[chain]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for chain %q", chain)
	}
	return a, nil
}

func (r *Registry) Preloader(chain domain.Chain) (Preloader, error) {
	return r.Adapter(chain)
}

func (r *Registry) Signer(chain domain.Chain) (Signer, error) {
	return r.Adapter(chain)
}

func (r *Registry) Broadcaster(chain domain.Chain) (Broadcaster, error) {
	return r.Adapter(chain)
}

func (r *Registry) StatusChecker(chain domain.Chain) (StatusChecker, error) {
	return r.Adapter(chain)
}

// MessageSigner returns the adapter for the chain if it can sign messages.
func (r *Registry) MessageSigner(chain domain.Chain) (MessageSigner, error) {
	a, err := r.Adapter(chain)
	if err != nil {
		return nil, err
	}
	ms, ok := a.(MessageSigner)
	if !ok {
		return nil, fmt.Errorf("chain %q does not support message signing", chain)
	}
	return ms, nil
}

// Chains lists registered chains in stable order.
func (r *Registry) Chains() []domain.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Chain, 0, len(r.adapters))
	for c := range r.adapters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
