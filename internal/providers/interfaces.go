package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Provider is the capability every backend must implement. The router does
// not know or care whether the backend is a local process, a free HTTP API,
// or a paid one; it depends only on this interface.
type Provider interface {
	Name() string

	// Complete generates a completion for the prompt using the named model.
	// Cancellation and the per-attempt timeout arrive through ctx.
	Complete(ctx context.Context, model, prompt string, maxTokens int, temperature float32) (string, error)

	// HealthProbe checks reachability without doing meaningful work.
	HealthProbe(ctx context.Context) error
}

// Registry maps provider names to implementations. Adding a backend means
// implementing Provider and registering it; the routing core never branches
// on provider names.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]Provider
	logger    *logrus.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider under its own name.
func (r *Registry) Register(provider Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}

	r.order = append(r.order, name)
	r.providers[name] = provider
	r.logger.WithField("provider", name).Info("Provider registered")
	return nil
}

// Get returns the provider for a name, or false if none is registered.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[name]
	return provider, ok
}

// Names returns registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns the registered providers in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.providers[name])
	}
	return all
}
