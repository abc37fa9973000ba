package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mithrel/agentipc/internal/config"
)

// Registry maps transport kinds to providers in registration order.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry registers ps in order.
func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewDefaultRegistry returns a registry holding DefaultProviders.
func NewDefaultRegistry() *Registry {
	return &Registry{providers: DefaultProviders()}
}

// DefaultProviders returns the compiled-in providers.
func DefaultProviders() []Provider {
	return []Provider{NewUnixSocketProvider(), NewNamedPipeProvider()}
}

// Register adds p. A second provider for the same kind is rejected rather
// than shadowed.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("nil transport provider")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, have := range r.providers {
		if have.Kind() == p.Kind() {
			return fmt.Errorf("%w %q", ErrDuplicateTransport, p.Kind())
		}
	}
	r.providers = append(r.providers, p)
	return nil
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.providers...)
}

// Lookup returns the provider whose kind equals kind. The error matches
// config.ErrInvalid and ErrNoTransport when nothing matches.
func (r *Registry) Lookup(kind config.TransportKind) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.Kind() == kind {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %w %q", config.ErrInvalid, ErrNoTransport, kind)
}
