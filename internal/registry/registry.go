package registry

import (
	"errors"
	"sort"
	"sync"
)

// ErrNilProvider is returned when registering a nil provider.
var ErrNilProvider = errors.New("nil provider")

// Registry holds registered providers. It is safe for concurrent use:
// resolution takes a read lock while registration and removal take the
// write lock. Mutation frequency is expected to be low.
type Registry struct {
	mu      sync.RWMutex
	entries []*Provider
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Registration represents a completed provider registration. Cancel removes
// the provider; it is safe to call more than once.
type Registration struct {
	registry *Registry
	provider *Provider
	once     sync.Once
}

// Cancel removes the registered provider from the registry.
func (r *Registration) Cancel() {
	r.once.Do(func() {
		r.registry.Unregister(r.provider)
	})
}

// Register appends p to the registry and returns its Registration.
func (r *Registry) Register(p *Provider) (*Registration, error) {
	if p == nil {
		return nil, ErrNilProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, p)

	return &Registration{registry: r, provider: p}, nil
}

// Unregister removes p by identity. It reports whether the provider was
// present; removing an already-removed provider is a no-op.
func (r *Registry) Unregister(p *Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, entry := range r.entries {
		if entry == p {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Resolve returns the providers applicable to contentType: selector matches
// and priority is positive, ordered by descending priority. Providers with
// equal priority keep their registration order. The slice is a copy; callers
// may filter it freely.
func (r *Registry) Resolve(contentType string) []*Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Provider
	for _, p := range r.entries {
		if p.Priority > 0 && p.Supports(contentType) {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
