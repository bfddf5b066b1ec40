package bank

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// Registry keeps every loaded bank version and the active one. Activating a
// version swaps a single pointer, so readers always hold one consistent
// snapshot for the whole computation.
type Registry struct {
	mu       sync.RWMutex
	versions map[string]*Bank
	current  atomic.Pointer[Bank]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{versions: make(map[string]*Bank)}
}

// Put registers a bank. Re-registering a version with different content is
// rejected so historical results stay reproducible.
func (r *Registry) Put(b *Bank) error {
	if b == nil {
		return eris.New("bank: nil bank")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.versions[b.Version()]; ok {
		if existing.Hash() != b.Hash() {
			return eris.Errorf("bank: version %s already registered with different content", b.Version())
		}
		return nil
	}
	r.versions[b.Version()] = b
	return nil
}

// Activate makes a registered version current.
func (r *Registry) Activate(version string) error {
	r.mu.RLock()
	b, ok := r.versions[version]
	r.mu.RUnlock()
	if !ok {
		return eris.Errorf("bank: version %s not registered", version)
	}
	r.current.Store(b)
	return nil
}

// PutActive registers a bank and makes it current.
func (r *Registry) PutActive(b *Bank) error {
	if err := r.Put(b); err != nil {
		return err
	}
	return r.Activate(b.Version())
}

// Current returns the active bank, or nil if none was activated.
func (r *Registry) Current() *Bank {
	return r.current.Load()
}

// Get returns a specific version.
func (r *Registry) Get(version string) (*Bank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.versions[version]
	return b, ok
}

// Versions lists registered versions in lexical order.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.versions))
	for v := range r.versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
