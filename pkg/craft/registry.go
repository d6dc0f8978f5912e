package craft

import (
	"fmt"
	"sync"
)

// RawLayerName is the name of the unstructured payload layer. Lower layers
// resolve it to protocol identifier 0.
const RawLayerName = "RawLayer"

// Constructor returns a new layer with protocol defaults applied.
type Constructor func() Layer

type protocolEntry struct {
	id   uint16
	ctor Constructor
}

// Registry maps protocol names to identifiers and default constructors.
// It is populated explicitly at startup; nothing registers itself.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]protocolEntry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]protocolEntry)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by stacks created
// without WithRegistry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a protocol. ctor may be nil for identifier-only entries.
func (r *Registry) Register(name string, id uint16, ctor Constructor) error {
	if name == "" {
		return fmt.Errorf("protocol name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("protocol %s already registered", name)
	}
	r.entries[name] = protocolEntry{id: id, ctor: ctor}
	r.order = append(r.order, name)
	return nil
}

// ProtoID returns the identifier registered for name.
func (r *Registry) ProtoID(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.id, ok
}

// New constructs a default layer for name.
func (r *Registry) New(name string) (Layer, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
	}
	if e.ctor == nil {
		return nil, fmt.Errorf("%w: %s has no constructor", ErrUnknownProtocol, name)
	}
	return e.ctor(), nil
}

// Names returns registered protocol names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
