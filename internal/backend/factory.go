package backend

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/pkg/craft"
)

// Constructor builds a sender from configuration. w is the console the
// sender may write human-readable output to.
type Constructor func(cfg config.BackendConfig, w io.Writer) (Sender, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register makes a backend available to New under name.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// Names returns the registered backend names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the backend selected by cfg.Type.
func New(cfg config.BackendConfig, w io.Writer) (Sender, error) {
	mu.RLock()
	ctor, ok := registry[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", craft.ErrBackend, cfg.Type)
	}
	return ctor(cfg, w)
}
