package source

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
)

var (
	ErrDuplicateSource    = errors.New("source already registered")
	ErrUnknownSource      = errors.New("unknown source")
	ErrCapabilityMismatch = errors.New("adapter does not implement declared capability")
)

// Registered pairs an adapter with its configuration.
type Registered struct {
	Config  Config
	Caps    Capabilities
	Adapter Adapter
}

// Registry holds every configured source. Registration validates that
// declared capabilities are actually implemented, so capability checks
// later can trust the declaration.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*Registered
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*Registered)}
}

func (r *Registry) Register(cfg Config, caps Capabilities, adapter Adapter) error {
	if cfg.Name == "" {
		return errors.New("source name is empty")
	}
	if adapter == nil {
		return errors.New("nil adapter")
	}
	if !caps.Has(CapMetadata) {
		return fmt.Errorf("%w: %s must provide metadata", ErrCapabilityMismatch, cfg.Name)
	}
	if caps.Has(CapPlaybackControl) {
		if _, ok := adapter.(Controller); !ok {
			return fmt.Errorf("%w: %s declares control", ErrCapabilityMismatch, cfg.Name)
		}
	}
	if caps.Has(CapSeek) {
		if _, ok := adapter.(Seeker); !ok {
			return fmt.Errorf("%w: %s declares seek", ErrCapabilityMismatch, cfg.Name)
		}
	}
	if caps.Has(CapQueue) {
		if _, ok := adapter.(QueueReader); !ok {
			return fmt.Errorf("%w: %s declares queue", ErrCapabilityMismatch, cfg.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[cfg.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, cfg.Name)
	}

	r.sources[cfg.Name] = &Registered{Config: cfg, Caps: caps, Adapter: adapter}
	return nil
}

func (r *Registry) Get(name string) (*Registered, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.sources[name]
	return reg, ok
}

// All returns every registered source ordered by priority, then name.
func (r *Registry) All() []*Registered {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Registered, 0, len(r.sources))
	for _, reg := range r.sources {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Config.Priority != out[j].Config.Priority {
			return out[i].Config.Priority < out[j].Config.Priority
		}
		return out[i].Config.Name < out[j].Config.Name
	})
	return out
}

// Pollable returns the sources the poller should query on this host:
// enabled and platform-applicable.
func (r *Registry) Pollable() []*Registered {
	var out []*Registered
	for _, reg := range r.All() {
		if !reg.Config.Enabled {
			continue
		}
		if !platformSupported(reg.Config.Platforms) {
			continue
		}
		out = append(out, reg)
	}
	return out
}

func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.sources[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	reg.Config.Enabled = enabled
	return nil
}

func platformSupported(platforms []string) bool {
	if len(platforms) == 0 {
		return true
	}
	for _, p := range platforms {
		if p == runtime.GOOS {
			return true
		}
	}
	return false
}
