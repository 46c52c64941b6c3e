package check

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cgast/envcheck/pkg/requirement"
)

// ProbeFunc determines the current value of one requirement.
type ProbeFunc func(rt Runtime) requirement.Value

// CompareFunc decides whether a probed value satisfies the required one.
type CompareFunc func(probed requirement.Value, required string) bool

// Handler overrides the generic probe and/or comparison for one
// requirement name. Either field may be nil.
type Handler struct {
	Probe   ProbeFunc
	Compare CompareFunc
}

// Registry maps requirement names to override handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// HandlerKey normalizes a requirement name for lookup: separators
// ("_", ".", " ") are dropped and case is ignored, so "session_save_path",
// "session.save_path" and "SessionSavePath" share one handler.
func HandlerKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '_', '.', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// Register adds a handler. Returns an error if the name normalizes to a key
// that is already taken.
func (r *Registry) Register(name string, h Handler) error {
	if h.Probe == nil && h.Compare == nil {
		return fmt.Errorf("handler for %q has neither probe nor compare", name)
	}

	key := HandlerKey(name)
	if key == "" {
		return fmt.Errorf("invalid handler name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("handler already registered: %s", name)
	}
	r.handlers[key] = h
	return nil
}

// MustRegister is Register for static tables; it panics on conflict.
func (r *Registry) MustRegister(name string, h Handler) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for a requirement name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[HandlerKey(name)]
	return h, ok
}

// Names returns all registered keys, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
