package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/md-rashed-zaman/shopsync/libs/events"
)

var (
	ErrDuplicateHandler = errors.New("handler already registered")
	ErrSealed           = errors.New("registry is sealed")
)

// Handler applies one decoded envelope to the projection store.
type Handler func(ctx context.Context, env events.Envelope) error

// Registry maps event types to handlers. It is filled during startup and
// read-only once Seal is called.
type Registry struct {
	mu       sync.RWMutex
	handlers map[events.Type]Handler
	sealed   bool
}

func New() *Registry {
	return &Registry{handlers: map[events.Type]Handler{}}
}

func (r *Registry) Register(eventType events.Type, h Handler) error {
	if _, err := events.ParseType(string(eventType)); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("register %s: nil handler", eventType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register %s: %w", eventType, ErrSealed)
	}
	if _, ok := r.handlers[eventType]; ok {
		return fmt.Errorf("register %s: %w", eventType, ErrDuplicateHandler)
	}
	r.handlers[eventType] = h
	return nil
}

func (r *Registry) Lookup(eventType events.Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[eventType]
	return h, ok
}

// Seal stops further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Types returns the registered event types in sorted order.
func (r *Registry) Types() []events.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]events.Type, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Topics returns the distinct topics covered by registered handlers.
func (r *Registry) Topics() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range r.Types() {
		if topic := t.Topic(); !seen[topic] {
			seen[topic] = true
			out = append(out, topic)
		}
	}
	return out
}

// Validate fails when any of the required types has no handler.
func (r *Registry) Validate(required []events.Type) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, t := range required {
		if _, ok := r.handlers[t]; !ok {
			errs = append(errs, fmt.Errorf("no handler for %s", t))
		}
	}
	return errors.Join(errs...)
}
