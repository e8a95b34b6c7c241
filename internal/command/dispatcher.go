// Package command routes each use case to exactly one registered handler and
// runs message-driven commands on a bounded worker pool.
package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one use case.
type Handler func(ctx context.Context, payload any) (any, error)

// Dispatcher maps command names to handlers. Every name has exactly one
// handler; a second registration for the same name is an error, never a
// silent override.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("command name is required")
	}
	if h == nil {
		return fmt.Errorf("command %s: handler is nil", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[name]; exists {
		return fmt.Errorf("command %s: handler already registered", name)
	}
	d.handlers[name] = h
	return nil
}

// MustRegister panics on registration failure; wiring errors are programmer
// errors caught at startup.
func (d *Dispatcher) MustRegister(name string, h Handler) {
	if err := d.Register(name, h); err != nil {
		panic(err)
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload any) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("command %s: no handler registered", name)
	}
	return h(ctx, payload)
}

// Names returns the registered command names, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
