package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

// ErrUnknownListener is returned for a kind with no configured poller.
var ErrUnknownListener = errors.New("unknown listener")

// Registry owns the configured pollers, one per listener kind.
type Registry struct {
	mu      sync.RWMutex
	pollers map[domain.ListenerKind]*Poller
	order   []domain.ListenerKind
}

// NewRegistry creates a registry over pollers.
func NewRegistry(pollers ...*Poller) *Registry {
	r := &Registry{pollers: make(map[domain.ListenerKind]*Poller, len(pollers))}
	for _, p := range pollers {
		if _, ok := r.pollers[p.Kind()]; !ok {
			r.order = append(r.order, p.Kind())
		}
		r.pollers[p.Kind()] = p
	}
	return r
}

// Get returns the poller of a kind.
func (r *Registry) Get(kind domain.ListenerKind) (*Poller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pollers[kind]
	return p, ok
}

// Start starts every poller.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, kind := range r.order {
		if err := r.pollers[kind].Start(ctx); err != nil {
			return fmt.Errorf("start %s listener: %w", kind, err)
		}
	}
	return nil
}

// Stop stops every poller, returning the first error.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for _, kind := range r.order {
		if err := r.pollers[kind].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s listener: %w", kind, err)
		}
	}
	return firstErr
}

// Health returns the status of every poller in configuration order.
func (r *Registry) Health() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Health, 0, len(r.order))
	for _, kind := range r.order {
		out = append(out, r.pollers[kind].Health())
	}
	return out
}

// Restart restarts one poller, keeping its checkpoint.
func (r *Registry) Restart(ctx context.Context, kind domain.ListenerKind) (Health, error) {
	p, ok := r.Get(kind)
	if !ok {
		return Health{}, fmt.Errorf("%w: %s", ErrUnknownListener, kind)
	}
	if err := p.Restart(ctx); err != nil {
		return Health{}, err
	}
	return p.Health(), nil
}
