package telegram

import (
	"context"
	"fmt"
	"sync"

	"github.com/Alias1177/CardPredictor/models"
)

// Redirects maps a source channel to the chat its predictions are posted in.
// Sources without a redirect use the default destination.
type Redirects struct {
	def   int64
	store models.Store

	mu     sync.RWMutex
	routes map[int64]int64
}

// NewRedirects creates a table with the default destination
func NewRedirects(def int64, store models.Store) *Redirects {
	return &Redirects{def: def, store: store, routes: make(map[int64]int64)}
}

// Load reads persisted redirects
func (r *Redirects) Load(ctx context.Context) error {
	routes, err := r.store.Redirects(ctx)
	if err != nil {
		return fmt.Errorf("load redirects: %w", err)
	}
	if routes == nil {
		routes = make(map[int64]int64)
	}
	r.mu.Lock()
	r.routes = routes
	r.mu.Unlock()
	return nil
}

// Target returns the destination chat of source
func (r *Redirects) Target(source int64) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.routes[source]; ok {
		return t
	}
	return r.def
}

// Set routes source to target and persists it
func (r *Redirects) Set(ctx context.Context, source, target int64) error {
	if err := r.store.SaveRedirect(ctx, source, target); err != nil {
		return fmt.Errorf("save redirect: %w", err)
	}
	r.mu.Lock()
	r.routes[source] = target
	r.mu.Unlock()
	return nil
}

// Clear removes every redirect
func (r *Redirects) Clear(ctx context.Context) error {
	if err := r.store.ClearRedirects(ctx); err != nil {
		return fmt.Errorf("clear redirects: %w", err)
	}
	r.mu.Lock()
	clear(r.routes)
	r.mu.Unlock()
	return nil
}

// All returns a copy of the configured redirects
func (r *Redirects) All() map[int64]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]int64, len(r.routes))
	for k, v := range r.routes {
		out[k] = v
	}
	return out
}
