package config

import (
	"fmt"
	"sync/atomic"
)

// Live holds the current Settings. Readers take a snapshot per evaluation,
// writers swap in a validated copy.
type Live struct {
	p atomic.Pointer[Settings]
}

// NewLive creates a holder with the initial settings
func NewLive(s Settings) *Live {
	l := &Live{}
	c := s.Clone()
	l.p.Store(&c)
	return l
}

// Get returns the current settings snapshot
func (l *Live) Get() Settings {
	return l.p.Load().Clone()
}

// Update applies fn to a copy of the current settings and stores it if valid
func (l *Live) Update(fn func(*Settings)) (Settings, error) {
	for {
		old := l.p.Load()
		next := old.Clone()
		fn(&next)
		if err := next.Validate(); err != nil {
			return *old, fmt.Errorf("rejected settings update: %w", err)
		}
		if l.p.CompareAndSwap(old, &next) {
			return next.Clone(), nil
		}
	}
}
