package cooldown

import (
	"time"

	"github.com/Alias1177/CardPredictor/models"
)

// Gate enforces a minimum interval between two emitted predictions of one channel.
// Each channel owns its gate; it is not safe for concurrent use.
type Gate struct {
	last time.Time
}

// TryAcquire returns true and records now as the last emission when no
// prediction is outstanding and either nothing was emitted yet or at least
// window elapsed since the last emission.
func (g *Gate) TryAcquire(now time.Time, window time.Duration, outstanding bool) bool {
	if outstanding {
		return false
	}
	if models.CooldownRemaining(g.last, now, window) > 0 {
		return false
	}
	g.last = now
	return true
}

// Remaining returns how long until the gate opens again
func (g *Gate) Remaining(now time.Time, window time.Duration) time.Duration {
	return models.CooldownRemaining(g.last, now, window)
}

// Last returns the last emission time, zero if none
func (g *Gate) Last() time.Time { return g.last }

// Restore sets the last emission time, e.g. from persisted state
func (g *Gate) Restore(t time.Time) { g.last = t }

// Reset forgets the last emission
func (g *Gate) Reset() { g.last = time.Time{} }
