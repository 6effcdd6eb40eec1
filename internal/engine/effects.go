package engine

import (
	"time"

	"github.com/Alias1177/CardPredictor/models"
)

// Effects are the side effects one event produced on a channel. The actor
// never performs them itself; they are handed to the Sink in order.
type Effects struct {
	Channel    int64
	Emit       *models.EmitMessage
	Edits      []models.EditIntent
	Records    []models.Prediction // prediction states to persist
	CooldownAt time.Time           // set when the gate was acquired
	Reset      bool                // channel state was cleared
}

// Empty reports whether there is nothing to deliver
func (e Effects) Empty() bool {
	return e.Emit == nil && len(e.Edits) == 0 && len(e.Records) == 0 && e.CooldownAt.IsZero() && !e.Reset
}

// Sink receives effects. Deliver is called from the channel actors and must not block for long.
type Sink interface {
	Deliver(fx Effects)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(fx Effects)

// Deliver calls f
func (f SinkFunc) Deliver(fx Effects) { f(fx) }

// ChannelSnapshot is a read-only view of one channel
type ChannelSnapshot struct {
	Channel           int64                  `json:"channel"`
	WindowSize        int                    `json:"window_size"`
	WindowCapacity    int                    `json:"window_capacity"`
	Open              *models.Prediction     `json:"open,omitempty"`
	LastEmission      time.Time              `json:"last_emission,omitempty"`
	CooldownRemaining time.Duration          `json:"cooldown_remaining"`
	Stats             models.PredictionStats `json:"stats"`
}
