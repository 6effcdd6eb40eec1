package engine

import (
	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/cooldown"
	"github.com/Alias1177/CardPredictor/internal/patterns"
	"github.com/Alias1177/CardPredictor/internal/prediction"
	"github.com/Alias1177/CardPredictor/models"
)

// Step is what one outcome did to a channel
type Step struct {
	Transition *prediction.Transition // verification of the open prediction, if any
	Signal     patterns.Signal
	Denied     bool               // the signal fired but the gate refused it
	Created    *models.Prediction // prediction opened by the signal
}

// Channel is the prediction state of one source channel: its history, its
// cooldown gate and its predictions. The bot runs one per actor and the replay
// drives one directly, so both apply outcomes the same way.
// Not safe for concurrent use.
type Channel struct {
	id       int64
	detector *patterns.Detector
	gate     cooldown.Gate
	tracker  *prediction.Tracker
}

// NewChannel creates the empty state of channel id
func NewChannel(id int64, windowSize, auditSize int) *Channel {
	return &Channel{
		id:       id,
		detector: patterns.NewDetector(windowSize),
		tracker:  prediction.NewTracker(id, auditSize),
	}
}

// Apply verifies the open prediction first, so the outcome that resolves a
// prediction can also trigger the next one. The outcome timestamp is the clock.
func (ch *Channel) Apply(o models.Outcome, s config.Settings) Step {
	var st Step
	st.Transition = ch.tracker.Consume(o)

	st.Signal = ch.detector.Observe(o, s)
	if !st.Signal.Fire {
		return st
	}

	if !ch.gate.TryAcquire(o.Timestamp, s.Cooldown(), ch.tracker.Outstanding()) {
		st.Denied = true
		return st
	}
	p := ch.tracker.Create(o, st.Signal.Matched, st.Signal.Predicted, o.Timestamp)
	st.Created = &p
	return st
}

// Tracker exposes the predictions of the channel
func (ch *Channel) Tracker() *prediction.Tracker { return ch.tracker }
