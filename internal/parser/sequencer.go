package parser

import (
	"sync"

	"github.com/Alias1177/CardPredictor/models"
)

// Verdict is what the Sequencer made of a game id
type Verdict int

const (
	// Duplicate ids are not newer than the last accepted one: edits of already
	// counted results, redeliveries and late messages.
	Duplicate Verdict = iota
	// Accepted ids are newer than the last accepted one
	Accepted
	// Restarted ids fall more than models.RestartGap behind the last accepted
	// one and start a new numbering session.
	Restarted
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Restarted:
		return "restarted"
	default:
		return "duplicate"
	}
}

// Sequencer drops outcomes whose game id is not newer than the last accepted
// one of the same channel, unless the numbering restarted.
type Sequencer struct {
	mu   sync.Mutex
	last map[int64]int
}

// NewSequencer creates an empty Sequencer
func NewSequencer() *Sequencer {
	return &Sequencer{last: make(map[int64]int)}
}

// Observe classifies id for channel and records it unless it is a duplicate
func (s *Sequencer) Observe(channel int64, id int) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, seen := s.last[channel]
	switch {
	case !seen || id > last:
		s.last[channel] = id
		return Accepted
	case models.Restarted(last, id):
		s.last[channel] = id
		return Restarted
	default:
		return Duplicate
	}
}

// Accept reports whether id is new for channel and records it
func (s *Sequencer) Accept(channel int64, id int) bool {
	return s.Observe(channel, id) != Duplicate
}

// Seed records id as already counted for channel unless a newer one is known
func (s *Sequencer) Seed(channel int64, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, seen := s.last[channel]; !seen || id > last {
		s.last[channel] = id
	}
}

// Last returns the last accepted id of channel, 0 if none
func (s *Sequencer) Last(channel int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[channel]
}

// Reset forgets channel
func (s *Sequencer) Reset(channel int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, channel)
}

// ResetAll forgets every channel
func (s *Sequencer) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.last)
}
