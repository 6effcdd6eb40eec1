package models

import (
	"time"
)

// Symbol is a single classified token of a game result: a suit, a card value or a special card
type Symbol string

// Suits. Heart variants (❤️ and ♥️) are normalised to Heart by the parser.
const (
	Spade   Symbol = "♠️"
	Heart   Symbol = "♥️"
	Diamond Symbol = "♦️"
	Club    Symbol = "♣️"
	Joker   Symbol = "🃏"
)

// SymbolKind classifies a Symbol
type SymbolKind string

const (
	KindColor     SymbolKind = "color"
	KindCardValue SymbolKind = "card-value"
	KindSpecial   SymbolKind = "special"
	KindUnknown   SymbolKind = "unknown"
)

// Suits lists the four suits in the order they are reported
var Suits = []Symbol{Spade, Heart, Diamond, Club}

// CardValues lists the card ranks recognised as card-value symbols
var CardValues = []Symbol{"A", "K", "Q", "J", "10", "9", "8", "7", "6", "5", "4", "3", "2"}

// Kind returns the classification of the symbol
func (s Symbol) Kind() SymbolKind {
	switch s {
	case Spade, Heart, Diamond, Club:
		return KindColor
	case Joker:
		return KindSpecial
	}
	for _, v := range CardValues {
		if s == v {
			return KindCardValue
		}
	}
	return KindUnknown
}

// mirrors pairs every suit with its mirror: ♥↔♣, ♠↔♦
var mirrors = map[Symbol]Symbol{
	Heart:   Club,
	Spade:   Diamond,
	Diamond: Spade,
	Club:    Heart,
}

// Mirror returns the mirrored suit. Non-suit symbols mirror to themselves.
func (s Symbol) Mirror() Symbol {
	if m, ok := mirrors[s]; ok {
		return m
	}
	return s
}

// Outcome is one parsed game result. It is never mutated after parsing.
type Outcome struct {
	ID        int            `json:"id"`        // game number (#N744 -> 744)
	Symbol    Symbol         `json:"symbol"`    // classification of the first hand
	Suits     []Symbol       `json:"suits"`     // distinct suits of the first hand, in order of appearance
	Counts    map[Symbol]int `json:"counts"`    // suit occurrences over the whole message
	Channel   int64          `json:"channel"`   // source channel
	Timestamp time.Time      `json:"timestamp"` // when the message was accepted
}

// RestartGap is how far a game id may fall behind the last one seen before
// it is read as a new numbering session instead of a late message.
const RestartGap = 20

// Restarted reports whether id starts a new numbering session after last
func Restarted(last, id int) bool {
	return id < last-RestartGap
}

// Has reports whether the symbol appears in the first hand of the outcome
func (o Outcome) Has(s Symbol) bool {
	if o.Symbol == s {
		return true
	}
	for _, suit := range o.Suits {
		if suit == s {
			return true
		}
	}
	return false
}

// Prediction status constants
const (
	StatusPending   Status = "pending"
	StatusVerified0 Status = "verified0"
	StatusVerified1 Status = "verified1"
	StatusFailed    Status = "failed"
)

// Status of a prediction. Once terminal it never changes.
type Status string

// Terminal reports whether no further transitions are accepted
func (s Status) Terminal() bool {
	return s == StatusVerified0 || s == StatusVerified1 || s == StatusFailed
}

// MessageRef identifies an emitted message so it can be edited later
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// IsZero reports whether the reference is still unknown
func (r MessageRef) IsZero() bool {
	return r.MessageID == 0
}

// Prediction is the lifecycle record of one emitted prediction
type Prediction struct {
	ID               int        `json:"id"`         // target game: trigger id + 1
	TriggerID        int        `json:"trigger_id"` // game that fired the rule
	Channel          int64      `json:"channel"`    // source channel
	Symbol           Symbol     `json:"symbol"`     // predicted symbol
	Matched          Symbol     `json:"matched"`    // symbol that repeated
	Status           Status     `json:"status"`
	AttemptsObserved int        `json:"attempts_observed"` // 0, 1 or 2
	LastObservedID   int        `json:"last_observed_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       time.Time  `json:"resolved_at,omitempty"`
	MessageRef       MessageRef `json:"message_ref"`
}

// EmitMessage asks the messenger to post a new prediction
type EmitMessage struct {
	Channel      int64  `json:"channel"` // destination chat
	Source       int64  `json:"source"`
	PredictionID int    `json:"prediction_id"`
	Text         string `json:"text"`
}

// EditIntent describes a status update of an already emitted prediction message
type EditIntent struct {
	Key          string     `json:"key"` // stable across re-applications of the same transition
	MessageRef   MessageRef `json:"message_ref"`
	Source       int64      `json:"source"`
	PredictionID int        `json:"prediction_id"`
	Status       Status     `json:"status"`
	Glyph        string     `json:"glyph"`
	Text         string     `json:"text"`
}

// PredictionStats summarises predictions over a period
type PredictionStats struct {
	Emitted   int `json:"emitted"`
	Pending   int `json:"pending"`
	Verified0 int `json:"verified0"`
	Verified1 int `json:"verified1"`
	Failed    int `json:"failed"`
}

// Add counts one prediction in its current status
func (s *PredictionStats) Add(status Status) {
	s.Emitted++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusVerified0:
		s.Verified0++
	case StatusVerified1:
		s.Verified1++
	case StatusFailed:
		s.Failed++
	}
}

// WinRate returns the share of resolved predictions verified at offset 0 or 1, in percent
func (s PredictionStats) WinRate() float64 {
	resolved := s.Verified0 + s.Verified1 + s.Failed
	if resolved == 0 {
		return 0
	}
	return float64(s.Verified0+s.Verified1) / float64(resolved) * 100
}
