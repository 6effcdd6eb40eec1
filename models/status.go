package models

// StatusGlyphs is the display token of every prediction status. Consumers
// of the prediction channel match on these exact strings.
var StatusGlyphs = map[Status]string{
	StatusPending:   "⏳",
	StatusVerified0: "✅0️⃣",
	StatusVerified1: "✅1️⃣",
	StatusFailed:    "⭕",
}

// Glyph returns the display token of the status
func (s Status) Glyph() string {
	return StatusGlyphs[s]
}
