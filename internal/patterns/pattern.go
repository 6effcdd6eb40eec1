package patterns

import (
	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/models"
)

// Signal is the detector's proposal to emit a prediction
type Signal struct {
	Fire      bool
	Matched   models.Symbol // symbol that repeated
	Predicted models.Symbol // symbol to announce
	Run       int           // how many times Matched was seen
}

// messageOrder is the order suits are checked in when the rule is applied to a single message
var messageOrder = []models.Symbol{models.Heart, models.Spade, models.Diamond, models.Club}

// Detector evaluates the mirror rule over the history of one channel
type Detector struct {
	window *HistoryWindow
}

// NewDetector creates a detector with an empty window of the given size
func NewDetector(windowSize int) *Detector {
	return &Detector{window: NewHistoryWindow(windowSize)}
}

// Window exposes the underlying history
func (d *Detector) Window() *HistoryWindow { return d.window }

// Reset forgets the history
func (d *Detector) Reset() { d.window.Clear() }

// Observe folds the outcome into the history and decides whether a prediction should fire.
// It never touches predictions: the caller decides whether the signal is used.
func (d *Detector) Observe(o models.Outcome, s config.Settings) Signal {
	d.window.Resize(s.HistoryWindowSize)
	d.window.Push(o)

	var (
		matched models.Symbol
		run     int
		fire    bool
	)
	switch s.MirrorScope {
	case config.ScopeMessage:
		matched, run, fire = MessageRule(o, s.MirrorThreshold)
	default:
		matched, run, fire = MirrorRule(d.window, s.MirrorThreshold)
	}
	if !fire {
		return Signal{Matched: matched, Run: run}
	}

	predicted := matched
	if s.PredictionMode == config.ModeMirror {
		predicted = matched.Mirror()
	}
	return Signal{Fire: true, Matched: matched, Predicted: predicted, Run: run}
}

// MirrorRule scans the window from the newest outcome backward and counts how
// many consecutive outcomes share its symbol. It fires when that run reaches threshold.
func MirrorRule(w *HistoryWindow, threshold int) (models.Symbol, int, bool) {
	newest, ok := w.Newest(0)
	if !ok || threshold < 1 {
		return "", 0, false
	}
	run := 1
	for i := 1; run < threshold; i++ {
		o, ok := w.Newest(i)
		if !ok || o.Symbol != newest.Symbol {
			break
		}
		run++
	}
	return newest.Symbol, run, run >= threshold
}

// MessageRule fires when one suit appears at least threshold times in a single message
func MessageRule(o models.Outcome, threshold int) (models.Symbol, int, bool) {
	if threshold < 1 {
		return "", 0, false
	}
	for _, s := range messageOrder {
		if n := o.Counts[s]; n >= threshold {
			return s, n, true
		}
	}
	return "", 0, false
}
