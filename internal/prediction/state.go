package prediction

import (
	"fmt"

	"github.com/Alias1177/CardPredictor/models"
)

// LabelContinues marks the intermediate step where the first observation
// missed and the prediction waits for one more game.
const LabelContinues = "continues"

// Transition is one state change of a prediction
type Transition struct {
	From       models.Status
	Label      string            // To's status, or LabelContinues
	Prediction models.Prediction // state after the transition
}

// Terminal reports whether the transition resolved the prediction
func (t Transition) Terminal() bool {
	return !t.From.Terminal() && t.Prediction.Status.Terminal()
}

// Step is the verification state machine. It applies one subsequent outcome
// to p and returns the new state and the transition, if any.
//
//	pending(0) --match--> verified0
//	pending(0) --miss---> pending(1) "continues"
//	pending(1) --match--> verified1
//	pending(1) --miss---> failed
//
// Terminal predictions and outcomes already counted are ignored. An id far
// behind the last one counted starts a new numbering session and counts as
// the next game.
func Step(p models.Prediction, o models.Outcome) (models.Prediction, *Transition) {
	if p.Status.Terminal() || !Newer(p, o.ID) {
		return p, nil
	}

	from := p.Status
	p.AttemptsObserved++
	p.LastObservedID = o.ID
	hit := o.Has(p.Symbol)

	switch {
	case p.AttemptsObserved == 1 && hit:
		p.Status = models.StatusVerified0
	case p.AttemptsObserved == 1:
		return p, &Transition{From: from, Label: LabelContinues, Prediction: p}
	case hit:
		p.Status = models.StatusVerified1
	default:
		p.Status = models.StatusFailed
	}
	p.ResolvedAt = o.Timestamp
	return p, &Transition{From: from, Label: string(p.Status), Prediction: p}
}

// LastSeen is the newest game id p accounts for: the last observed one, or
// the trigger while nothing was observed.
func LastSeen(p models.Prediction) int {
	if p.AttemptsObserved > 0 && p.LastObservedID != 0 {
		return p.LastObservedID
	}
	return p.TriggerID
}

// Newer reports whether game id is still to be counted against p
func Newer(p models.Prediction, id int) bool {
	last := LastSeen(p)
	return id > last || models.Restarted(last, id)
}

// Text renders the prediction message with its current status glyph
func Text(p models.Prediction) string {
	return fmt.Sprintf("🔵%d🔵:%sstatut :%s", p.ID, p.Symbol, p.Status.Glyph())
}
