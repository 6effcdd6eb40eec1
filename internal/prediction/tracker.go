package prediction

import (
	"time"

	"github.com/Alias1177/CardPredictor/models"
)

// DefaultAuditSize is how many resolved predictions a tracker keeps
const DefaultAuditSize = 100

// Tracker owns the predictions of one channel: at most one open prediction
// plus a bounded audit log of resolved ones. Not safe for concurrent use.
type Tracker struct {
	channel   int64
	open      *models.Prediction
	resolved  []models.Prediction
	auditSize int
}

// NewTracker creates a tracker for channel
func NewTracker(channel int64, auditSize int) *Tracker {
	if auditSize < 1 {
		auditSize = DefaultAuditSize
	}
	return &Tracker{channel: channel, auditSize: auditSize}
}

// Outstanding reports whether a non-terminal prediction exists
func (t *Tracker) Outstanding() bool { return t.open != nil }

// Open returns the non-terminal prediction, if any
func (t *Tracker) Open() (models.Prediction, bool) {
	if t.open == nil {
		return models.Prediction{}, false
	}
	return *t.open, true
}

// Resolved returns the audit log, oldest first
func (t *Tracker) Resolved() []models.Prediction {
	out := make([]models.Prediction, len(t.resolved))
	copy(out, t.resolved)
	return out
}

// Create opens a pending prediction triggered by outcome. The caller must
// have checked that nothing is outstanding.
func (t *Tracker) Create(trigger models.Outcome, matched, predicted models.Symbol, now time.Time) models.Prediction {
	p := models.Prediction{
		ID:        trigger.ID + 1,
		TriggerID: trigger.ID,
		Channel:   t.channel,
		Symbol:    predicted,
		Matched:   matched,
		Status:    models.StatusPending,
		CreatedAt: now,
	}
	t.open = &p
	return p
}

// Consume applies a new outcome to the open prediction
func (t *Tracker) Consume(o models.Outcome) *Transition {
	if t.open == nil {
		return nil
	}
	next, tr := Step(*t.open, o)
	if tr == nil {
		return nil
	}
	t.settle(next)
	return tr
}

// ForceFail resolves the open prediction as failed, e.g. on an administrative reset
func (t *Tracker) ForceFail(now time.Time) *Transition {
	if t.open == nil {
		return nil
	}
	p := *t.open
	from := p.Status
	p.Status = models.StatusFailed
	p.ResolvedAt = now
	t.settle(p)
	return &Transition{From: from, Label: string(p.Status), Prediction: p}
}

// AttachRef records where the prediction message was posted. When the
// prediction already resolved while the reference was unknown, the returned
// transition carries the final state so its edit can be issued now.
func (t *Tracker) AttachRef(id int, ref models.MessageRef) (models.Prediction, *Transition, bool) {
	if t.open != nil && t.open.ID == id {
		t.open.MessageRef = ref
		return *t.open, nil, true
	}
	for i := len(t.resolved) - 1; i >= 0; i-- {
		p := &t.resolved[i]
		if p.ID != id {
			continue
		}
		if !p.MessageRef.IsZero() {
			return *p, nil, true
		}
		p.MessageRef = ref
		return *p, &Transition{From: models.StatusPending, Label: string(p.Status), Prediction: *p}, true
	}
	return models.Prediction{}, nil, false
}

// Restore reinstates a persisted prediction after a restart
func (t *Tracker) Restore(p models.Prediction) {
	if p.Status.Terminal() {
		t.archive(p)
		return
	}
	t.open = &p
}

// Reset forgets every prediction without resolving them
func (t *Tracker) Reset() {
	t.open = nil
	t.resolved = nil
}

func (t *Tracker) settle(p models.Prediction) {
	if !p.Status.Terminal() {
		t.open = &p
		return
	}
	t.open = nil
	t.archive(p)
}

func (t *Tracker) archive(p models.Prediction) {
	t.resolved = append(t.resolved, p)
	if over := len(t.resolved) - t.auditSize; over > 0 {
		t.resolved = append(t.resolved[:0], t.resolved[over:]...)
	}
}
