package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/metrics"
	"github.com/Alias1177/CardPredictor/internal/prediction"
	"github.com/Alias1177/CardPredictor/models"
)

type eventKind int

const (
	evOutcome eventKind = iota
	evReset
	evAttachRef
	evRestore
	evSnapshot
)

type event struct {
	kind eventKind

	outcome models.Outcome

	predictionID int
	ref          models.MessageRef

	lastEmission time.Time
	restored     []models.Prediction

	reply chan<- ChannelSnapshot
}

// actor serialises the events of one source channel onto its state
type actor struct {
	c       *Coordinator
	channel int64
	events  chan event
	state   *Channel
	log     zerolog.Logger
}

func newActor(c *Coordinator, channel int64, windowSize int) *actor {
	return &actor{
		c:       c,
		channel: channel,
		events:  make(chan event, c.opts.QueueSize),
		state:   NewChannel(channel, windowSize, c.opts.AuditSize),
		log:     c.log.With().Int64("channel", channel).Logger(),
	}
}

func (a *actor) run() {
	for ev := range a.events {
		var fx Effects
		switch ev.kind {
		case evOutcome:
			fx = a.onOutcome(ev.outcome, a.c.settings.Get())
		case evReset:
			fx = a.onReset()
		case evAttachRef:
			fx = a.onAttachRef(ev.predictionID, ev.ref)
		case evRestore:
			a.onRestore(ev.lastEmission, ev.restored)
		case evSnapshot:
			ev.reply <- a.snapshot()
		}
		if !fx.Empty() {
			fx.Channel = a.channel
			a.c.sink.Deliver(fx)
		}
	}
}

// onOutcome turns one applied outcome into metrics, logs and effects
func (a *actor) onOutcome(o models.Outcome, s config.Settings) Effects {
	var fx Effects
	metrics.OutcomesProcessed.Inc()

	st := a.state.Apply(o, s)
	if st.Transition != nil {
		a.record(&fx, *st.Transition)
	}
	if !st.Signal.Fire {
		return fx
	}

	now := o.Timestamp
	if st.Denied {
		metrics.Signals.WithLabelValues("denied").Inc()
		a.log.Debug().
			Int("game", o.ID).
			Str("matched", string(st.Signal.Matched)).
			Bool("outstanding", a.state.tracker.Outstanding()).
			Dur("cooldown_remaining", a.state.gate.Remaining(now, s.Cooldown())).
			Msg("signal dropped by gate")
		return fx
	}
	metrics.Signals.WithLabelValues("accepted").Inc()
	metrics.OpenPredictions.Inc()

	p := *st.Created
	fx.Emit = &models.EmitMessage{
		Channel:      a.c.opts.Destination(a.channel),
		Source:       a.channel,
		PredictionID: p.ID,
		Text:         prediction.Text(p),
	}
	fx.Records = append(fx.Records, p)
	fx.CooldownAt = now

	a.log.Info().
		Int("game", o.ID).
		Int("prediction", p.ID).
		Str("matched", string(st.Signal.Matched)).
		Str("predicted", string(p.Symbol)).
		Int("run", st.Signal.Run).
		Msg("prediction created")
	return fx
}

func (a *actor) onReset() Effects {
	fx := Effects{Reset: true}
	if tr := a.state.tracker.ForceFail(a.c.opts.Clock()); tr != nil {
		a.record(&fx, *tr)
	}
	a.state.detector.Reset()
	a.state.gate.Reset()
	a.log.Info().Msg("channel reset")
	return fx
}

func (a *actor) onAttachRef(id int, ref models.MessageRef) Effects {
	var fx Effects
	p, tr, ok := a.state.tracker.AttachRef(id, ref)
	if !ok {
		a.log.Warn().Int("prediction", id).Msg("message reference for unknown prediction")
		return fx
	}
	fx.Records = append(fx.Records, p)
	if tr != nil {
		fx.Edits = append(fx.Edits, a.c.editor.Apply(*tr))
	}
	return fx
}

func (a *actor) onRestore(last time.Time, preds []models.Prediction) {
	if !last.IsZero() {
		a.state.gate.Restore(last)
	}
	for _, p := range preds {
		a.state.tracker.Restore(p)
		if !p.Status.Terminal() {
			metrics.OpenPredictions.Inc()
		}
	}
	a.log.Info().Int("predictions", len(preds)).Time("last_emission", last).Msg("channel state restored")
}

// record adds the persisted state of a transition and, once it is terminal
// and the message is known, its edit.
func (a *actor) record(fx *Effects, tr prediction.Transition) {
	fx.Records = append(fx.Records, tr.Prediction)
	if !tr.Terminal() {
		return
	}
	metrics.OpenPredictions.Dec()
	metrics.PredictionsResolved.WithLabelValues(string(tr.Prediction.Status)).Inc()
	a.log.Info().
		Int("prediction", tr.Prediction.ID).
		Str("status", string(tr.Prediction.Status)).
		Msg("prediction resolved")

	if tr.Prediction.MessageRef.IsZero() {
		// edited once AttachRef delivers the reference
		return
	}
	fx.Edits = append(fx.Edits, a.c.editor.Apply(tr))
}

func (a *actor) snapshot() ChannelSnapshot {
	s := a.c.settings.Get()
	now := a.c.opts.Clock()
	snap := ChannelSnapshot{
		Channel:           a.channel,
		WindowSize:        a.state.detector.Window().Len(),
		WindowCapacity:    a.state.detector.Window().Capacity(),
		LastEmission:      a.state.gate.Last(),
		CooldownRemaining: a.state.gate.Remaining(now, s.Cooldown()),
	}
	for _, p := range a.state.tracker.Resolved() {
		snap.Stats.Add(p.Status)
	}
	if p, ok := a.state.tracker.Open(); ok {
		snap.Open = &p
		snap.Stats.Add(p.Status)
	}
	return snap
}
