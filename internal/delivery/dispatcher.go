package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/metrics"
	"github.com/Alias1177/CardPredictor/models"
)

// sentKeys is how many delivered edit keys are remembered
const sentKeys = 1024

const (
	// MaxEditAttempts caps how many times one edit is sent before it is dropped
	MaxEditAttempts = 5
	// DefaultRetryInterval is the wait before the first re-delivery of a failed edit
	DefaultRetryInterval = 2 * time.Second
)

// RefAttacher receives the message reference of an emitted prediction
type RefAttacher interface {
	AttachRef(ctx context.Context, channel int64, predictionID int, ref models.MessageRef) error
}

// pendingEdit is a failed edit waiting for re-delivery under the same key
type pendingEdit struct {
	channel int64
	intent  models.EditIntent
	policy  backoff.BackOff
	due     time.Time
}

// Dispatcher performs the effects produced by the engine: it persists
// prediction records and cooldowns, posts predictions and edits them.
// Failed edits are re-delivered with backoff up to MaxEditAttempts times;
// other failures are logged and counted. Engine state is never rolled back.
type Dispatcher struct {
	messenger models.Messenger
	store     models.Store
	refs      RefAttacher
	log       zerolog.Logger

	mu      sync.Mutex
	queue   []engine.Effects
	retries []pendingEdit
	notify  chan struct{}

	retryInterval time.Duration
	now           func() time.Time

	sent  map[string]struct{}
	order []string
}

// New creates a Dispatcher. refs may be set later with SetRefAttacher.
func New(messenger models.Messenger, store models.Store, refs RefAttacher) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		store:     store,
		refs:      refs,
		log:       log.With().Str("component", "delivery").Logger(),
		notify:    make(chan struct{}, 1),
		sent:      make(map[string]struct{}),

		retryInterval: DefaultRetryInterval,
		now:           time.Now,
	}
}

// SetRefAttacher sets the receiver of message references. Call before Run.
func (d *Dispatcher) SetRefAttacher(refs RefAttacher) { d.refs = refs }

// Deliver queues effects. It never blocks the caller.
func (d *Dispatcher) Deliver(fx engine.Effects) {
	d.mu.Lock()
	d.queue = append(d.queue, fx)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Run performs queued effects and due re-deliveries until ctx is done
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.notify:
			d.Drain(ctx)
		case <-ticker.C:
			d.Retry(ctx, false)
		}
	}
}

// Retry re-sends the failed edits that are due, or all of them when force is
// set. Edits failing again are rescheduled until MaxEditAttempts is reached.
func (d *Dispatcher) Retry(ctx context.Context, force bool) {
	d.mu.Lock()
	now := d.now()
	var due []pendingEdit
	keep := d.retries[:0]
	for _, r := range d.retries {
		if force || !r.due.After(now) {
			due = append(due, r)
			continue
		}
		keep = append(keep, r)
	}
	clear(d.retries[len(keep):])
	d.retries = keep
	d.mu.Unlock()

	for _, r := range due {
		logger := d.log.With().Int64("channel", r.channel).Logger()
		if err := d.edit(ctx, logger, r.intent); err != nil {
			d.schedule(logger, r)
		}
	}
}

// Drain performs every queued effect and returns
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		fx, ok := d.pop()
		if !ok {
			return
		}
		d.handle(ctx, fx)
	}
}

// Pending returns the number of queued effects and edits waiting for re-delivery
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) + len(d.retries)
}

func (d *Dispatcher) pop() (engine.Effects, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return engine.Effects{}, false
	}
	fx := d.queue[0]
	d.queue[0] = engine.Effects{}
	d.queue = d.queue[1:]
	return fx, true
}

func (d *Dispatcher) handle(ctx context.Context, fx engine.Effects) {
	logger := d.log.With().Int64("channel", fx.Channel).Logger()

	for _, p := range fx.Records {
		if err := d.store.SavePrediction(ctx, p); err != nil {
			metrics.DeliveryErrors.WithLabelValues("save_prediction").Inc()
			logger.Error().Err(err).Int("prediction", p.ID).Msg("Failed to persist prediction")
		}
	}
	if !fx.CooldownAt.IsZero() {
		if err := d.store.SaveCooldown(ctx, fx.Channel, fx.CooldownAt); err != nil {
			metrics.DeliveryErrors.WithLabelValues("save_cooldown").Inc()
			logger.Error().Err(err).Msg("Failed to persist cooldown")
		}
	}
	if fx.Reset {
		if err := d.store.ResetChannel(ctx, fx.Channel); err != nil {
			metrics.DeliveryErrors.WithLabelValues("reset").Inc()
			logger.Error().Err(err).Msg("Failed to reset channel in store")
		}
	}

	if fx.Emit != nil {
		d.emit(ctx, logger, *fx.Emit)
	}
	for _, intent := range fx.Edits {
		if err := d.edit(ctx, logger, intent); err != nil {
			d.schedule(logger, pendingEdit{channel: fx.Channel, intent: intent, policy: d.retryPolicy()})
		}
	}
}

func (d *Dispatcher) emit(ctx context.Context, logger zerolog.Logger, msg models.EmitMessage) {
	ref, err := d.messenger.Emit(ctx, msg)
	if err != nil {
		metrics.DeliveryErrors.WithLabelValues("emit").Inc()
		logger.Error().Err(err).Int("prediction", msg.PredictionID).Int64("chat", msg.Channel).Msg("Failed to send prediction")
		return
	}
	logger.Info().
		Int("prediction", msg.PredictionID).
		Int64("chat", ref.ChatID).
		Int("message", ref.MessageID).
		Msg("Prediction sent")

	if d.refs == nil {
		return
	}
	if err := d.refs.AttachRef(ctx, msg.Source, msg.PredictionID, ref); err != nil {
		logger.Warn().Err(err).Int("prediction", msg.PredictionID).Msg("Could not attach message reference")
	}
}

// edit returns the messenger error so the caller can schedule a re-delivery
func (d *Dispatcher) edit(ctx context.Context, logger zerolog.Logger, intent models.EditIntent) error {
	if intent.MessageRef.IsZero() {
		return nil
	}
	if _, ok := d.sent[intent.Key]; ok {
		logger.Debug().Str("key", intent.Key).Msg("Edit already delivered")
		return nil
	}
	if err := d.messenger.Edit(ctx, intent); err != nil {
		metrics.DeliveryErrors.WithLabelValues("edit").Inc()
		logger.Error().Err(err).Int("prediction", intent.PredictionID).Str("status", string(intent.Status)).Msg("Failed to edit prediction")
		return err
	}
	d.remember(intent.Key)
	logger.Info().Int("prediction", intent.PredictionID).Str("status", string(intent.Status)).Msg("Prediction updated")
	return nil
}

func (d *Dispatcher) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retryInterval
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, MaxEditAttempts-1)
}

func (d *Dispatcher) schedule(logger zerolog.Logger, r pendingEdit) {
	wait := r.policy.NextBackOff()
	if wait == backoff.Stop {
		metrics.DeliveryErrors.WithLabelValues("edit_dropped").Inc()
		logger.Error().Int("prediction", r.intent.PredictionID).Str("key", r.intent.Key).Msg("Giving up on prediction edit")
		return
	}
	r.due = d.now().Add(wait)
	d.mu.Lock()
	d.retries = append(d.retries, r)
	d.mu.Unlock()
	logger.Warn().Int("prediction", r.intent.PredictionID).Dur("retry_in", wait).Msg("Prediction edit scheduled for re-delivery")
}

func (d *Dispatcher) remember(key string) {
	d.sent[key] = struct{}{}
	d.order = append(d.order, key)
	if len(d.order) > sentKeys {
		delete(d.sent, d.order[0])
		d.order = d.order[1:]
	}
}
