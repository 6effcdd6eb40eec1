package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/editor"
	"github.com/Alias1177/CardPredictor/internal/prediction"
	"github.com/Alias1177/CardPredictor/models"
)

// ErrClosed is returned for events submitted after Close
var ErrClosed = errors.New("engine closed")

// Options configure a Coordinator
type Options struct {
	// Destination maps a source channel to the chat predictions are posted in
	Destination func(source int64) int64
	QueueSize   int
	AuditSize   int
	Clock       func() time.Time
}

// Coordinator runs one actor per source channel. Every event of a channel is
// applied by that channel's goroutine in arrival order, so the detector, gate
// and tracker of a channel are never touched concurrently.
type Coordinator struct {
	settings *config.Live
	sink     Sink
	editor   *editor.Adapter
	opts     Options
	log      zerolog.Logger

	mu     sync.RWMutex
	actors map[int64]*actor
	closed bool
	wg     sync.WaitGroup
}

// New creates a Coordinator reading its parameters from settings
func New(settings *config.Live, sink Sink, opts Options) *Coordinator {
	if opts.Destination == nil {
		opts.Destination = func(source int64) int64 { return source }
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.AuditSize <= 0 {
		opts.AuditSize = prediction.DefaultAuditSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Coordinator{
		settings: settings,
		sink:     sink,
		editor:   editor.New(),
		opts:     opts,
		log:      log.With().Str("component", "engine").Logger(),
		actors:   make(map[int64]*actor),
	}
}

// Submit queues an outcome for its channel
func (c *Coordinator) Submit(ctx context.Context, o models.Outcome) error {
	if o.Timestamp.IsZero() {
		o.Timestamp = c.opts.Clock()
	}
	return c.send(ctx, o.Channel, event{kind: evOutcome, outcome: o})
}

// Reset force-fails the open prediction of channel and clears its window and cooldown
func (c *Coordinator) Reset(ctx context.Context, channel int64) error {
	return c.send(ctx, channel, event{kind: evReset})
}

// ResetAll resets every known channel
func (c *Coordinator) ResetAll(ctx context.Context) error {
	var errs []error
	for _, ch := range c.channels() {
		if err := c.Reset(ctx, ch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AttachRef records the message the prediction was posted as
func (c *Coordinator) AttachRef(ctx context.Context, channel int64, predictionID int, ref models.MessageRef) error {
	return c.send(ctx, channel, event{kind: evAttachRef, predictionID: predictionID, ref: ref})
}

// Restore reinstates persisted state of a channel after a restart
func (c *Coordinator) Restore(ctx context.Context, channel int64, lastEmission time.Time, predictions []models.Prediction) error {
	return c.send(ctx, channel, event{kind: evRestore, lastEmission: lastEmission, restored: predictions})
}

// Snapshot returns the state of every channel, ordered by channel id
func (c *Coordinator) Snapshot(ctx context.Context) ([]ChannelSnapshot, error) {
	channels := c.channels()
	out := make([]ChannelSnapshot, 0, len(channels))
	for _, ch := range channels {
		reply := make(chan ChannelSnapshot, 1)
		if err := c.send(ctx, ch, event{kind: evSnapshot, reply: reply}); err != nil {
			return nil, err
		}
		select {
		case s := <-reply:
			out = append(out, s)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

// Stats sums the statistics of every channel
func (c *Coordinator) Stats(ctx context.Context) (models.PredictionStats, error) {
	snaps, err := c.Snapshot(ctx)
	if err != nil {
		return models.PredictionStats{}, err
	}
	var total models.PredictionStats
	for _, s := range snaps {
		total.Emitted += s.Stats.Emitted
		total.Pending += s.Stats.Pending
		total.Verified0 += s.Stats.Verified0
		total.Verified1 += s.Stats.Verified1
		total.Failed += s.Stats.Failed
	}
	return total, nil
}

// Close stops accepting events, drains the queues and waits for the actors
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, a := range c.actors {
		close(a.events)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) send(ctx context.Context, channel int64, ev event) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClosed
	}
	a, ok := c.actors[channel]
	if !ok {
		c.mu.RUnlock()
		a, ok = c.spawn(channel)
		if !ok {
			return ErrClosed
		}
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return ErrClosed
		}
	}
	defer c.mu.RUnlock()

	select {
	case a.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) spawn(channel int64) (*actor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	if a, ok := c.actors[channel]; ok {
		return a, true
	}
	s := c.settings.Get()
	a := newActor(c, channel, s.HistoryWindowSize)
	c.actors[channel] = a
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		a.run()
	}()
	c.log.Debug().Int64("channel", channel).Msg("channel actor started")
	return a, true
}

func (c *Coordinator) channels() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int64, 0, len(c.actors))
	for ch := range c.actors {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}
