package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	source      = int64(-1001)
	destination = int64(-2002)
)

var t0 = time.Unix(1_700_000_000, 0)

type collector struct {
	mu sync.Mutex
	fx []Effects
}

func (c *collector) Deliver(fx Effects) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fx = append(c.fx, fx)
}

func (c *collector) emits() []models.EmitMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.EmitMessage
	for _, fx := range c.fx {
		if fx.Emit != nil {
			out = append(out, *fx.Emit)
		}
	}
	return out
}

func (c *collector) edits() []models.EditIntent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.EditIntent
	for _, fx := range c.fx {
		out = append(out, fx.Edits...)
	}
	return out
}

func newCoordinator(t *testing.T, mutate func(*config.Settings)) (*Coordinator, *collector) {
	t.Helper()
	s := config.DefaultSettings()
	if mutate != nil {
		mutate(&s)
	}
	require.NoError(t, s.Validate())
	sink := &collector{}
	c := New(config.NewLive(s), sink, Options{
		Destination: func(int64) int64 { return destination },
		Clock:       func() time.Time { return t0 },
	})
	t.Cleanup(c.Close)
	return c, sink
}

func at(id int, s models.Symbol, offset time.Duration) models.Outcome {
	return models.Outcome{ID: id, Symbol: s, Suits: []models.Symbol{s}, Channel: source, Timestamp: t0.Add(offset)}
}

func submit(t *testing.T, c *Coordinator, outcomes ...models.Outcome) {
	t.Helper()
	for _, o := range outcomes {
		require.NoError(t, c.Submit(context.Background(), o))
	}
}

// drain waits until every event queued so far has been applied
func drain(t *testing.T, c *Coordinator) []ChannelSnapshot {
	t.Helper()
	snaps, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	return snaps
}

func TestCoordinator_EmitsPrediction(t *testing.T) {
	c, sink := newCoordinator(t, nil)
	submit(t, c,
		at(741, models.Heart, 0),
		at(742, models.Heart, time.Second),
		at(743, models.Heart, 2*time.Second),
	)
	snaps := drain(t, c)

	emits := sink.emits()
	require.Len(t, emits, 1)
	assert.Equal(t, models.EmitMessage{
		Channel:      destination,
		Source:       source,
		PredictionID: 744,
		Text:         "🔵744🔵:♣️statut :⏳",
	}, emits[0])

	require.Len(t, snaps, 1)
	require.NotNil(t, snaps[0].Open)
	assert.Equal(t, models.StatusPending, snaps[0].Open.Status)
	assert.Equal(t, t0.Add(2*time.Second), snaps[0].LastEmission)
}

func TestCoordinator_VerifiesWithSingleEdit(t *testing.T) {
	c, sink := newCoordinator(t, nil)
	ref := models.MessageRef{ChatID: destination, MessageID: 9}

	submit(t, c, at(1, models.Heart, 0), at(2, models.Heart, time.Second), at(3, models.Heart, 2*time.Second))
	require.NoError(t, c.AttachRef(context.Background(), source, 4, ref))
	submit(t, c, at(4, models.Spade, 3*time.Second), at(5, models.Club, 4*time.Second), at(6, models.Club, 5*time.Second))
	snaps := drain(t, c)

	edits := sink.edits()
	require.Len(t, edits, 1)
	assert.Equal(t, models.StatusVerified1, edits[0].Status)
	assert.Equal(t, "🔵4🔵:♣️statut :✅1️⃣", edits[0].Text)
	assert.Equal(t, ref, edits[0].MessageRef)

	assert.Nil(t, snaps[0].Open)
	assert.Equal(t, 1, snaps[0].Stats.Verified1)
}

func TestCoordinator_DeferredEdit(t *testing.T) {
	c, sink := newCoordinator(t, nil)
	submit(t, c,
		at(1, models.Heart, 0), at(2, models.Heart, time.Second), at(3, models.Heart, 2*time.Second),
		at(4, models.Club, 3*time.Second),
	)
	drain(t, c)
	assert.Empty(t, sink.edits(), "no edit without a message reference")

	ref := models.MessageRef{ChatID: destination, MessageID: 12}
	require.NoError(t, c.AttachRef(context.Background(), source, 4, ref))
	require.NoError(t, c.AttachRef(context.Background(), source, 4, ref))
	drain(t, c)

	edits := sink.edits()
	require.Len(t, edits, 1)
	assert.Equal(t, models.StatusVerified0, edits[0].Status)
	assert.Equal(t, ref, edits[0].MessageRef)
}

func TestCoordinator_CooldownEnforced(t *testing.T) {
	c, sink := newCoordinator(t, nil)
	submit(t, c,
		at(1, models.Heart, 0), at(2, models.Heart, time.Second), at(3, models.Heart, 2*time.Second),
		at(4, models.Club, 3*time.Second), // verifies prediction 4
		at(5, models.Club, 4*time.Second),
		at(6, models.Club, 5*time.Second), // fires inside the cooldown
	)
	drain(t, c)
	require.Len(t, sink.emits(), 1)

	submit(t, c, at(7, models.Club, 40*time.Second))
	drain(t, c)

	emits := sink.emits()
	require.Len(t, emits, 2)
	assert.Equal(t, 8, emits[1].PredictionID)
	assert.Equal(t, "🔵8🔵:♥️statut :⏳", emits[1].Text)
}

func TestCoordinator_AtMostOneOutstanding(t *testing.T) {
	c, sink := newCoordinator(t, func(s *config.Settings) { s.CooldownSeconds = 0 })

	submit(t, c, at(1, models.Heart, 0), at(2, models.Heart, time.Second), at(3, models.Heart, 2*time.Second))
	submit(t, c, at(4, models.Heart, 3*time.Second)) // rule fires again, prediction 4 outstanding
	snaps := drain(t, c)
	require.Len(t, sink.emits(), 1)
	require.NotNil(t, snaps[0].Open)
	assert.Equal(t, 1, snaps[0].Open.AttemptsObserved)

	// resolves prediction 4 as failed, and the same outcome triggers the next one
	submit(t, c, at(5, models.Heart, 4*time.Second))
	snaps = drain(t, c)

	emits := sink.emits()
	require.Len(t, emits, 2)
	assert.Equal(t, 6, emits[1].PredictionID)
	require.NotNil(t, snaps[0].Open)
	assert.Equal(t, 6, snaps[0].Open.ID)
	assert.Equal(t, 1, snaps[0].Stats.Failed)
}

func TestCoordinator_NumberingRestart(t *testing.T) {
	c, sink := newCoordinator(t, nil)

	submit(t, c,
		at(1438, models.Heart, 0),
		at(1439, models.Heart, time.Minute),
		at(1440, models.Heart, 2*time.Minute), // predicts #1441
	)
	// the next session starts over at #1 and settles #1441 with two misses
	submit(t, c,
		at(1, models.Spade, 3*time.Minute),
		at(2, models.Spade, 4*time.Minute),
		at(3, models.Spade, 5*time.Minute), // predicts #4
	)
	submit(t, c,
		at(4, models.Diamond, 6*time.Minute), // verifies #4
		at(5, models.Diamond, 7*time.Minute),
		at(6, models.Diamond, 8*time.Minute), // predicts #7
	)
	snaps := drain(t, c)

	var ids []int
	for _, e := range sink.emits() {
		ids = append(ids, e.PredictionID)
	}
	assert.Equal(t, []int{1441, 4, 7}, ids)

	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].Stats.Failed)
	assert.Equal(t, 1, snaps[0].Stats.Verified0)
	require.NotNil(t, snaps[0].Open)
	assert.Equal(t, 7, snaps[0].Open.ID)
}

func TestCoordinator_Reset(t *testing.T) {
	c, sink := newCoordinator(t, nil)
	ref := models.MessageRef{ChatID: destination, MessageID: 3}

	submit(t, c, at(1, models.Heart, 0), at(2, models.Heart, time.Second), at(3, models.Heart, 2*time.Second))
	require.NoError(t, c.AttachRef(context.Background(), source, 4, ref))
	require.NoError(t, c.ResetAll(context.Background()))
	snaps := drain(t, c)

	edits := sink.edits()
	require.Len(t, edits, 1)
	assert.Equal(t, models.StatusFailed, edits[0].Status)
	assert.Equal(t, "⭕", edits[0].Glyph)

	assert.Nil(t, snaps[0].Open)
	assert.Zero(t, snaps[0].WindowSize)
	assert.True(t, snaps[0].LastEmission.IsZero())

	// a fresh run fires immediately since the cooldown was cleared
	submit(t, c, at(10, models.Spade, 3*time.Second), at(11, models.Spade, 4*time.Second), at(12, models.Spade, 5*time.Second))
	drain(t, c)
	require.Len(t, sink.emits(), 2)
	assert.Equal(t, "🔵13🔵:♦️statut :⏳", sink.emits()[1].Text)
}

func TestCoordinator_Restore(t *testing.T) {
	c, sink := newCoordinator(t, nil)
	open := models.Prediction{
		ID: 21, TriggerID: 20, Channel: source, Symbol: models.Club, Status: models.StatusPending,
		MessageRef: models.MessageRef{ChatID: destination, MessageID: 5},
	}
	require.NoError(t, c.Restore(context.Background(), source, t0, []models.Prediction{open}))
	submit(t, c, at(21, models.Club, time.Second))
	drain(t, c)

	edits := sink.edits()
	require.Len(t, edits, 1)
	assert.Equal(t, models.StatusVerified0, edits[0].Status)
}

func TestCoordinator_ChannelsIndependent(t *testing.T) {
	c, sink := newCoordinator(t, nil)

	var wg sync.WaitGroup
	for _, ch := range []int64{-1, -2, -3} {
		wg.Add(1)
		go func(ch int64) {
			defer wg.Done()
			for i := 1; i <= 3; i++ {
				o := at(i, models.Diamond, time.Duration(i)*time.Second)
				o.Channel = ch
				assert.NoError(t, c.Submit(context.Background(), o))
			}
		}(ch)
	}
	wg.Wait()
	snaps := drain(t, c)

	assert.Len(t, snaps, 3)
	assert.Len(t, sink.emits(), 3)
	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pending)
}

func TestCoordinator_Closed(t *testing.T) {
	c, _ := newCoordinator(t, nil)
	submit(t, c, at(1, models.Heart, 0))
	c.Close()
	assert.ErrorIs(t, c.Submit(context.Background(), at(2, models.Heart, time.Second)), ErrClosed)
	assert.ErrorIs(t, c.Reset(context.Background(), source), ErrClosed)
}
