package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/CardPredictor/internal/database"
	"github.com/Alias1177/CardPredictor/models"
)

func TestCoordinator_Recover(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	require.NoError(t, store.SavePrediction(ctx, models.Prediction{
		ID: 21, TriggerID: 20, Channel: source, Symbol: models.Club, Status: models.StatusPending,
		CreatedAt: t0, MessageRef: models.MessageRef{ChatID: destination, MessageID: 5},
	}))
	require.NoError(t, store.SavePrediction(ctx, models.Prediction{
		ID: 11, TriggerID: 10, Channel: source, Symbol: models.Heart, Status: models.StatusFailed, CreatedAt: t0,
	}))
	require.NoError(t, store.SaveCooldown(ctx, source, t0))
	require.NoError(t, store.SaveCooldown(ctx, -7, t0.Add(-10*time.Second)))

	c, sink := newCoordinator(t, nil)
	lastSeen, err := c.Recover(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{source: 20, -7: 0}, lastSeen)

	snaps := drain(t, c)
	require.Len(t, snaps, 2)
	// ordered by channel id
	assert.Equal(t, source, snaps[0].Channel)
	require.NotNil(t, snaps[0].Open)
	assert.Equal(t, 21, snaps[0].Open.ID)
	assert.Equal(t, 30*time.Second, snaps[0].CooldownRemaining)
	assert.Equal(t, int64(-7), snaps[1].Channel)
	assert.Nil(t, snaps[1].Open)
	assert.Equal(t, 20*time.Second, snaps[1].CooldownRemaining)

	// the restored prediction is verified by the next outcome
	submit(t, c, at(21, models.Club, time.Second))
	drain(t, c)
	edits := sink.edits()
	require.Len(t, edits, 1)
	assert.Equal(t, 21, edits[0].PredictionID)
	assert.Equal(t, models.MessageRef{ChatID: destination, MessageID: 5}, edits[0].MessageRef)
}

func TestCoordinator_RecoverLastSeen(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	// one miss counted before the restart
	require.NoError(t, store.SavePrediction(ctx, models.Prediction{
		ID: 21, TriggerID: 20, Channel: source, Symbol: models.Club, Status: models.StatusPending,
		AttemptsObserved: 1, LastObservedID: 22, CreatedAt: t0,
	}))

	c, sink := newCoordinator(t, nil)
	lastSeen, err := c.Recover(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 22, lastSeen[source])

	// #22 again does not count as the second observation
	submit(t, c, at(22, models.Spade, time.Second))
	snaps := drain(t, c)
	require.NotNil(t, snaps[0].Open)
	assert.Equal(t, 1, snaps[0].Open.AttemptsObserved)

	submit(t, c, at(23, models.Club, 2*time.Second))
	snaps = drain(t, c)
	assert.Nil(t, snaps[0].Open)
	assert.Equal(t, 1, snaps[0].Stats.Verified1)
	assert.Empty(t, sink.emits())
}
