package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/CardPredictor/internal/prediction"
	"github.com/Alias1177/CardPredictor/models"
)

// StateSource is the persisted state read back at startup
type StateSource interface {
	Cooldowns(ctx context.Context) (map[int64]time.Time, error)
	OpenPredictions(ctx context.Context) ([]models.Prediction, error)
}

// Recover restores last emissions and pending predictions from the store.
// It returns, for every restored channel, the newest game id its pending
// predictions already counted, 0 when only a cooldown was stored.
func (c *Coordinator) Recover(ctx context.Context, store StateSource) (map[int64]int, error) {
	cooldowns, err := store.Cooldowns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cooldowns: %w", err)
	}
	open, err := store.OpenPredictions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open predictions: %w", err)
	}

	byChannel := make(map[int64][]models.Prediction)
	lastSeen := make(map[int64]int)
	for _, p := range open {
		byChannel[p.Channel] = append(byChannel[p.Channel], p)
		lastSeen[p.Channel] = max(lastSeen[p.Channel], prediction.LastSeen(p))
	}
	for ch := range cooldowns {
		if _, ok := byChannel[ch]; !ok {
			byChannel[ch] = nil
			lastSeen[ch] = 0
		}
	}

	for ch, preds := range byChannel {
		if err := c.Restore(ctx, ch, cooldowns[ch], preds); err != nil {
			return nil, fmt.Errorf("restore channel %d: %w", ch, err)
		}
	}
	return lastSeen, nil
}
