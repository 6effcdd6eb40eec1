package models

import (
	"context"
	"time"
)

// Messenger delivers predictions and their status edits to the messaging API
type Messenger interface {
	Emit(ctx context.Context, msg EmitMessage) (MessageRef, error)
	Edit(ctx context.Context, intent EditIntent) error
}

// Store persists prediction audit records, cooldowns and redirects
type Store interface {
	SavePrediction(ctx context.Context, p Prediction) error
	OpenPredictions(ctx context.Context) ([]Prediction, error)
	Stats(ctx context.Context, since time.Time) (PredictionStats, error)

	SaveCooldown(ctx context.Context, channel int64, at time.Time) error
	Cooldowns(ctx context.Context) (map[int64]time.Time, error)
	ResetChannel(ctx context.Context, channel int64) error

	SaveRedirect(ctx context.Context, source, target int64) error
	Redirects(ctx context.Context) (map[int64]int64, error)
	ClearRedirects(ctx context.Context) error

	Close() error
}
