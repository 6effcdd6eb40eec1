package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/models"
)

// sender is the subset of *tgbotapi.BotAPI the package uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Engine is the prediction engine fed by the router and driven by admin commands
type Engine interface {
	Submit(ctx context.Context, o models.Outcome) error
	ResetAll(ctx context.Context) error
	Snapshot(ctx context.Context) ([]engine.ChannelSnapshot, error)
	Stats(ctx context.Context) (models.PredictionStats, error)
}
