package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Update kinds the bot subscribes to
var allowedUpdates = []string{"message", "edited_message", "channel_post", "edited_channel_post"}

// UpdateHandler consumes one update
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u tgbotapi.Update)
}

type poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poll long-polls getUpdates and hands every update to h until ctx is done
func Poll(ctx context.Context, p poller, h UpdateHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = allowedUpdates

	updates := p.GetUpdatesChan(u)
	log.Info().Msg("Polling for updates")
	for {
		select {
		case <-ctx.Done():
			p.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

// SetWebhook registers url as the update endpoint
func SetWebhook(s sender, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	wh.AllowedUpdates = allowedUpdates
	if _, err := s.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Info().Str("url", url).Msg("Webhook registered")
	return nil
}

// DeleteWebhook switches the bot back to polling
func DeleteWebhook(s sender) error {
	if _, err := s.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
