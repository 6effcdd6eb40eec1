package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/CardPredictor/models"
)

// Messenger posts and edits prediction messages through the Bot API
type Messenger struct {
	s sender
}

// NewMessenger creates a Messenger over s, usually a *tgbotapi.BotAPI
func NewMessenger(s sender) *Messenger {
	return &Messenger{s: s}
}

// Emit posts a new prediction and returns where it landed
func (m *Messenger) Emit(ctx context.Context, msg models.EmitMessage) (models.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return models.MessageRef{}, err
	}
	sent, err := m.s.Send(tgbotapi.NewMessage(msg.Channel, msg.Text))
	if err != nil {
		return models.MessageRef{}, fmt.Errorf("send prediction %d: %w", msg.PredictionID, err)
	}
	ref := models.MessageRef{ChatID: msg.Channel, MessageID: sent.MessageID}
	if sent.Chat != nil {
		ref.ChatID = sent.Chat.ID
	}
	return ref, nil
}

// Edit replaces the text of an emitted prediction. Re-applying an edit that
// is already visible is not an error.
func (m *Messenger) Edit(ctx context.Context, intent models.EditIntent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewEditMessageText(intent.MessageRef.ChatID, intent.MessageRef.MessageID, intent.Text)
	if _, err := m.s.Request(cfg); err != nil {
		if notModified(err) {
			return nil
		}
		return fmt.Errorf("edit prediction %d: %w", intent.PredictionID, err)
	}
	return nil
}

// Notify sends a plain text message, e.g. a report to the admin
func (m *Messenger) Notify(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("notify %d: %w", chatID, err)
	}
	return nil
}

func notModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "message is not modified")
	}
	return false
}
