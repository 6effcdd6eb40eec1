package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/metrics"
	"github.com/Alias1177/CardPredictor/internal/parser"
)

// Router turns incoming updates into outcomes for the engine and commands
// for the command handler
type Router struct {
	source   int64
	settings *config.Live
	engine   Engine
	seq      *parser.Sequencer
	commands *Commands
	now      func() time.Time
	log      zerolog.Logger
}

// NewRouter creates a router accepting results from the source channel only
func NewRouter(source int64, settings *config.Live, eng Engine, seq *parser.Sequencer, commands *Commands) *Router {
	return &Router{
		source:   source,
		settings: settings,
		engine:   eng,
		seq:      seq,
		commands: commands,
		now:      time.Now,
		log:      log.With().Str("component", "router").Logger(),
	}
}

// HandleUpdate processes one update. Results may arrive as new or edited posts,
// a result is final only once the in-progress markers are gone.
func (r *Router) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.ChannelPost != nil:
		metrics.UpdatesReceived.WithLabelValues("channel_post").Inc()
		r.handleMessage(ctx, u.ChannelPost)
	case u.EditedChannelPost != nil:
		metrics.UpdatesReceived.WithLabelValues("edited_channel_post").Inc()
		r.handleResult(ctx, u.EditedChannelPost)
	case u.Message != nil:
		metrics.UpdatesReceived.WithLabelValues("message").Inc()
		r.handleMessage(ctx, u.Message)
	case u.EditedMessage != nil:
		metrics.UpdatesReceived.WithLabelValues("edited_message").Inc()
		r.handleResult(ctx, u.EditedMessage)
	default:
		metrics.UpdatesReceived.WithLabelValues("other").Inc()
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	switch {
	case len(msg.NewChatMembers) > 0:
		r.commands.Greet(msg)
	case msg.IsCommand():
		r.commands.Handle(ctx, msg)
	case r.fromSource(msg):
		r.handleResult(ctx, msg)
	case msg.Chat.IsPrivate():
		r.commands.Hint(msg.Chat.ID)
	}
}

func (r *Router) handleResult(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || !r.fromSource(msg) {
		return
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}

	s := r.settings.Get()
	o, err := parser.New(s.ExclusionTokens).Parse(text, r.source, r.now())
	if err != nil {
		reason := parser.Reason(err)
		metrics.ParseRejected.WithLabelValues(reason).Inc()
		r.log.Debug().Str("reason", reason).Int("message", msg.MessageID).Msg("Result skipped")
		return
	}
	last := r.seq.Last(o.Channel)
	switch r.seq.Observe(o.Channel, o.ID) {
	case parser.Duplicate:
		metrics.OutcomesDropped.Inc()
		r.log.Debug().Int("game", o.ID).Int("last", last).Msg("Duplicate or out-of-order result dropped")
		return
	case parser.Restarted:
		r.log.Info().Int("game", o.ID).Int("last", last).Msg("Game numbering restarted")
	}
	if err := r.engine.Submit(ctx, o); err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error().Err(err).Int("game", o.ID).Msg("Failed to submit outcome")
		}
		return
	}
	r.log.Debug().Int("game", o.ID).Str("symbol", string(o.Symbol)).Msg("Outcome submitted")
}

func (r *Router) fromSource(msg *tgbotapi.Message) bool {
	if msg.Chat.ID == r.source {
		return true
	}
	return msg.SenderChat != nil && msg.SenderChat.ID == r.source
}
