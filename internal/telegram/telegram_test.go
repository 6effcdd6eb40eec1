package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/database"
	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/parser"
	"github.com/Alias1177/CardPredictor/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	admin       = int64(42)
	source      = int64(-1001)
	destination = int64(-2002)
)

type sent struct {
	chat int64
	text string
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sent
	requests []tgbotapi.Chattable
	nextID   int
	sendErr  error
	reqErr   error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	m := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, sent{chat: m.ChatID, text: m.Text})
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID, Chat: &tgbotapi.Chat{ID: m.ChatID}}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sent{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeEngine struct {
	submitted []models.Outcome
	resets    int
	snapshots []engine.ChannelSnapshot
	stats     models.PredictionStats
}

func (f *fakeEngine) Submit(_ context.Context, o models.Outcome) error {
	f.submitted = append(f.submitted, o)
	return nil
}

func (f *fakeEngine) ResetAll(context.Context) error {
	f.resets++
	return nil
}

func (f *fakeEngine) Snapshot(context.Context) ([]engine.ChannelSnapshot, error) {
	return f.snapshots, nil
}

func (f *fakeEngine) Stats(context.Context) (models.PredictionStats, error) {
	return f.stats, nil
}

type fixture struct {
	s         *fakeSender
	eng       *fakeEngine
	settings  *config.Live
	redirects *Redirects
	seq       *parser.Sequencer
	commands  *Commands
	router    *Router
}

func newFixture(t *testing.T, perMinute int) *fixture {
	t.Helper()
	f := &fixture{
		s:         &fakeSender{},
		eng:       &fakeEngine{},
		settings:  config.NewLive(config.DefaultSettings()),
		redirects: NewRedirects(destination, database.NewMemory()),
		seq:       parser.NewSequencer(),
	}
	f.commands = NewCommands(CommandsConfig{
		AdminUserID:       admin,
		SourceChannelID:   source,
		CommandsPerMinute: perMinute,
	}, f.s, f.settings, f.eng, f.redirects, f.seq)
	f.router = NewRouter(source, f.settings, f.eng, f.seq, f.commands)
	return f
}

func command(from, chat int64, text string) *tgbotapi.Message {
	n := len(text)
	for i, r := range text {
		if r == ' ' {
			n = i
			break
		}
	}
	chatType := "group"
	if chat > 0 {
		chatType = "private"
	}
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from},
		Chat:     &tgbotapi.Chat{ID: chat, Type: chatType},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}
}

func post(chat int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chat, Type: "channel"}, Text: text}
}

func TestCommands_Unauthorized(t *testing.T) {
	f := newFixture(t, 30)
	f.commands.Handle(context.Background(), command(7, 7, "/reset"))

	assert.Equal(t, msgUnauthorized, f.s.last().text)
	assert.Zero(t, f.eng.resets)
}

func TestCommands_NoAdminConfigured(t *testing.T) {
	f := newFixture(t, 30)
	f.commands.cfg.AdminUserID = 0
	f.commands.Handle(context.Background(), command(0, 5, "/status"))

	assert.Equal(t, msgUnauthorized, f.s.last().text)
}

func TestCommands_Cooldown(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     int
		contains string
	}{
		{name: "show current", text: "/cooldown", want: 30, contains: "30 secondes"},
		{name: "update", text: "/cooldown 120", want: 120, contains: "30s → 120s"},
		{name: "below range", text: "/cooldown 10", want: 30, contains: "Délai invalide"},
		{name: "above range", text: "/cooldown 601", want: 30, contains: "Délai invalide"},
		{name: "not a number", text: "/cooldown abc", want: 30, contains: msgNumberInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 30)
			f.commands.Handle(context.Background(), command(admin, admin, tt.text))

			assert.Equal(t, tt.want, f.settings.Get().CooldownSeconds)
			assert.Contains(t, f.s.last().text, tt.contains)
		})
	}
}

func TestCommands_Threshold(t *testing.T) {
	f := newFixture(t, 30)
	f.commands.Handle(context.Background(), command(admin, admin, "/threshold 4"))
	assert.Equal(t, 4, f.settings.Get().MirrorThreshold)

	// larger than the history window
	f.commands.Handle(context.Background(), command(admin, admin, "/threshold 50"))
	assert.Equal(t, 4, f.settings.Get().MirrorThreshold)
	assert.Contains(t, f.s.last().text, "❌")
}

func TestCommands_Redirect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	f.commands.Handle(ctx, command(admin, admin, "/redirect -1001 -3003"))
	assert.Equal(t, int64(-3003), f.redirects.Target(source))

	f.commands.Handle(ctx, command(admin, admin, "/redirect -1001"))
	assert.Equal(t, msgRedirectUsage, f.s.last().text)

	f.commands.Handle(ctx, command(admin, admin, "/redirect a b"))
	assert.Contains(t, f.s.last().text, "nombres")

	f.commands.Handle(ctx, command(admin, admin, "/redirect clear"))
	assert.Equal(t, msgRedirectClear, f.s.last().text)
	assert.Equal(t, destination, f.redirects.Target(source))

	f.commands.Handle(ctx, command(admin, -4004, "/redi"))
	assert.Equal(t, int64(-4004), f.redirects.Target(source))
	assert.Equal(t, sent{chat: -4004, text: msgRediDone}, f.s.last())
}

func TestCommands_Announce(t *testing.T) {
	f := newFixture(t, 30)
	f.commands.Handle(context.Background(), command(admin, admin, "/announce Pause de 10 minutes"))

	require.Len(t, f.s.sent, 2)
	assert.Equal(t, destination, f.s.sent[0].chat)
	assert.Contains(t, f.s.sent[0].text, "Pause de 10 minutes")
	assert.Equal(t, msgAnnounceSent, f.s.sent[1].text)

	f.commands.Handle(context.Background(), command(admin, admin, "/announce"))
	assert.Equal(t, msgAnnounceUsage, f.s.last().text)
}

func TestCommands_Reset(t *testing.T) {
	f := newFixture(t, 30)
	require.True(t, f.seq.Accept(source, 100))

	f.commands.Handle(context.Background(), command(admin, admin, "/reset"))

	assert.Equal(t, 1, f.eng.resets)
	assert.Zero(t, f.seq.Last(source))
	assert.Equal(t, msgResetDone, f.s.last().text)
}

func TestCommands_Status(t *testing.T) {
	f := newFixture(t, 30)
	f.eng.snapshots = []engine.ChannelSnapshot{{
		Channel:        source,
		WindowSize:     3,
		WindowCapacity: 20,
		Open:           &models.Prediction{ID: 744, Symbol: models.Club, Status: models.StatusPending},
	}}
	f.eng.stats = models.PredictionStats{Emitted: 4, Verified0: 2, Verified1: 1, Failed: 1}

	f.commands.Handle(context.Background(), command(admin, admin, "/status"))

	out := f.s.last().text
	assert.Contains(t, out, "Historique : 3/20")
	assert.Contains(t, out, "jeu 744 ♣️ ⏳")
	assert.Contains(t, out, "Réussite : 75.0%")
}

func TestCommands_RateLimited(t *testing.T) {
	f := newFixture(t, 2)
	for i := 0; i < 3; i++ {
		f.commands.Handle(context.Background(), command(admin, admin, "/help"))
	}
	require.Len(t, f.s.sent, 3)
	assert.Equal(t, helpMessage, f.s.sent[1].text)
	assert.Equal(t, msgRateLimited, f.s.sent[2].text)
}

func TestCommands_Unknown(t *testing.T) {
	f := newFixture(t, 30)
	f.commands.Handle(context.Background(), command(admin, admin, "/foo"))
	assert.Equal(t, msgUnknown, f.s.last().text)
}

func TestRouter_Results(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	f.router.HandleUpdate(ctx, tgbotapi.Update{ChannelPost: post(source, "#N741 ✅ (K♥️5♥️)")})
	// duplicate
	f.router.HandleUpdate(ctx, tgbotapi.Update{EditedChannelPost: post(source, "#N741 ✅ (K♥️5♥️)")})
	// another channel
	f.router.HandleUpdate(ctx, tgbotapi.Update{ChannelPost: post(-9, "#N742 (Q♥️)")})
	// excluded
	f.router.HandleUpdate(ctx, tgbotapi.Update{ChannelPost: post(source, "#N742 #R (Q♥️)")})
	// still playing, then finished through an edit
	f.router.HandleUpdate(ctx, tgbotapi.Update{ChannelPost: post(source, "#N743 ⏰ (J♠️)")})
	f.router.HandleUpdate(ctx, tgbotapi.Update{EditedChannelPost: post(source, "#N743 ✅ (J♠️)")})

	require.Len(t, f.eng.submitted, 2)
	assert.Equal(t, 741, f.eng.submitted[0].ID)
	assert.Equal(t, models.Heart, f.eng.submitted[0].Symbol)
	assert.Equal(t, source, f.eng.submitted[0].Channel)
	assert.Equal(t, 743, f.eng.submitted[1].ID)
	assert.Equal(t, models.Spade, f.eng.submitted[1].Symbol)
}

func TestRouter_NumberingRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)
	// last game counted before the bot restarted
	f.seq.Seed(source, 1440)

	f.router.HandleUpdate(ctx, tgbotapi.Update{EditedChannelPost: post(source, "#N1440 ✅ (K♥️5♥️)")})
	f.router.HandleUpdate(ctx, tgbotapi.Update{ChannelPost: post(source, "#N1 ✅ (J♠️)")})
	f.router.HandleUpdate(ctx, tgbotapi.Update{ChannelPost: post(source, "#N2 ✅ (8♦️)")})

	require.Len(t, f.eng.submitted, 2)
	assert.Equal(t, 1, f.eng.submitted[0].ID)
	assert.Equal(t, 2, f.eng.submitted[1].ID)
	assert.Equal(t, 2, f.seq.Last(source))
}

func TestRouter_SourceGroupAndCaption(t *testing.T) {
	f := newFixture(t, 30)
	msg := &tgbotapi.Message{
		Chat:       &tgbotapi.Chat{ID: -77, Type: "supergroup"},
		SenderChat: &tgbotapi.Chat{ID: source},
		Caption:    "#N12 (8♦️)",
	}
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})

	require.Len(t, f.eng.submitted, 1)
	assert.Equal(t, models.Diamond, f.eng.submitted[0].Symbol)
}

func TestRouter_Messages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	f.router.HandleUpdate(ctx, tgbotapi.Update{Message: command(admin, admin, "/start")})
	assert.Equal(t, welcomeMessage, f.s.last().text)

	f.router.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 9},
		Chat: &tgbotapi.Chat{ID: 9, Type: "private"},
		Text: "bonjour",
	}})
	assert.Equal(t, sent{chat: 9, text: msgPrivateHint}, f.s.last())

	f.router.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:           &tgbotapi.Chat{ID: -55, Type: "group"},
		NewChatMembers: []tgbotapi.User{{ID: 1, IsBot: true}},
	}})
	assert.Equal(t, sent{chat: -55, text: greetingMessage}, f.s.last())
	assert.Empty(t, f.eng.submitted)
}

func TestMessenger(t *testing.T) {
	ctx := context.Background()
	s := &fakeSender{}
	m := NewMessenger(s)

	ref, err := m.Emit(ctx, models.EmitMessage{Channel: destination, PredictionID: 744, Text: "🔵744🔵:♣️statut :⏳"})
	require.NoError(t, err)
	assert.Equal(t, models.MessageRef{ChatID: destination, MessageID: 1}, ref)

	intent := models.EditIntent{MessageRef: ref, PredictionID: 744, Text: "🔵744🔵:♣️statut :✅0️⃣"}
	require.NoError(t, m.Edit(ctx, intent))
	require.Len(t, s.requests, 1)
	edit := s.requests[0].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, ref.MessageID, edit.MessageID)
	assert.Equal(t, intent.Text, edit.Text)

	s.reqErr = &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}
	assert.NoError(t, m.Edit(ctx, intent))

	s.reqErr = &tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"}
	assert.Error(t, m.Edit(ctx, intent))

	s.sendErr = errors.New("network down")
	_, err = m.Emit(ctx, models.EmitMessage{Channel: destination, PredictionID: 745})
	assert.Error(t, err)
}

type fakePoller struct {
	ch      chan tgbotapi.Update
	stopped bool
}

func (p *fakePoller) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return p.ch }
func (p *fakePoller) StopReceivingUpdates() { p.stopped = true }

type countingHandler struct{ n int }

func (h *countingHandler) HandleUpdate(context.Context, tgbotapi.Update) { h.n++ }

func TestPoll(t *testing.T) {
	p := &fakePoller{ch: make(chan tgbotapi.Update, 2)}
	h := &countingHandler{}
	p.ch <- tgbotapi.Update{UpdateID: 1}
	p.ch <- tgbotapi.Update{UpdateID: 2}
	close(p.ch)

	require.NoError(t, Poll(context.Background(), p, h))
	assert.Equal(t, 2, h.n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p = &fakePoller{ch: make(chan tgbotapi.Update)}
	require.NoError(t, Poll(ctx, p, h))
	assert.True(t, p.stopped)
}

func TestWebhook(t *testing.T) {
	s := &fakeSender{}
	require.NoError(t, SetWebhook(s, "https://bot.example.com/webhook"))
	require.NoError(t, DeleteWebhook(s))
	require.Len(t, s.requests, 2)

	wh := s.requests[0].(tgbotapi.WebhookConfig)
	assert.Equal(t, "bot.example.com", wh.URL.Host)
	assert.Equal(t, allowedUpdates, wh.AllowedUpdates)

	s.reqErr = errors.New("unauthorized")
	assert.Error(t, SetWebhook(s, "https://bot.example.com/webhook"))
}
