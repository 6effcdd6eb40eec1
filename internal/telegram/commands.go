package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/parser"
)

// Cooldown range accepted from the /cooldown command
const (
	MinCommandCooldown = 30
	MaxCommandCooldown = 600
)

// CommandsConfig holds the identities the command handler needs
type CommandsConfig struct {
	AdminUserID       int64
	SourceChannelID   int64
	BotID             int64
	CommandsPerMinute int
}

// Commands handles admin commands sent to the bot
type Commands struct {
	cfg       CommandsConfig
	s         sender
	settings  *config.Live
	engine    Engine
	redirects *Redirects
	seq       *parser.Sequencer
	log       zerolog.Logger

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewCommands creates a command handler
func NewCommands(cfg CommandsConfig, s sender, settings *config.Live, eng Engine, redirects *Redirects, seq *parser.Sequencer) *Commands {
	if cfg.CommandsPerMinute <= 0 {
		cfg.CommandsPerMinute = 30
	}
	if cfg.AdminUserID == 0 {
		log.Warn().Msg("ADMIN_USER_ID not set, every command will be refused")
	}
	return &Commands{
		cfg:       cfg,
		s:         s,
		settings:  settings,
		engine:    eng,
		redirects: redirects,
		seq:       seq,
		log:       log.With().Str("component", "commands").Logger(),
		limiters:  make(map[int64]*rate.Limiter),
	}
}

// Handle dispatches one command message
func (c *Commands) Handle(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	if msg.Chat.IsPrivate() && !c.allow(userID) {
		c.reply(chatID, msgRateLimited)
		return
	}
	if !c.authorized(userID) {
		c.log.Warn().Int64("user", userID).Str("command", msg.Command()).Msg("Unauthorized command")
		c.reply(chatID, msgUnauthorized)
		return
	}

	cmd, args := msg.Command(), strings.Fields(msg.CommandArguments())
	c.log.Info().Int64("user", userID).Str("command", cmd).Strs("args", args).Msg("Command received")

	switch cmd {
	case "start":
		c.reply(chatID, welcomeMessage)
	case "help":
		c.reply(chatID, helpMessage)
	case "status":
		c.status(ctx, chatID)
	case "cooldown":
		c.cooldown(chatID, args)
	case "threshold":
		c.threshold(chatID, args)
	case "redirect":
		c.redirect(ctx, chatID, args)
	case "redi":
		if err := c.redirects.Set(ctx, c.cfg.SourceChannelID, chatID); err != nil {
			c.log.Error().Err(err).Msg("Failed to save redirect")
			c.reply(chatID, msgFailed)
			return
		}
		c.reply(chatID, msgRediDone)
	case "announce":
		c.announce(chatID, msg.CommandArguments())
	case "reset":
		c.reset(ctx, chatID)
	default:
		c.reply(chatID, msgUnknown)
	}
}

// Greet welcomes a chat the bot was just added to
func (c *Commands) Greet(msg *tgbotapi.Message) {
	for _, m := range msg.NewChatMembers {
		if m.IsBot && (c.cfg.BotID == 0 || m.ID == c.cfg.BotID) {
			c.reply(msg.Chat.ID, greetingMessage)
			return
		}
	}
}

// Hint answers a plain private message
func (c *Commands) Hint(chatID int64) {
	c.reply(chatID, msgPrivateHint)
}

func (c *Commands) authorized(userID int64) bool {
	return c.cfg.AdminUserID != 0 && userID == c.cfg.AdminUserID
}

// allow applies the per-user command budget
func (c *Commands) allow(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.cfg.CommandsPerMinute)), c.cfg.CommandsPerMinute)
		c.limiters[userID] = l
	}
	return l.Allow()
}

func (c *Commands) status(ctx context.Context, chatID int64) {
	s := c.settings.Get()
	snaps, err := c.engine.Snapshot(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to read engine snapshot")
		c.reply(chatID, msgFailed)
		return
	}
	stats, err := c.engine.Stats(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to read engine stats")
		c.reply(chatID, msgFailed)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 État du système\n\n")
	fmt.Fprintf(&b, "⚙️ Cooldown : %ds | Seuil : %d | Fenêtre : %d\n", s.CooldownSeconds, s.MirrorThreshold, s.HistoryWindowSize)
	fmt.Fprintf(&b, "🔮 Mode : %s | Portée : %s\n", s.PredictionMode, s.MirrorScope)
	fmt.Fprintf(&b, "📍 Source %d → %d\n", c.cfg.SourceChannelID, c.redirects.Target(c.cfg.SourceChannelID))
	for _, snap := range snaps {
		fmt.Fprintf(&b, "\n📡 Canal %d\n", snap.Channel)
		fmt.Fprintf(&b, "• Historique : %d/%d\n", snap.WindowSize, snap.WindowCapacity)
		if snap.CooldownRemaining > 0 {
			fmt.Fprintf(&b, "• Cooldown restant : %s\n", snap.CooldownRemaining.Round(time.Second))
		}
		if snap.Open != nil {
			fmt.Fprintf(&b, "• En cours : jeu %d %s %s\n", snap.Open.ID, snap.Open.Symbol, snap.Open.Status.Glyph())
		}
	}
	fmt.Fprintf(&b, "\n📈 Prédictions : %d | ✅0️⃣ %d | ✅1️⃣ %d | ⭕ %d | ⏳ %d\n",
		stats.Emitted, stats.Verified0, stats.Verified1, stats.Failed, stats.Pending)
	fmt.Fprintf(&b, "🏆 Réussite : %.1f%%", stats.WinRate())
	c.reply(chatID, b.String())
}

func (c *Commands) cooldown(chatID int64, args []string) {
	if len(args) == 0 {
		c.reply(chatID, fmt.Sprintf("⏰ Délai actuel : %d secondes\n\n💡 Usage : /cooldown [secondes]", c.settings.Get().CooldownSeconds))
		return
	}
	seconds, err := strconv.Atoi(args[0])
	if err != nil {
		c.reply(chatID, msgNumberInvalid)
		return
	}
	if seconds < MinCommandCooldown || seconds > MaxCommandCooldown {
		c.reply(chatID, fmt.Sprintf("❌ Délai invalide ! Entre %d et %d secondes.", MinCommandCooldown, MaxCommandCooldown))
		return
	}

	old := c.settings.Get().CooldownSeconds
	if _, err := c.settings.Update(func(s *config.Settings) { s.CooldownSeconds = seconds }); err != nil {
		c.reply(chatID, "❌ "+err.Error())
		return
	}
	c.log.Info().Int("old", old).Int("new", seconds).Msg("Cooldown updated")
	c.reply(chatID, fmt.Sprintf("✅ Cooldown mis à jour : %ds → %ds", old, seconds))
}

func (c *Commands) threshold(chatID int64, args []string) {
	if len(args) == 0 {
		c.reply(chatID, fmt.Sprintf("🔁 Seuil actuel : %d résultats identiques\n\n💡 Usage : /threshold [n]", c.settings.Get().MirrorThreshold))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		c.reply(chatID, msgNumberInvalid)
		return
	}
	s, err := c.settings.Update(func(s *config.Settings) { s.MirrorThreshold = n })
	if err != nil {
		c.reply(chatID, "❌ "+err.Error())
		return
	}
	c.log.Info().Int("threshold", s.MirrorThreshold).Msg("Mirror threshold updated")
	c.reply(chatID, fmt.Sprintf("✅ Seuil mis à jour : %d", s.MirrorThreshold))
}

func (c *Commands) redirect(ctx context.Context, chatID int64, args []string) {
	switch {
	case len(args) == 1 && args[0] == "clear":
		if err := c.redirects.Clear(ctx); err != nil {
			c.log.Error().Err(err).Msg("Failed to clear redirects")
			c.reply(chatID, msgFailed)
			return
		}
		c.reply(chatID, msgRedirectClear)
	case len(args) == 2:
		source, err1 := strconv.ParseInt(args[0], 10, 64)
		target, err2 := strconv.ParseInt(args[1], 10, 64)
		if err1 != nil || err2 != nil {
			c.reply(chatID, "❌ Les IDs doivent être des nombres.")
			return
		}
		if err := c.redirects.Set(ctx, source, target); err != nil {
			c.log.Error().Err(err).Msg("Failed to save redirect")
			c.reply(chatID, msgFailed)
			return
		}
		c.reply(chatID, fmt.Sprintf("✅ Redirection configurée !\n\n📍 %d → %d", source, target))
	default:
		c.reply(chatID, msgRedirectUsage)
	}
}

func (c *Commands) announce(chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		c.reply(chatID, msgAnnounceUsage)
		return
	}
	target := c.redirects.Target(c.cfg.SourceChannelID)
	if _, err := c.s.Send(tgbotapi.NewMessage(target, "📢 ANNONCE 📢\n\n"+text)); err != nil {
		c.log.Error().Err(err).Int64("chat", target).Msg("Failed to send announcement")
		c.reply(chatID, msgFailed)
		return
	}
	c.reply(chatID, msgAnnounceSent)
}

func (c *Commands) reset(ctx context.Context, chatID int64) {
	if err := c.engine.ResetAll(ctx); err != nil {
		c.log.Error().Err(err).Msg("Failed to reset engine")
		c.reply(chatID, msgFailed)
		return
	}
	c.seq.ResetAll()
	c.reply(chatID, msgResetDone)
}

func (c *Commands) reply(chatID int64, text string) {
	if _, err := c.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		c.log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send reply")
	}
}
