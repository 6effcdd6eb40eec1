package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Scope selects where the mirror rule looks for repeated symbols
type Scope string

const (
	ScopeWindow  Scope = "window"  // consecutive outcomes of the history window
	ScopeMessage Scope = "message" // suit occurrences inside a single message
)

// Mode selects which symbol is predicted once the rule fires
type Mode string

const (
	ModeMirror Mode = "mirror" // mirrored suit (♥↔♣, ♠↔♦)
	ModeRepeat Mode = "repeat" // the repeated symbol itself
)

// Limits accepted for settings
const (
	MinCooldownSeconds = 0
	MaxCooldownSeconds = 3600
	MaxWindowSize      = 1000
)

// Settings are the prediction parameters. They may be replaced at runtime
// between two outcome evaluations.
type Settings struct {
	CooldownSeconds   int      `env:"COOLDOWN_SECONDS" envDefault:"30" json:"cooldown_seconds"`
	MirrorThreshold   int      `env:"MIRROR_THRESHOLD" envDefault:"3" json:"mirror_threshold"`
	HistoryWindowSize int      `env:"HISTORY_WINDOW_SIZE" envDefault:"20" json:"history_window_size"`
	ExclusionTokens   []string `env:"EXCLUSION_TOKENS" envDefault:"#R,#X,🔰" envSeparator:"," json:"exclusion_tokens"`
	MirrorScope       Scope    `env:"MIRROR_SCOPE" envDefault:"window" json:"mirror_scope"`
	PredictionMode    Mode     `env:"PREDICTION_MODE" envDefault:"mirror" json:"prediction_mode"`
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		CooldownSeconds:   30,
		MirrorThreshold:   3,
		HistoryWindowSize: 20,
		ExclusionTokens:   []string{"#R", "#X", "🔰"},
		MirrorScope:       ScopeWindow,
		PredictionMode:    ModeMirror,
	}
}

// Cooldown returns the cooldown as a duration
func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// Clone returns a deep copy
func (s Settings) Clone() Settings {
	c := s
	c.ExclusionTokens = append([]string(nil), s.ExclusionTokens...)
	return c
}

// Validate rejects out of range values. The prediction core assumes validated settings.
func (s Settings) Validate() error {
	var errs []error
	if s.CooldownSeconds < MinCooldownSeconds || s.CooldownSeconds > MaxCooldownSeconds {
		errs = append(errs, fmt.Errorf("cooldown must be within [%d, %d] seconds, got %d",
			MinCooldownSeconds, MaxCooldownSeconds, s.CooldownSeconds))
	}
	if s.MirrorThreshold < 1 {
		errs = append(errs, fmt.Errorf("mirror threshold must be positive, got %d", s.MirrorThreshold))
	}
	if s.HistoryWindowSize < s.MirrorThreshold || s.HistoryWindowSize > MaxWindowSize {
		errs = append(errs, fmt.Errorf("history window size must be within [threshold=%d, %d], got %d",
			s.MirrorThreshold, MaxWindowSize, s.HistoryWindowSize))
	}
	for _, tok := range s.ExclusionTokens {
		if strings.TrimSpace(tok) == "" {
			errs = append(errs, errors.New("exclusion tokens must not be blank"))
			break
		}
	}
	switch s.MirrorScope {
	case ScopeWindow, ScopeMessage:
	default:
		errs = append(errs, fmt.Errorf("unknown mirror scope %q", s.MirrorScope))
	}
	switch s.PredictionMode {
	case ModeMirror, ModeRepeat:
	default:
		errs = append(errs, fmt.Errorf("unknown prediction mode %q", s.PredictionMode))
	}
	return errors.Join(errs...)
}

// Config holds all application configuration
type Config struct {
	TelegramBotToken     string `env:"TELEGRAM_BOT_TOKEN,required"`
	SourceChannelID      int64  `env:"SOURCE_CHANNEL_ID,required"`
	DestinationChannelID int64  `env:"DESTINATION_CHANNEL_ID,required"`
	AdminUserID          int64  `env:"ADMIN_USER_ID"`

	// Transport
	WebhookURL        string `env:"WEBHOOK_URL"`
	Port              int    `env:"PORT" envDefault:"5000"`
	RequestTimeout    int    `env:"REQUEST_TIMEOUT" envDefault:"10"` // seconds
	TelegramRPS       int    `env:"TELEGRAM_RPS" envDefault:"20"`
	CommandsPerMinute int    `env:"COMMANDS_PER_MINUTE" envDefault:"30"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ReportCron string `env:"REPORT_CRON" envDefault:"0 21 * * *"`

	// Storage: memory, postgres or redis
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"memory"`
	DBHost        string `env:"DB_HOST" envDefault:"localhost"`
	DBPort        string `env:"DB_PORT" envDefault:"5432"`
	DBUser        string `env:"DB_USER"`
	DBPassword    string `env:"DB_PASSWORD"`
	DBName        string `env:"DB_NAME"`
	DBSSLMode     string `env:"DB_SSLMODE" envDefault:"disable"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	Settings Settings
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the transport and storage values and the prediction settings
func (c *Config) Validate() error {
	var errs []error
	if len(strings.Split(c.TelegramBotToken, ":")) != 2 {
		errs = append(errs, errors.New("invalid bot token format"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.WebhookURL != "" && !strings.HasPrefix(c.WebhookURL, "https://") {
		errs = append(errs, errors.New("webhook url must use https"))
	}
	if c.TelegramRPS <= 0 {
		errs = append(errs, fmt.Errorf("telegram rps must be positive, got %d", c.TelegramRPS))
	}
	switch c.StoreDriver {
	case "memory", "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	if err := c.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WebhookEndpoint returns the full webhook URL registered with Telegram
func (c *Config) WebhookEndpoint() string {
	if c.WebhookURL == "" {
		return ""
	}
	return strings.TrimRight(c.WebhookURL, "/") + "/webhook"
}

// ReplayConfig configures the replay command
type ReplayConfig struct {
	File        string `env:"REPLAY_FILE"`
	Simulations int    `env:"MONTE_CARLO_SIMULATIONS" envDefault:"1000"`
	Seed        int64  `env:"MONTE_CARLO_SEED" envDefault:"1"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Settings Settings
}

// LoadReplay reads the replay configuration from the environment
func LoadReplay() (*ReplayConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}
	cfg := &ReplayConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Simulations < 0 {
		return nil, fmt.Errorf("simulations must not be negative, got %d", cfg.Simulations)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}
