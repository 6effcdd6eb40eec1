package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/database"
	"github.com/Alias1177/CardPredictor/internal/delivery"
	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/parser"
	httpclient "github.com/Alias1177/CardPredictor/internal/platform/http"
	"github.com/Alias1177/CardPredictor/internal/scheduler"
	"github.com/Alias1177/CardPredictor/internal/server"
	"github.com/Alias1177/CardPredictor/internal/telegram"
)

const drainTimeout = 15 * time.Second

func main() {
	setupLogging("info")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped with error")
	}
	log.Info().Msg("Bot stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	printConfig(cfg)

	store, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	redirects := telegram.NewRedirects(cfg.DestinationChannelID, store)
	if err := redirects.Load(ctx); err != nil {
		return err
	}

	client := httpclient.NewClient(httpclient.ClientOptions{
		Timeout:        time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.TelegramRPS,
	})
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}
	log.Info().Str("username", bot.Self.UserName).Msg("Authorized on Telegram")

	settings := config.NewLive(cfg.Settings)
	messenger := telegram.NewMessenger(bot)

	dispatcher := delivery.New(messenger, store, nil)
	coordinator := engine.New(settings, dispatcher, engine.Options{Destination: redirects.Target})
	dispatcher.SetRefAttacher(coordinator)

	lastSeen, err := coordinator.Recover(ctx, store)
	if err != nil {
		coordinator.Close()
		return fmt.Errorf("recover state: %w", err)
	}
	log.Info().Int("channels", len(lastSeen)).Msg("Persisted state restored")

	// results counted before the restart are not counted again when redelivered
	seq := parser.NewSequencer()
	for channel, id := range lastSeen {
		if id > 0 {
			seq.Seed(channel, id)
		}
	}
	commands := telegram.NewCommands(telegram.CommandsConfig{
		AdminUserID:       cfg.AdminUserID,
		SourceChannelID:   cfg.SourceChannelID,
		BotID:             bot.Self.ID,
		CommandsPerMinute: cfg.CommandsPerMinute,
	}, bot, settings, coordinator, redirects, seq)
	router := telegram.NewRouter(cfg.SourceChannelID, settings, coordinator, seq, commands)

	if cfg.AdminUserID != 0 {
		sched, err := scheduler.New(cfg.ReportCron)
		if err != nil {
			coordinator.Close()
			return err
		}
		sched.SetReportFunction(scheduler.DailyReport(store, messenger, cfg.AdminUserID, 24*time.Hour, time.Now))
		if err := sched.Start(); err != nil {
			coordinator.Close()
			return err
		}
		defer sched.Stop()
	}

	webhook := cfg.WebhookEndpoint()
	opts := server.Options{
		Addr:      fmt.Sprintf(":%d", cfg.Port),
		Engine:    coordinator,
		Settings:  settings,
		Redirects: redirects.All,
		Pending:   dispatcher.Pending,
	}
	if webhook != "" {
		opts.Updates = router
	}
	srv := server.New(opts)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	if webhook != "" {
		if err := telegram.SetWebhook(bot, webhook); err != nil {
			stop()
			return shutdown(g, coordinator, dispatcher, err)
		}
	} else {
		if err := telegram.DeleteWebhook(bot); err != nil {
			log.Warn().Err(err).Msg("Failed to delete webhook")
		}
		g.Go(func() error { return telegram.Poll(gctx, bot, router) })
	}

	return shutdown(g, coordinator, dispatcher, nil)
}

// shutdown waits for the group, then stops the engine and delivers what is left
func shutdown(g *errgroup.Group, coordinator *engine.Coordinator, dispatcher *delivery.Dispatcher, cause error) error {
	err := g.Wait()

	coordinator.Close()
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	dispatcher.Drain(drainCtx)
	// last chance for edits still waiting on their backoff
	dispatcher.Retry(drainCtx, true)
	if n := dispatcher.Pending(); n > 0 {
		log.Warn().Int("pending", n).Msg("Undelivered effects left at shutdown")
	}

	return errors.Join(cause, err)
}

// setupSignalHandling cancels ctx on SIGINT or SIGTERM
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, stopping...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// printConfig outputs the current configuration
func printConfig(cfg *config.Config) {
	log.Info().
		Int64("SourceChannelID", cfg.SourceChannelID).
		Int64("DestinationChannelID", cfg.DestinationChannelID).
		Bool("AdminConfigured", cfg.AdminUserID != 0).
		Bool("Webhook", cfg.WebhookURL != "").
		Int("Port", cfg.Port).
		Str("StoreDriver", cfg.StoreDriver).
		Int("CooldownSeconds", cfg.Settings.CooldownSeconds).
		Int("MirrorThreshold", cfg.Settings.MirrorThreshold).
		Int("HistoryWindowSize", cfg.Settings.HistoryWindowSize).
		Str("MirrorScope", string(cfg.Settings.MirrorScope)).
		Str("PredictionMode", string(cfg.Settings.PredictionMode)).
		Strs("ExclusionTokens", cfg.Settings.ExclusionTokens).
		Msg("Configuration loaded")
}
