package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/database"
	httpclient "github.com/Alias1177/CardPredictor/internal/platform/http"
	"github.com/Alias1177/CardPredictor/internal/telegram"
	"github.com/Alias1177/CardPredictor/models"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		log.Fatal().Msg("Usage: broadcast <message>")
	}
	text := "📢 ANNONCE 📢\n\n" + strings.Join(os.Args[1:], " ")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	store, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	ctx := context.Background()
	chats, err := destinations(ctx, cfg.DestinationChannelID, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load destinations")
	}
	log.Info().Int("chats", len(chats)).Msg("Found prediction destinations")

	client := httpclient.NewClient(httpclient.ClientOptions{
		Timeout:        time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.TelegramRPS,
	})
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	messenger := telegram.NewMessenger(bot)

	successCount, errorCount := 0, 0
	for i, chat := range chats {
		if err := messenger.Notify(ctx, chat, text); err != nil {
			log.Error().Err(err).Int64("chat", chat).Msg("Failed to send announcement")
			errorCount++
			continue
		}
		log.Info().Int64("chat", chat).Msgf("✅ Announcement sent [%d/%d]", i+1, len(chats))
		successCount++
	}

	log.Info().
		Int("total", len(chats)).
		Int("sent", successCount).
		Int("failed", errorCount).
		Msg("Broadcast completed")
	fmt.Printf("\n🎯 Broadcast completed: %d sent, %d failed out of %d chats\n", successCount, errorCount, len(chats))
}

// destinations returns the default chat and every redirect target, once each
func destinations(ctx context.Context, def int64, store models.Store) ([]int64, error) {
	redirects, err := store.Redirects(ctx)
	if err != nil {
		return nil, err
	}
	chats := []int64{def}
	for _, target := range redirects {
		if !slices.Contains(chats, target) {
			chats = append(chats, target)
		}
	}
	slices.Sort(chats)
	return chats, nil
}
