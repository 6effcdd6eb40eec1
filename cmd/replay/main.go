package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/backtest"
	"github.com/Alias1177/CardPredictor/internal/config"
)

// report is written to stdout as JSON
type report struct {
	Settings   config.Settings             `json:"settings"`
	Results    *backtest.Results           `json:"results"`
	MonteCarlo *backtest.MonteCarloResults `json:"monte_carlo,omitempty"`
}

func main() {
	cfg, err := config.LoadReplay()
	if err != nil {
		setupLogging("info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel)

	// A file argument takes precedence over REPLAY_FILE
	if len(os.Args) > 1 {
		cfg.File = os.Args[1]
	}
	if cfg.File == "" {
		log.Fatal().Msg("Usage: replay <history.jsonl> (or set REPLAY_FILE)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}
}

func run(ctx context.Context, cfg *config.ReplayConfig) error {
	f, err := os.Open(cfg.File)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	lines, err := backtest.ReadJSONL(f)
	if err != nil {
		return err
	}
	log.Info().Str("file", cfg.File).Int("lines", len(lines)).Msg("History loaded")

	results, err := backtest.Run(ctx, lines, cfg.Settings)
	if err != nil {
		return err
	}
	log.Info().
		Int("outcomes", results.Outcomes).
		Int("restarts", results.Restarts).
		Int("signals", results.Signals).
		Int("denied", results.Denied).
		Int("predictions", results.Stats.Emitted).
		Float64("winRate", results.WinRate).
		Int("maxConsecutiveLoses", results.MaxConsecutive.Loses).
		Msg("Replay finished")

	out := report{Settings: cfg.Settings, Results: results}
	if cfg.Simulations > 0 {
		out.MonteCarlo = backtest.MonteCarloSimulation(results, cfg.Simulations, cfg.Seed)
		log.Info().
			Int("median", out.MonteCarlo.Median).
			Int("p90", out.MonteCarlo.P90).
			Int("worst", out.MonteCarlo.Worst).
			Float64("atLeastObserved", out.MonteCarlo.AtLeastObserved).
			Msg("Losing streak simulation finished")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
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
