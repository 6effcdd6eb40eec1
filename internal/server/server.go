package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/metrics"
	"github.com/Alias1177/CardPredictor/models"
)

// UpdateHandler consumes Telegram updates posted to the webhook
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u tgbotapi.Update)
}

// Engine exposes the prediction state served by /status
type Engine interface {
	Snapshot(ctx context.Context) ([]engine.ChannelSnapshot, error)
	Stats(ctx context.Context) (models.PredictionStats, error)
}

// Options wires the server to the rest of the bot
type Options struct {
	Addr      string
	Updates   UpdateHandler // nil disables /webhook
	Engine    Engine
	Settings  *config.Live
	Redirects func() map[int64]int64
	Pending   func() int // effects waiting for delivery
}

// Server exposes the webhook, health, status and metrics endpoints
type Server struct {
	opts       Options
	httpServer *http.Server
	startTime  time.Time
	log        zerolog.Logger
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is returned by /status
type StatusResponse struct {
	Uptime          string                   `json:"uptime"`
	Settings        config.Settings          `json:"settings"`
	Channels        []engine.ChannelSnapshot `json:"channels"`
	Stats           models.PredictionStats   `json:"stats"`
	WinRate         float64                  `json:"win_rate"`
	Redirects       map[string]int64         `json:"redirects"`
	PendingDelivery int                      `json:"pending_delivery"`
}

// New creates the server
func New(opts Options) *Server {
	s := &Server{
		opts:      opts,
		startTime: time.Now(),
		log:       log.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	if opts.Updates != nil {
		mux.Handle("/webhook", instrument("/webhook", http.HandlerFunc(s.webhookHandler)))
	}
	mux.Handle("/health", instrument("/health", http.HandlerFunc(s.healthHandler)))
	mux.Handle("/status", instrument("/status", http.HandlerFunc(s.statusHandler)))
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the routing handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&update); err != nil {
		s.log.Warn().Err(err).Msg("Invalid webhook payload")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	s.opts.Updates.HandleUpdate(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snaps, err := s.opts.Engine.Snapshot(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read engine snapshot")
		http.Error(w, "Engine unavailable", http.StatusServiceUnavailable)
		return
	}
	stats, err := s.opts.Engine.Stats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read engine stats")
		http.Error(w, "Engine unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := StatusResponse{
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Channels:  snaps,
		Stats:     stats,
		WinRate:   stats.WinRate(),
		Redirects: map[string]int64{},
	}
	if s.opts.Settings != nil {
		resp.Settings = s.opts.Settings.Get()
	}
	if s.opts.Redirects != nil {
		for src, dst := range s.opts.Redirects() {
			resp.Redirects[strconv.FormatInt(src, 10)] = dst
		}
	}
	if s.opts.Pending != nil {
		resp.PendingDelivery = s.opts.Pending()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per endpoint and status
func instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
