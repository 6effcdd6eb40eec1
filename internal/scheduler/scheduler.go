package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/models"
)

// Scheduler runs the periodic prediction report
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
}

// New creates a scheduler firing on the standard cron spec, in UTC
func New(spec string) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", spec, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// SetReportFunction sets the job run on every tick
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// Start registers the report job and starts the cron loop
func (s *Scheduler) Start() error {
	if s.reportFunc == nil {
		log.Warn().Msg("Report function not set, scheduler will not generate reports")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		log.Info().Str("schedule", s.spec).Msg("Generating prediction report")
		if err := s.reportFunc(s.ctx); err != nil {
			log.Error().Err(err).Msg("Prediction report failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule report: %w", err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.spec).Msg("Scheduler started")
	return nil
}

// Stop waits for a running report and stops the loop
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether a job is registered
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}

// StatsSource returns prediction statistics since a point in time
type StatsSource interface {
	Stats(ctx context.Context, since time.Time) (models.PredictionStats, error)
}

// Notifier sends a plain text message to a chat
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// DailyReport returns a job that sends the statistics of the last period to chatID
func DailyReport(stats StatsSource, n Notifier, chatID int64, period time.Duration, now func() time.Time) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		since := now().Add(-period)
		st, err := stats.Stats(ctx, since)
		if err != nil {
			return fmt.Errorf("load stats: %w", err)
		}
		return n.Notify(ctx, chatID, FormatReport(st, since))
	}
}

// FormatReport renders statistics as the admin report
func FormatReport(st models.PredictionStats, since time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Rapport depuis le %s UTC\n\n", since.UTC().Format("02/01/2006 15:04"))
	if st.Emitted == 0 {
		b.WriteString("Aucune prédiction sur la période.")
		return b.String()
	}
	fmt.Fprintf(&b, "🔮 Prédictions : %d\n", st.Emitted)
	fmt.Fprintf(&b, "%s %d\n", models.StatusVerified0.Glyph(), st.Verified0)
	fmt.Fprintf(&b, "%s %d\n", models.StatusVerified1.Glyph(), st.Verified1)
	fmt.Fprintf(&b, "%s %d\n", models.StatusFailed.Glyph(), st.Failed)
	fmt.Fprintf(&b, "%s %d\n", models.StatusPending.Glyph(), st.Pending)
	fmt.Fprintf(&b, "\n🏆 Réussite : %.1f%%", st.WinRate())
	return b.String()
}
