package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Alias1177/CardPredictor/models"
)

// DB is the PostgreSQL implementation of models.Store
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new database connection
func New(params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			channel BIGINT NOT NULL,
			id INTEGER NOT NULL,
			trigger_id INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			matched TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_observed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP,
			chat_id BIGINT NOT NULL DEFAULT 0,
			message_id INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (channel, id)
		)`,
		`ALTER TABLE predictions ADD COLUMN IF NOT EXISTS last_observed INTEGER NOT NULL DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS predictions_status_idx ON predictions (status)`,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			channel BIGINT PRIMARY KEY,
			last_emission TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS redirects (
			source BIGINT PRIMARY KEY,
			target BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SavePrediction upserts the current state of a prediction
func (db *DB) SavePrediction(ctx context.Context, p models.Prediction) error {
	var resolved sql.NullTime
	if !p.ResolvedAt.IsZero() {
		resolved = sql.NullTime{Time: p.ResolvedAt, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO predictions (
			channel, id, trigger_id, symbol, matched, status, attempts, last_observed, created_at, resolved_at, chat_id, message_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (channel, id)
		DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			last_observed = EXCLUDED.last_observed,
			resolved_at = EXCLUDED.resolved_at,
			chat_id = CASE WHEN EXCLUDED.message_id <> 0 THEN EXCLUDED.chat_id ELSE predictions.chat_id END,
			message_id = CASE WHEN EXCLUDED.message_id <> 0 THEN EXCLUDED.message_id ELSE predictions.message_id END
	`,
		p.Channel, p.ID, p.TriggerID, string(p.Symbol), string(p.Matched), string(p.Status), p.AttemptsObserved, p.LastObservedID,
		p.CreatedAt, resolved, p.MessageRef.ChatID, p.MessageRef.MessageID)
	if err != nil {
		return fmt.Errorf("save prediction %d: %w", p.ID, err)
	}
	return nil
}

// OpenPredictions returns every prediction still waiting for verification
func (db *DB) OpenPredictions(ctx context.Context) ([]models.Prediction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT channel, id, trigger_id, symbol, matched, status, attempts, last_observed, created_at, resolved_at, chat_id, message_id
		FROM predictions
		WHERE status = $1
		ORDER BY channel, id
	`, string(models.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("query open predictions: %w", err)
	}
	defer rows.Close()

	var out []models.Prediction
	for rows.Next() {
		var (
			p                       models.Prediction
			symbol, matched, status string
			resolved                sql.NullTime
		)
		if err := rows.Scan(
			&p.Channel, &p.ID, &p.TriggerID, &symbol, &matched, &status, &p.AttemptsObserved, &p.LastObservedID,
			&p.CreatedAt, &resolved, &p.MessageRef.ChatID, &p.MessageRef.MessageID,
		); err != nil {
			return nil, err
		}
		p.Symbol = models.Symbol(symbol)
		p.Matched = models.Symbol(matched)
		p.Status = models.Status(status)
		if resolved.Valid {
			p.ResolvedAt = resolved.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Stats counts the predictions created since the given time by status
func (db *DB) Stats(ctx context.Context, since time.Time) (models.PredictionStats, error) {
	var stats models.PredictionStats
	rows, err := db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM predictions
		WHERE created_at >= $1
		GROUP BY status
	`, since)
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		for i := 0; i < n; i++ {
			stats.Add(models.Status(status))
		}
	}
	return stats, rows.Err()
}

// SaveCooldown records the last emission of a channel
func (db *DB) SaveCooldown(ctx context.Context, channel int64, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cooldowns (channel, last_emission) VALUES ($1, $2)
		ON CONFLICT (channel) DO UPDATE SET last_emission = EXCLUDED.last_emission
	`, channel, at)
	return err
}

// Cooldowns returns the last emission of every channel
func (db *DB) Cooldowns(ctx context.Context) (map[int64]time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT channel, last_emission FROM cooldowns`)
	if err != nil {
		return nil, fmt.Errorf("query cooldowns: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]time.Time)
	for rows.Next() {
		var (
			channel int64
			at      time.Time
		)
		if err := rows.Scan(&channel, &at); err != nil {
			return nil, err
		}
		out[channel] = at
	}
	return out, rows.Err()
}

// ResetChannel forgets the cooldown of a channel
func (db *DB) ResetChannel(ctx context.Context, channel int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM cooldowns WHERE channel = $1`, channel)
	return err
}

// SaveRedirect routes predictions of source to target
func (db *DB) SaveRedirect(ctx context.Context, source, target int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO redirects (source, target) VALUES ($1, $2)
		ON CONFLICT (source) DO UPDATE SET target = EXCLUDED.target
	`, source, target)
	return err
}

// Redirects returns every configured redirect
func (db *DB) Redirects(ctx context.Context) (map[int64]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT source, target FROM redirects`)
	if err != nil {
		return nil, fmt.Errorf("query redirects: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var source, target int64
		if err := rows.Scan(&source, &target); err != nil {
			return nil, err
		}
		out[source] = target
	}
	return out, rows.Err()
}

// ClearRedirects removes every redirect
func (db *DB) ClearRedirects(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DELETE FROM redirects`)
	return err
}
