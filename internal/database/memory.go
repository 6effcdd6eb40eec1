package database

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Alias1177/CardPredictor/models"
)

type predictionKey struct {
	channel int64
	id      int
}

// Memory is an in-process models.Store. State is lost on restart.
type Memory struct {
	mu          sync.RWMutex
	predictions map[predictionKey]models.Prediction
	cooldowns   map[int64]time.Time
	redirects   map[int64]int64
}

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		predictions: make(map[predictionKey]models.Prediction),
		cooldowns:   make(map[int64]time.Time),
		redirects:   make(map[int64]int64),
	}
}

func (m *Memory) SavePrediction(_ context.Context, p models.Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := predictionKey{p.Channel, p.ID}
	if old, ok := m.predictions[k]; ok && p.MessageRef.IsZero() {
		p.MessageRef = old.MessageRef
	}
	m.predictions[k] = p
	return nil
}

func (m *Memory) OpenPredictions(_ context.Context) ([]models.Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Prediction
	for _, p := range m.predictions {
		if !p.Status.Terminal() {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.Prediction) int {
		if a.Channel != b.Channel {
			if a.Channel < b.Channel {
				return -1
			}
			return 1
		}
		return a.ID - b.ID
	})
	return out, nil
}

func (m *Memory) Stats(_ context.Context, since time.Time) (models.PredictionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stats models.PredictionStats
	for _, p := range m.predictions {
		if !p.CreatedAt.Before(since) {
			stats.Add(p.Status)
		}
	}
	return stats, nil
}

func (m *Memory) SaveCooldown(_ context.Context, channel int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[channel] = at
	return nil
}

func (m *Memory) Cooldowns(_ context.Context) (map[int64]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]time.Time, len(m.cooldowns))
	for k, v := range m.cooldowns {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) ResetChannel(_ context.Context, channel int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cooldowns, channel)
	return nil
}

func (m *Memory) SaveRedirect(_ context.Context, source, target int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects[source] = target
	return nil
}

func (m *Memory) Redirects(_ context.Context) (map[int64]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]int64, len(m.redirects))
	for k, v := range m.redirects {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) ClearRedirects(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.redirects)
	return nil
}

func (m *Memory) Close() error { return nil }
