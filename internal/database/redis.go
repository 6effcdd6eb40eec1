package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Alias1177/CardPredictor/models"
)

const (
	keyPredictions = "cardpredictor:predictions"
	keyOpen        = "cardpredictor:predictions:open"
	keyCooldowns   = "cardpredictor:cooldowns"
	keyRedirects   = "cardpredictor:redirects"
)

// RedisConfig holds configuration for Redis connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a models.Store backed by Redis hashes
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to Redis and checks the connection
func NewRedis(cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func predictionField(channel int64, id int) string {
	return strconv.FormatInt(channel, 10) + ":" + strconv.Itoa(id)
}

func (r *Redis) SavePrediction(ctx context.Context, p models.Prediction) error {
	field := predictionField(p.Channel, p.ID)
	if p.MessageRef.IsZero() {
		old, err := r.prediction(ctx, field)
		if err != nil {
			return err
		}
		if old != nil {
			p.MessageRef = old.MessageRef
		}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, keyPredictions, field, data)
	if p.Status.Terminal() {
		pipe.SRem(ctx, keyOpen, field)
	} else {
		pipe.SAdd(ctx, keyOpen, field)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save prediction %d: %w", p.ID, err)
	}
	return nil
}

func (r *Redis) prediction(ctx context.Context, field string) (*models.Prediction, error) {
	data, err := r.rdb.HGet(ctx, keyPredictions, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hget prediction: %w", err)
	}
	var p models.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode prediction %s: %w", field, err)
	}
	return &p, nil
}

func (r *Redis) OpenPredictions(ctx context.Context) ([]models.Prediction, error) {
	fields, err := r.rdb.SMembers(ctx, keyOpen).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers open: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	values, err := r.rdb.HMGet(ctx, keyPredictions, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget predictions: %w", err)
	}

	out := make([]models.Prediction, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var p models.Prediction
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("decode prediction %s: %w", fields[i], err)
		}
		out = append(out, p)
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

func (r *Redis) Stats(ctx context.Context, since time.Time) (models.PredictionStats, error) {
	var stats models.PredictionStats
	all, err := r.rdb.HGetAll(ctx, keyPredictions).Result()
	if err != nil {
		return stats, fmt.Errorf("hgetall predictions: %w", err)
	}
	for field, s := range all {
		var p models.Prediction
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return stats, fmt.Errorf("decode prediction %s: %w", field, err)
		}
		if !p.CreatedAt.Before(since) {
			stats.Add(p.Status)
		}
	}
	return stats, nil
}

func (r *Redis) SaveCooldown(ctx context.Context, channel int64, at time.Time) error {
	return r.rdb.HSet(ctx, keyCooldowns, strconv.FormatInt(channel, 10), at.UnixNano()).Err()
}

func (r *Redis) Cooldowns(ctx context.Context) (map[int64]time.Time, error) {
	all, err := r.rdb.HGetAll(ctx, keyCooldowns).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall cooldowns: %w", err)
	}
	out := make(map[int64]time.Time, len(all))
	for k, v := range all {
		channel, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad cooldown channel %q: %w", k, err)
		}
		ns, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad cooldown value %q: %w", v, err)
		}
		out[channel] = time.Unix(0, ns)
	}
	return out, nil
}

func (r *Redis) ResetChannel(ctx context.Context, channel int64) error {
	return r.rdb.HDel(ctx, keyCooldowns, strconv.FormatInt(channel, 10)).Err()
}

func (r *Redis) SaveRedirect(ctx context.Context, source, target int64) error {
	return r.rdb.HSet(ctx, keyRedirects, strconv.FormatInt(source, 10), target).Err()
}

func (r *Redis) Redirects(ctx context.Context) (map[int64]int64, error) {
	all, err := r.rdb.HGetAll(ctx, keyRedirects).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall redirects: %w", err)
	}
	out := make(map[int64]int64, len(all))
	for k, v := range all {
		source, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad redirect source %q: %w", k, err)
		}
		target, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad redirect target %q: %w", v, err)
		}
		out[source] = target
	}
	return out, nil
}

func (r *Redis) ClearRedirects(ctx context.Context) error {
	return r.rdb.Del(ctx, keyRedirects).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
