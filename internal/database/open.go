package database

import (
	"fmt"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/models"
)

// Open returns the store selected by STORE_DRIVER
func Open(cfg *config.Config) (models.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := New(ConnectionParams{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return nil, err
		}
		return db, nil
	case "redis":
		r, err := NewRedis(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
