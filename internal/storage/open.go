package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/gitcinema/internal/config"
)

// Open builds the configured durable store and, when a redis address is
// set, wraps it in a CachedStore.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Storage.Type {
	case "sqlite":
		store, err = NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	case "postgres":
		store, err = NewPostgresStore(ctx, cfg.Storage.PostgresDSN, logger)
	case "bolt":
		store, err = NewBoltStore(cfg.Storage.BoltPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
	if err != nil {
		return nil, err
	}

	logger.WithField("type", cfg.Storage.Type).Debug("Opened repository store")

	if cfg.Cache.RedisAddr == "" {
		return store, nil
	}

	client, err := NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword)
	if err != nil {
		// The cache is optional; run against the durable store alone
		logger.WithError(err).Warn("Redis unavailable, continuing without cache")
		return store, nil
	}
	return NewCachedStore(store, client, cfg.Cache.TTL, logger), nil
}
