// Package backend opens the turn store and turn publisher selected by the
// ssechat configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/config"
	"github.com/papercomputeco/ssechat/pkg/eventstream"
	"github.com/papercomputeco/ssechat/pkg/eventstream/kafka"
	"github.com/papercomputeco/ssechat/pkg/eventstream/nop"
	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/pkg/storage/inmemory"
	"github.com/papercomputeco/ssechat/pkg/storage/postgres"
	"github.com/papercomputeco/ssechat/pkg/storage/redis"
	"github.com/papercomputeco/ssechat/pkg/storage/sqlite"
)

// ErrMultipleStores is returned when more than one storage backend is set.
var ErrMultipleStores = errors.New("only one of sqlite_path, postgres_dsn and redis_addr may be set")

// OpenStorage returns the driver named by cfg, falling back to an in-memory
// store when no backend is configured.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	set := 0
	for _, v := range []string{cfg.SQLitePath, cfg.PostgresDSN, cfg.RedisAddr} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set > 1 {
		return nil, ErrMultipleStores
	}

	switch {
	case cfg.SQLitePath != "":
		driver, err := sqlite.NewDriver(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Info("using SQLite storage", zap.String("path", cfg.SQLitePath))
		return driver, nil

	case cfg.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	case cfg.RedisAddr != "":
		driver, err := redis.NewDriver(ctx, redis.Options{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis storer: %w", err)
		}
		logger.Info("using Redis storage", zap.String("addr", cfg.RedisAddr))
		return driver, nil
	}

	logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}

// OpenPublisher returns a Kafka publisher when brokers are configured and a
// nop publisher otherwise.
func OpenPublisher(cfg config.PublisherConfig, logger *zap.Logger) (eventstream.Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}

	logger.Info("publishing turns to Kafka",
		zap.Strings("brokers", brokers),
		zap.String("topic", cfg.KafkaTopic),
	)
	return pub, nil
}
