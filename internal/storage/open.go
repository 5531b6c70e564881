package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"omechat/backend/internal/config"
	"omechat/backend/internal/logging"
	"omechat/backend/internal/models"
)

const connectTimeout = time.Minute

// Open connects PostgreSQL and Redis, retrying with exponential backoff
// while the containers come up, and runs the migrations.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	db, err := openPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Міграції (Створення таблиць)
	if err := db.AutoMigrate(
		&models.UserSession{},
		&models.Connection{},
		&models.Report{},
		&models.Ban{},
	); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}

	logging.L().Info("database and redis connections established, migrations complete")
	return NewStorageService(db, rdb), nil
}

func retry(ctx context.Context, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = connectTimeout

	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logging.L().Warn("connect failed, retrying",
			zap.String("target", what),
			zap.Duration("next", next),
			zap.Error(err))
	})
}

func openPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	err := retry(ctx, "postgres", func() error {
		conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
		if err != nil {
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		db = conn
		return nil
	})
	return db, errors.Wrap(err, "connect postgres")
}

func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	err := retry(ctx, "redis", func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connect redis")
	}
	return rdb, nil
}
