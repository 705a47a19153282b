package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"

	"github.com/terrascenik/server/config"
)

// Open connects to the configured database and returns a Store over it.
func Open(ctx context.Context, cfg config.Database, logger *zap.Logger) (*Store, error) {
	switch cfg.Driver {
	case "mongo":
		client, err := NewMongoStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to mongodb", zap.String("database", cfg.Name))
		return NewMongoStore(client, client.Database(cfg.Name)), nil
	case "postgres", "sqlite":
		db, err := NewSQLStorage(cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to sql database", zap.String("driver", cfg.Driver))
		return NewGormStore(db), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// NewSQLStorage opens a gorm connection whose query log goes to logger. Lookups
// that find nothing are normal and are not logged.
func NewSQLStorage(cfg config.Database, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.URL)
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	queryLog := zapgorm2.New(logger.Named("gorm"))
	queryLog.IgnoreRecordNotFoundError = true

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         queryLog.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 25
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)

	return db, nil
}

func NewMongoStorage(ctx context.Context, cfg config.Database) (*mongo.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.URL).SetTimeout(timeout)
	if cfg.MaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxOpenConns))
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}
