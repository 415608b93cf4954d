// Package bootstrap wires process-wide runtime concerns shared by the
// commands: logging, tracing, the database and Redis.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"reelshare/internal/cache"
	"reelshare/internal/config"
	"reelshare/internal/database"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedIfEmpty fills an empty development store with demo data.
	SeedIfEmpty bool
	SeedOptions seed.Options
}

// InitObservability installs the package logger and the tracer provider for
// service. The returned func flushes traces.
func InitObservability(cfg *config.Config, service string, logOut io.Writer) (func(context.Context) error, error) {
	if logOut == nil {
		logOut = os.Stdout
	}
	observability.SetLogger(observability.NewLogger(logOut, cfg.Env))

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  service,
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}
	return shutdown, nil
}

// InitRuntime connects to the database and Redis. The Redis client is nil
// when REDIS_URL is empty.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = cache.Connect(cfg.RedisURL)
	}

	if opts.SeedIfEmpty && strings.EqualFold(cfg.Env, "development") {
		if err := seedIfEmpty(ctx, db, opts.SeedOptions); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}
	return db, rdb, nil
}

func seedIfEmpty(ctx context.Context, db *gorm.DB, opts seed.Options) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Document{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := seed.NewSeeder(db, opts).Run(ctx)
	return err
}
