// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"reelshare/internal/observability"

	"github.com/redis/go-redis/v9"
)

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Connect returns a Redis client for addr, or nil when Redis is unreachable.
// Callers treat a nil client as "run without cache and pub/sub".
func Connect(addr string) *redis.Client {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			log.Printf("Redis connection warning: invalid REDIS_URL %q: %v (continuing without cache)", addr, err)
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection warning: %v (continuing without cache)", err)
		_ = client.Close()
		return nil
	}
	log.Println("Redis connected successfully")
	return client
}
