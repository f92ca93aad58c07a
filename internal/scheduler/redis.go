package scheduler

import (
	"context"

	"rightsize_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// PingRedis verifies the task queue backend is reachable before the
// worker starts consuming.
func PingRedis(ctx context.Context, cfg config.SchedulerConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
	defer func() { _ = client.Close() }()

	return client.Ping(ctx).Err()
}
