package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/filemgr/pkg/config"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

// KeyPrefix namespaces every catalog cache key.
const KeyPrefix = "filemgr:"

// NewRedis returns a connected Redis client, or nil when caching is
// disabled in cfg.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, appErrors.WrapAs(appErrors.ErrConnection, err, "ping redis %s", addr)
	}

	return client, nil
}
