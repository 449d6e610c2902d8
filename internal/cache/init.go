package cache

import (
	"context"
	"fmt"
)

// Config selects and configures a Cache backend. Type mirrors CACHE_TYPE:
// "local", "redis", or "multilevel".
type Config struct {
	Type            string
	AdapterName     string
	LocalCapacity   int
	Redis           RedisConfig
	PrefetchWorkers int
	PrefetchQueue   int
}

// New constructs the Cache backend named by cfg.Type.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalCache(cfg.LocalCapacity)
	case "redis":
		return NewRedisCache(ctx, cfg.AdapterName, cfg.Redis)
	case "multilevel":
		remote, err := NewRedisCache(ctx, cfg.AdapterName, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewMultiLevelCache(remote, MultiLevelConfig{
			L1Capacity:      cfg.LocalCapacity,
			PrefetchWorkers: cfg.PrefetchWorkers,
			PrefetchQueue:   cfg.PrefetchQueue,
		})
	default:
		return nil, fmt.Errorf("cache: unsupported CACHE_TYPE %q", cfg.Type)
	}
}
