package subscription

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config selects and configures a Set backend, mirroring CACHE_TYPE.
type Config struct {
	Type          string
	LocalCapacity int
	Namespace     string
	RedisClient   *redis.Client
}

// Factory builds a Set per endpoint. Each endpoint gets its own Set
// instance (its own FIFO bound or sorted-set namespace) even though the
// underlying Redis client or capacity is shared adapter-wide.
type Factory struct {
	cfg Config
}

// NewFactory wraps the resolved Config for repeated per-endpoint construction.
func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

// New constructs a Set scoped to endpointName.
func (f *Factory) New(endpointName string) (Set, error) {
	switch f.cfg.Type {
	case "", "local":
		return NewLocalSet(f.cfg.LocalCapacity), nil
	case "redis", "multilevel":
		if f.cfg.RedisClient == nil {
			return nil, fmt.Errorf("subscription: redis backend requires a client")
		}
		return NewRedisSet(f.cfg.RedisClient, f.cfg.Namespace+":"+endpointName), nil
	default:
		return nil, fmt.Errorf("subscription: unsupported CACHE_TYPE %q", f.cfg.Type)
	}
}
