package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "storefront:checkout:submit:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisGuard implements Guard with SETNX so that every replica sees the
// same claims
type RedisGuard struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisGuard connects to Redis and verifies the connection
func NewRedisGuard(ctx context.Context, cfg RedisConfig) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisGuardWithClient(client, ""), nil
}

// NewRedisGuardWithClient wraps an existing client
func NewRedisGuardWithClient(client *redis.Client, keyPrefix string) *RedisGuard {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisGuard{client: client, keyPrefix: keyPrefix}
}

// releaseScript deletes the key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire submit guard: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (g *RedisGuard) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release submit guard: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

var _ Guard = (*RedisGuard)(nil)
