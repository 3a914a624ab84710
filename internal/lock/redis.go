package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/volforecast/internal/logger"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another holder is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisClient is the subset of *redis.Client the lock uses.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Redis is a Locker shared by every instance pointed at the same Redis.
// Leases expire after TTL so a crashed holder cannot block a key forever.
type Redis struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis creates a Redis locker. Zero ttl or retry fall back to 10 minutes
// and 100 milliseconds.
func NewRedis(client RedisClient, prefix string, ttl, retry time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	if prefix == "" {
		prefix = "volforecast:lock"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, retry: retry}
}

func (r *Redis) key(k string) string { return r.prefix + ":" + k }

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.key(key)
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", k, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.client.Eval(ctx, releaseScript, []string{k}, token).Err(); err != nil {
				logger.L().Warn().Err(err).Str("key", k).Msg("failed to release lock")
			}
		})
	}, nil
}
