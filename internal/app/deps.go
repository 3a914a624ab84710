package app

import (
	"context"
	"fmt"
	"time"

	"github.com/guttosm/volforecast/config"
	"github.com/guttosm/volforecast/internal/lock"
	"github.com/guttosm/volforecast/internal/marketdata"
	"github.com/redis/go-redis/v9"
)

// NewSource builds the configured price provider. "none" yields a nil source,
// which makes every fit work from cached rows only.
func NewSource(cfg config.Config) (marketdata.Source, error) {
	switch cfg.Source.Provider {
	case "alphavantage":
		return marketdata.NewAlphaVantage(cfg.Source.AlphaVantageURL, cfg.Source.AlphaVantageAPIKey, cfg.Source.Timeout), nil
	case "yahoo":
		return marketdata.NewYahoo(cfg.Source.YahooURL, cfg.Source.YahooRange, cfg.Source.Timeout), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported price source %q", cfg.Source.Provider)
	}
}

// NewLocker builds the per-ticker fit lock and a cleanup for any client it
// opened. The redis backend is pinged before use.
func NewLocker(ctx context.Context, cfg config.Config) (lock.Locker, func(), error) {
	switch cfg.Lock.Backend {
	case "memory", "":
		return lock.NewMemory(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return lock.NewRedis(client, "", cfg.Lock.TTL, 0), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported lock backend %q", cfg.Lock.Backend)
	}
}
