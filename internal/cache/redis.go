// Package cache shares price data between broker processes through Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brokerdesk-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	snapshotKey    = "brokerdesk:prices:snapshot"
	chartKeyFormat = "brokerdesk:prices:chart:%s:%d"
)

// QuoteCache wraps a go-redis client with the keys the pricing feed uses.
type QuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg models.RedisConfig) *QuoteCache {
	ttl := cfg.QuoteTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &QuoteCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: ttl,
	}
}

func (c *QuoteCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *QuoteCache) Close() {
	if err := c.client.Close(); err != nil {
		zap.L().Warn("Failed to close redis client", zap.Error(err))
	}
}

// SaveSnapshot publishes the latest prices for other processes.
func (c *QuoteCache) SaveSnapshot(ctx context.Context, snap models.PriceSnapshot) error {
	return c.setJSON(ctx, snapshotKey, snap, c.ttl)
}

// LoadSnapshot returns the cached prices; ok is false on a miss.
func (c *QuoteCache) LoadSnapshot(ctx context.Context) (snap models.PriceSnapshot, ok bool, err error) {
	ok, err = c.getJSON(ctx, snapshotKey, &snap)
	return snap, ok, err
}

func (c *QuoteCache) SaveChart(ctx context.Context, coinId string, days int, points []models.ChartPoint) error {
	return c.setJSON(ctx, ChartKey(coinId, days), points, c.ttl*5)
}

func (c *QuoteCache) LoadChart(ctx context.Context, coinId string, days int) (points []models.ChartPoint, ok bool, err error) {
	ok, err = c.getJSON(ctx, ChartKey(coinId, days), &points)
	return points, ok, err
}

func ChartKey(coinId string, days int) string {
	return fmt.Sprintf(chartKeyFormat, coinId, days)
}

func (c *QuoteCache) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *QuoteCache) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	res, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(res, dest); err != nil {
		return false, fmt.Errorf("json unmarshal: %w", err)
	}
	return true, nil
}
