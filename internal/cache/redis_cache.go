package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"bahikhata/backend/internal/domain"
)

type RedisCache struct {
	client *redis.Client
}

// NewRedis pings the server before returning so a bad address fails at
// startup instead of on the first report request.
func NewRedis(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) GetProfitSummary(ctx context.Context, period string) (*domain.ProfitSummary, bool) {
	raw, err := c.client.Get(ctx, profitKey(period)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[cache] get %s: %v", period, err)
		}
		return nil, false
	}
	var summary domain.ProfitSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		log.Printf("[cache] decode %s: %v", period, err)
		return nil, false
	}
	return &summary, true
}

func (c *RedisCache) SetProfitSummary(ctx context.Context, period string, summary domain.ProfitSummary, ttl time.Duration) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profitKey(period), raw, ttl).Err(); err != nil {
		log.Printf("[cache] set %s: %v", period, err)
	}
}

// Invalidate drops every cached summary. Called after any invoice or return
// mutation so reports never serve stale aggregates past the TTL contract.
func (c *RedisCache) Invalidate(ctx context.Context) {
	periods := []string{domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly, domain.PeriodYearly}
	keys := make([]string, 0, len(periods))
	for _, p := range periods {
		keys = append(keys, profitKey(p))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[cache] invalidate: %v", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func profitKey(period string) string {
	return "profit:summary:" + period
}
