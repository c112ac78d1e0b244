package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gyeh/medbill/internal/model"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 2 * time.Second
	defaultWriteTimeout = 2 * time.Second
)

// NewRedisClient returns a configured go-redis client and validates the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// redisKV is the subset of the go-redis client RedisCache uses.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache stores resolved references as JSON with a TTL. Only hits are
// cached so a code added to the fee schedule is picked up on the next lookup.
type RedisCache struct {
	client redisKV
	ttl    time.Duration
}

func NewRedisCache(client redisKV, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(code string) string {
	return fmt.Sprintf("medbill:price:%s", code)
}

func (c *RedisCache) Get(ctx context.Context, code string) (*model.PriceReference, error) {
	data, err := c.client.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ref model.PriceReference
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("decode cached price %s: %w", code, err)
	}
	return &ref, nil
}

func (c *RedisCache) Set(ctx context.Context, code string, ref model.PriceReference) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(code), data, c.ttl).Err()
}
