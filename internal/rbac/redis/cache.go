// Package redis caches resolved grants in Redis. Entries are namespaced by a
// generation counter so a global flush is a single INCR.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/auth-rbac/internal/rbac"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "rbac"
	defaultTTL    = 5 * time.Minute
)

// Commands is the subset of the go-redis client the cache issues.
type Commands interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
}

type Cache struct {
	client Commands
	prefix string
	ttl    time.Duration
}

func NewCache(client Commands, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, prefix: defaultPrefix, ttl: ttl}
}

// NewClient parses a redis:// URL and checks connectivity.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (c *Cache) generationKey() string {
	return c.prefix + ":generation"
}

func (c *Cache) userKey(ctx context.Context, userID string) (string, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Result()
	if errors.Is(err, goredis.Nil) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:user:%s", c.prefix, gen, userID), nil
}

func (c *Cache) Get(ctx context.Context, userID string) (*rbac.Grants, bool, error) {
	key, err := c.userKey(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var grants rbac.Grants
	if err := json.Unmarshal(raw, &grants); err != nil {
		return nil, false, err
	}
	return &grants, true, nil
}

func (c *Cache) Set(ctx context.Context, userID string, grants *rbac.Grants) error {
	key, err := c.userKey(ctx, userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(grants)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	key, err := c.userKey(ctx, userID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

// InvalidateAll moves to a new generation; entries of older generations age
// out through their TTL.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	return c.client.Incr(ctx, c.generationKey()).Err()
}
