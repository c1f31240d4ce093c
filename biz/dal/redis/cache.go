package redis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cache backs the market snapshot facets with plain GET/SET. A miss comes
// back as (nil, nil) so callers can tell "not cached" from "redis down".
type Cache struct {
	cli *redis.Client
}

func NewCache(cli *redis.Client) *Cache {
	return &Cache{cli: cli}
}

func (c *Cache) Read(ctx context.Context, key string) ([]byte, error) {
	val, err := c.cli.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cache read %s", key)
	}
	return val, nil
}

func (c *Cache) Write(ctx context.Context, key string, val []byte) error {
	if err := c.cli.Set(ctx, key, val, 0).Err(); err != nil {
		return errors.Wrapf(err, "cache write %s", key)
	}
	return nil
}

// Publish pushes a payload onto a notification channel.
func (c *Cache) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.cli.Publish(ctx, channel, payload).Err(); err != nil {
		return errors.Wrapf(err, "publish %s", channel)
	}
	return nil
}

// Subscribe opens a pattern subscription for the push gateway.
func (c *Cache) Subscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	return c.cli.PSubscribe(ctx, patterns...)
}
