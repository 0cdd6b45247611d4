package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Redis keeps a shadow hash per telegram id (<prefix>:shadow:<id>) holding
// the latest frame and a running count, and publishes every event on the
// <prefix>:telegrams channel.
type Redis struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// DialRedis connects to addr and checks the connection with PING.
func DialRedis(ctx context.Context, addr, prefix string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 0})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect Redis %s: %w", addr, err)
	}
	return newRedis(client, prefix, ttl), nil
}

func newRedis(client redisClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// ShadowKey returns the hash key for a telegram id.
func (r *Redis) ShadowKey(id string) string {
	return fmt.Sprintf("%s:shadow:%s", r.prefix, id)
}

// Channel is the pub/sub channel carrying every event.
func (r *Redis) Channel() string {
	return r.prefix + ":telegrams"
}

func (r *Redis) Publish(ctx context.Context, e Event) error {
	key := r.ShadowKey(e.ID)
	err := r.client.HSet(ctx, key,
		"ts", e.Timestamp.UnixMilli(),
		"kind", e.Kind,
		"raw", e.Raw,
		"text", e.Text,
	).Err()
	if err != nil {
		return err
	}
	if err := r.client.HIncrBy(ctx, key, "count", 1).Err(); err != nil {
		return err
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return err
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.Channel(), data).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
