package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/pkg/utils"
)

// Client wraps Redis for run locking and best-effort run event
// notifications.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client from environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: 0)
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", addr), zap.Int("db", db))

	return &Client{client: rdb, logger: logger}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Acquire takes the per-stage run lease via SET NX. At most one run per
// stage may be in flight at a time; a second acquire before release or
// expiry returns false.
func (c *Client) Acquire(ctx context.Context, stage, runID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, lockKey(stage), runID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock for %s: %w", stage, err)
	}
	return ok, nil
}

// Release drops the run lease, but only when still held by the same run.
func (c *Client) Release(ctx context.Context, stage, runID string) error {
	held, err := c.client.Get(ctx, lockKey(stage)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock for %s: %w", stage, err)
	}
	if held != runID {
		return nil
	}
	return c.client.Del(ctx, lockKey(stage)).Err()
}

func lockKey(stage string) string {
	return "featurex:lock:" + stage
}

// PublishRunEvent publishes a run lifecycle event. Best effort: failures are
// logged, never returned, so notification outages cannot fail a run.
func (c *Client) PublishRunEvent(ctx context.Context, stage, runID, outcome string) {
	channel := "featurex:runs:" + stage
	message := fmt.Sprintf("%s:%s", runID, outcome)
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish run event",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// Subscribe subscribes to run event channels. The caller closes the PubSub.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}
