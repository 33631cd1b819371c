package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// Client bundles the two redis concerns the service has: short-lived gate keys and pub/sub fan-out.
type Client interface {
	// AcquireGate sets key if absent with the given TTL. It reports false when the key already exists.
	AcquireGate(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseGate(ctx context.Context, key string) error
	Publish(ctx context.Context, channel string, payload any) error
	Close() error
}

type client struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "pi"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &client{
		log:    log.With("service", "RedisClient"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (c *client) key(k string) string {
	return c.prefix + ":" + k
}

func (c *client) AcquireGate(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, fmt.Errorf("redis client not initialized")
	}
	if ttl <= 0 {
		return true, nil
	}
	ok, err := c.rdb.SetNX(ctx, c.key(key), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (c *client) ReleaseGate(ctx context.Context, key string) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return c.rdb.Del(ctx, c.key(key)).Err()
}

func (c *client) Publish(ctx context.Context, channel string, payload any) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis client not initialized")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, c.key(channel), raw).Err()
}

func (c *client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
