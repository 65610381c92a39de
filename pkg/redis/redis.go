package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parcelwatch/fraud-screening/pkg/config"
	"github.com/parcelwatch/fraud-screening/pkg/logger"
	"github.com/parcelwatch/fraud-screening/pkg/resilience"
)

const connectTimeout = 5 * time.Second

// ClientInterface is the cache surface consumed by the rest of the
// service. Satisfied by Client and easy to fake in tests.
type ClientInterface interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Client wraps the go-redis client with timeout-aware helpers.
type Client struct {
	*goredis.Client
}

var _ ClientInterface = (*Client)(nil)

// NewRedisClient connects to Redis and verifies the connection with a
// bounded ping.
func NewRedisClient(cfg *config.RedisConfig, timeouts *config.TimeoutConfig) (*Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  timeouts.RedisReadTimeoutDuration(),
		WriteTimeout: timeouts.RedisWriteTimeoutDuration(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// SetWithExpiration stores a value with a TTL.
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Client.Set(ctx, key, value, expiration).Err()
}

// GetString fetches a string value. Returns redis.Nil when the key does
// not exist.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

// Delete removes keys. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}

// Exists reports whether the key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// IsNil reports whether the error is a cache miss.
func IsNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// RetryableOperation runs a Redis operation with conservative retries,
// preserving the operation's result type.
func RetryableOperation[T any](ctx context.Context, op func(ctx context.Context) (T, error), name string) (T, error) {
	cfg := ConservativeRetryConfig()

	result, err := resilience.Retry(ctx, cfg, func(ctx context.Context) (interface{}, error) {
		return op(ctx)
	})
	if err != nil {
		logger.Get().Warn("redis operation failed",
			zap.String("operation", name),
			zap.Error(err),
		)
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Redis is a shared remote resource that recovers quickly, so errors we
// cannot classify default to retryable. Permanent command and auth
// errors are excluded.
var nonRetryableRedisPatterns = []string{
	"wrongtype",
	"err syntax",
	"err invalid",
	"noauth",
	"wrongpass",
	"noperm",
	"err unknown",
	"execabort",
}

var retryableRedisPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"temporary failure",
	"timeout",
	"server closed",
	"unexpected eof",
	"pool timeout",
	"i/o timeout",
	"connection pool exhausted",
	"loading",
	"busy",
	"masterdown",
	"readonly",
	"noscript",
	"cluster",
	"moved",
	"ask",
	"tryagain",
	"clusterdown",
}

// isRedisRetryable classifies Redis errors. Cache misses and context
// errors are never retried.
func isRedisRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, goredis.Nil) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryableRedisPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	for _, pattern := range nonRetryableRedisPatterns {
		if strings.Contains(msg, pattern) {
			return false
		}
	}
	return true
}

// ConservativeRetryConfig retries briefly, for request-path lookups.
func ConservativeRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
		RetryableChecker:  isRedisRetryable,
	}
}

// AggressiveRetryConfig retries harder, for background writes.
func AggressiveRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
		RetryableChecker:  isRedisRetryable,
	}
}
