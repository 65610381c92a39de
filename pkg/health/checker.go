package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Checker probes one dependency and reports whether it is usable.
type Checker func() error

// CheckerConfig bounds how long a single probe may take.
type CheckerConfig struct {
	Timeout time.Duration
}

// DefaultCheckerConfig returns the standard 2 second probe timeout.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{Timeout: 2 * time.Second}
}

// DatabaseChecker returns a health check function for PostgreSQL database
func DatabaseChecker(db *sql.DB) Checker {
	return DatabaseCheckerWithConfig(db, DefaultCheckerConfig())
}

// DatabaseCheckerWithConfig is DatabaseChecker with a custom timeout.
func DatabaseCheckerWithConfig(db *sql.DB, config CheckerConfig) Checker {
	return func() error {
		if db == nil {
			return errors.New("database connection is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// PoolChecker returns a health check function for a pgx connection pool.
func PoolChecker(pool *pgxpool.Pool) Checker {
	return PoolCheckerWithConfig(pool, DefaultCheckerConfig())
}

// PoolCheckerWithConfig is PoolChecker with a custom timeout.
func PoolCheckerWithConfig(pool *pgxpool.Pool, config CheckerConfig) Checker {
	return func() error {
		if pool == nil {
			return errors.New("database pool is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		return pool.Ping(ctx)
	}
}

// RedisChecker returns a health check function for Redis
func RedisChecker(client *redis.Client) Checker {
	return RedisCheckerWithConfig(client, DefaultCheckerConfig())
}

// RedisCheckerWithConfig is RedisChecker with a custom timeout.
func RedisCheckerWithConfig(client *redis.Client, config CheckerConfig) Checker {
	return func() error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// HTTPEndpointChecker returns a health check function for HTTP endpoints
// Useful for checking external service dependencies
func HTTPEndpointChecker(url string) Checker {
	return HTTPEndpointCheckerWithConfig(url, DefaultCheckerConfig())
}

// HTTPEndpointCheckerWithConfig is HTTPEndpointChecker with a custom
// timeout. Any response below 400 counts as healthy.
func HTTPEndpointCheckerWithConfig(url string, config CheckerConfig) Checker {
	return func() error {
		client := &http.Client{Timeout: config.Timeout}
		resp, err := client.Get(url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("endpoint %s returned status %d", url, resp.StatusCode)
		}
		return nil
	}
}

// GRPCEndpointChecker returns a health check function for gRPC endpoints
func GRPCEndpointChecker(target string) Checker {
	return func() error {
		// This is a placeholder - implement with grpc health protocol if needed
		return nil
	}
}

// CompositeChecker combines several named checks into one. All checks
// run; failures are reported together as "<name>.<check>: <error>".
func CompositeChecker(name string, checkers map[string]Checker) Checker {
	return func() error {
		var failures []string
		for checkName, check := range checkers {
			if err := check(); err != nil {
				failures = append(failures, fmt.Sprintf("%s.%s: %v", name, checkName, err))
			}
		}
		if len(failures) == 0 {
			return nil
		}
		sort.Strings(failures)
		return errors.New(strings.Join(failures, "; "))
	}
}

// AsyncChecker runs the check in a goroutine and gives up after the
// timeout, so one stuck dependency cannot block the health endpoint.
func AsyncChecker(checker Checker, timeout time.Duration) Checker {
	return func() error {
		done := make(chan error, 1)
		go func() {
			done <- checker()
		}()

		select {
		case err := <-done:
			return err
		case <-time.After(timeout):
			return fmt.Errorf("health check timeout after %v", timeout)
		}
	}
}

// CachedChecker memoizes a check result for a TTL, including failures.
// Useful when probes are expensive and the health endpoint is polled
// frequently.
type CachedChecker struct {
	checker  Checker
	cacheTTL time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	lastErr   error
}

// NewCachedChecker wraps a checker with a result cache.
func NewCachedChecker(checker Checker, cacheTTL time.Duration) *CachedChecker {
	return &CachedChecker{
		checker:  checker,
		cacheTTL: cacheTTL,
	}
}

// Check returns the cached result when fresh, otherwise re-runs the
// underlying checker.
func (c *CachedChecker) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastCheck.IsZero() && time.Since(c.lastCheck) < c.cacheTTL {
		return c.lastErr
	}

	c.lastErr = c.checker()
	c.lastCheck = time.Now()
	return c.lastErr
}
