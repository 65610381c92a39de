package database

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parcelwatch/fraud-screening/pkg/config"
	"github.com/parcelwatch/fraud-screening/pkg/resilience"
)

// NewPostgresPool creates a new PostgreSQL connection pool
func NewPostgresPool(cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := cfg.DSN()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(max(cfg.MaxConns, cfg.MinConns))
	poolConfig.MinConns = int32(cfg.MinConns)

	if cfg.StatementTimeoutSeconds > 0 {
		poolConfig.AfterConnect = createStatementTimeoutCallback(cfg.StatementTimeoutSeconds)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// NewReplicaPool connects to a single read replica, reusing the primary
// credentials with the replica's host and port.
func NewReplicaPool(cfg *config.DatabaseConfig, hostPort string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ReplicaDSN(hostPort))
	if err != nil {
		return nil, fmt.Errorf("unable to parse replica config for %s: %w", hostPort, err)
	}

	poolConfig.MaxConns = int32(max(cfg.MaxConns, cfg.MinConns))
	poolConfig.MinConns = int32(cfg.MinConns)

	if cfg.StatementTimeoutSeconds > 0 {
		poolConfig.AfterConnect = createStatementTimeoutCallback(cfg.StatementTimeoutSeconds)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create replica pool for %s: %w", hostPort, err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping replica %s: %w", hostPort, err)
	}

	return pool, nil
}

// DBPool holds the primary pool plus any read replicas. Reads that can
// tolerate replication lag go through GetReplica, everything else
// through GetPrimary.
type DBPool struct {
	Primary  *pgxpool.Pool
	Replicas []*pgxpool.Pool

	metrics      *DBMetrics
	breaker      *resilience.CircuitBreaker
	replicaIndex atomic.Uint64
}

// NewDBPool connects the primary and every configured replica. When the
// breaker config is enabled, database calls routed through Execute are
// protected by a circuit breaker.
func NewDBPool(cfg *config.DatabaseConfig, serviceName string) (*DBPool, error) {
	primary, err := NewPostgresPool(cfg)
	if err != nil {
		return nil, err
	}

	replicas := make([]*pgxpool.Pool, 0, len(cfg.ReplicaHosts))
	for _, hostPort := range cfg.ReplicaHosts {
		replica, err := NewReplicaPool(cfg, hostPort)
		if err != nil {
			primary.Close()
			for _, r := range replicas {
				r.Close()
			}
			return nil, err
		}
		replicas = append(replicas, replica)
	}

	pool := &DBPool{
		Primary:  primary,
		Replicas: replicas,
		metrics:  NewDBMetrics(serviceName),
	}

	if cfg.Breaker.Enabled {
		settings := resilience.BuildSettings(
			sanitizeBreakerName(serviceName+"-database"),
			cfg.Breaker.IntervalSeconds,
			cfg.Breaker.TimeoutSeconds,
			cfg.Breaker.FailureThreshold,
			cfg.Breaker.SuccessThreshold,
		)
		pool.breaker = resilience.NewCircuitBreaker(settings,
			resilience.GracefulDegradation(serviceName+"-database"))
	}

	return pool, nil
}

// GetPrimary returns the primary pool.
func (p *DBPool) GetPrimary() *pgxpool.Pool {
	return p.Primary
}

// GetReplica returns the next replica in round-robin order, falling
// back to the primary when no replicas are configured.
func (p *DBPool) GetReplica() *pgxpool.Pool {
	if len(p.Replicas) == 0 {
		return p.Primary
	}
	idx := p.replicaIndex.Add(1) - 1
	return p.Replicas[idx%uint64(len(p.Replicas))]
}

// Execute runs a database operation through the circuit breaker when
// one is configured.
func (p *DBPool) Execute(ctx context.Context, op func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if p.breaker == nil {
		return op(ctx)
	}
	return p.breaker.Execute(ctx, op)
}

// RecordQuery feeds query outcome metrics. Safe to call on a pool
// without metrics.
func (p *DBPool) RecordQuery(operation string, duration time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordQuery(operation, duration, err)
}

// Close closes the primary and all replica pools.
func (p *DBPool) Close() {
	if p.Primary != nil {
		p.Primary.Close()
	}
	for _, replica := range p.Replicas {
		if replica != nil {
			replica.Close()
		}
	}
}

// Close closes the database connection pool
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

// DBMetrics tracks query counts and latencies per operation.
type DBMetrics struct {
	queryTotal    *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

// NewDBMetrics registers the query metrics for a service. Metric
// registration is global, so this must be called once per process.
func NewDBMetrics(serviceName string) *DBMetrics {
	constLabels := prometheus.Labels{"service": serviceName}

	return &DBMetrics{
		queryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "db_queries_total",
				Help:        "Total number of database queries",
				ConstLabels: constLabels,
			},
			[]string{"operation", "status"},
		),
		queryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "db_query_duration_seconds",
				Help:        "Database query duration in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"operation", "status"},
		),
	}
}

// RecordQuery records one query outcome.
func (m *DBMetrics) RecordQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.queryTotal.WithLabelValues(operation, status).Inc()
	m.queryDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// createStatementTimeoutCallback returns an AfterConnect hook that
// applies a server-side statement timeout, in milliseconds, to every
// new connection.
func createStatementTimeoutCallback(timeoutSeconds int) func(ctx context.Context, conn *pgx.Conn) error {
	timeoutMs := timeoutSeconds * 1000
	return func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", timeoutMs))
		return err
	}
}

// sanitizeBreakerName normalizes a service name into a breaker name.
func sanitizeBreakerName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return strings.ReplaceAll(name, " ", "-")
}

// WithQueryTimeout derives a context bounded by the given timeout in
// seconds, or the package default when none is supplied.
func WithQueryTimeout(ctx context.Context, timeoutSeconds ...int) (context.Context, context.CancelFunc) {
	seconds := resolveQueryTimeout(timeoutSeconds...)
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// resolveQueryTimeout picks the caller-supplied timeout in seconds when
// positive, otherwise the package default.
func resolveQueryTimeout(timeout ...int) int {
	if len(timeout) > 0 && timeout[0] > 0 {
		return timeout[0]
	}
	return config.DefaultDatabaseQueryTimeout
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
