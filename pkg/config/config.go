package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default timeouts in seconds, used when the corresponding environment
// variables are unset.
const (
	DefaultDatabaseQueryTimeout  = 30
	DefaultRedisOperationTimeout = 3
	DefaultRedisReadTimeout      = 3
	DefaultRedisWriteTimeout     = 3
)

// Drop-off scan selection policies accepted by SCREENING_DROP_OFF_SCAN_POLICY.
const (
	ScanPolicyFirst = "FIRST"
	ScanPolicyLast  = "LAST"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Timeouts  TimeoutConfig
	Tracking  TrackingConfig
	Geocoding GeocodingConfig
	Screening ScreeningConfig
	Orders    OrdersConfig
	PubSub    PubSubConfig
	Sentry    SentryConfig
	Tracing   TracingConfig
	Secrets   SecretsConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host                    string
	Port                    string
	User                    string
	Password                string
	DBName                  string
	SSLMode                 string
	MaxConns                int
	MinConns                int
	ReplicaHosts            []string // Optional read replicas, host:port pairs
	StatementTimeoutSeconds int
	AutoMigrate             bool
	MigrationsPath          string
	Breaker                 DatabaseBreakerConfig
}

// DatabaseBreakerConfig controls the circuit breaker wrapped around
// database operations.
type DatabaseBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// TimeoutConfig holds per-dependency operation timeouts in seconds.
type TimeoutConfig struct {
	DatabaseQueryTimeout  int
	RedisOperationTimeout int
	RedisReadTimeout      int
	RedisWriteTimeout     int
}

// TrackingConfig holds the carrier tracking upstream configuration.
type TrackingConfig struct {
	BaseURL        string
	APIKey         string
	APIKeyRef      string // Optional secret reference resolved at startup
	TimeoutSeconds int
}

// GeocodingConfig holds the geocoding upstream configuration.
type GeocodingConfig struct {
	BaseURL         string
	APIKey          string
	APIKeyRef       string // Optional secret reference resolved at startup
	TimeoutSeconds  int
	CacheTTLMinutes int
}

// ScreeningConfig holds the fraud screening policy knobs.
type ScreeningConfig struct {
	DropOffScanPolicy       string
	DistanceThresholdMiles  float64
	DuplicateOrderThreshold int
}

// OrdersConfig selects the backing store for the duplicate-order detector.
type OrdersConfig struct {
	StoreDriver string // "postgres" or "memory"
}

// PubSubConfig holds NATS event bus configuration
type PubSubConfig struct {
	URL     string
	Enabled bool
}

// SentryConfig holds Sentry error reporting configuration
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// TracingConfig holds OpenTelemetry trace export configuration
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

// SecretsConfig selects the secret manager backing the *_REF references.
type SecretsConfig struct {
	Provider     string // "vault", "aws", "gcp" or "kubernetes"
	VaultAddress string
	VaultToken   string
	VaultMount   string
	AWSRegion    string
	GCPProject   string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:                    getEnv("DB_HOST", "localhost"),
			Port:                    getEnv("DB_PORT", "5432"),
			User:                    getEnv("DB_USER", "postgres"),
			Password:                getEnv("DB_PASSWORD", "postgres"),
			DBName:                  getEnv("DB_NAME", "fraudscreening"),
			SSLMode:                 getEnv("DB_SSLMODE", "disable"),
			MaxConns:                getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:                getEnvAsInt("DB_MIN_CONNS", 5),
			ReplicaHosts:            getEnvAsSlice("DB_REPLICA_HOSTS"),
			StatementTimeoutSeconds: getEnvAsInt("DB_STATEMENT_TIMEOUT", DefaultDatabaseQueryTimeout),
			AutoMigrate:             getEnvAsBool("DB_AUTO_MIGRATE", false),
			MigrationsPath:          getEnv("DB_MIGRATIONS_PATH", "migrations"),
			Breaker: DatabaseBreakerConfig{
				Enabled:          getEnvAsBool("DB_BREAKER_ENABLED", false),
				FailureThreshold: getEnvAsInt("DB_BREAKER_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("DB_BREAKER_SUCCESS_THRESHOLD", 2),
				TimeoutSeconds:   getEnvAsInt("DB_BREAKER_TIMEOUT", 30),
				IntervalSeconds:  getEnvAsInt("DB_BREAKER_INTERVAL", 60),
			},
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Timeouts: TimeoutConfig{
			DatabaseQueryTimeout:  getEnvAsInt("DB_QUERY_TIMEOUT", DefaultDatabaseQueryTimeout),
			RedisOperationTimeout: getEnvAsInt("REDIS_OPERATION_TIMEOUT", DefaultRedisOperationTimeout),
			RedisReadTimeout:      getEnvAsInt("REDIS_READ_TIMEOUT", 0),
			RedisWriteTimeout:     getEnvAsInt("REDIS_WRITE_TIMEOUT", 0),
		},
		Tracking: TrackingConfig{
			BaseURL:        getEnv("TRACKING_API_BASE_URL", "https://api.easypost.com/v2"),
			APIKey:         getEnv("TRACKING_API_KEY", ""),
			APIKeyRef:      getEnv("TRACKING_API_KEY_REF", ""),
			TimeoutSeconds: getEnvAsInt("TRACKING_API_TIMEOUT", 10),
		},
		Geocoding: GeocodingConfig{
			BaseURL:         getEnv("GEOCODING_API_BASE_URL", "https://maps.googleapis.com/maps/api"),
			APIKey:          getEnv("GEOCODING_API_KEY", ""),
			APIKeyRef:       getEnv("GEOCODING_API_KEY_REF", ""),
			TimeoutSeconds:  getEnvAsInt("GEOCODING_API_TIMEOUT", 10),
			CacheTTLMinutes: getEnvAsInt("GEOCODING_CACHE_TTL", 1440),
		},
		Screening: ScreeningConfig{
			DropOffScanPolicy:       strings.ToUpper(getEnv("SCREENING_DROP_OFF_SCAN_POLICY", ScanPolicyLast)),
			DistanceThresholdMiles:  getEnvAsFloat("SCREENING_DISTANCE_THRESHOLD_MILES", 15.0),
			DuplicateOrderThreshold: getEnvAsInt("SCREENING_DUPLICATE_ORDER_THRESHOLD", 3),
		},
		Orders: OrdersConfig{
			StoreDriver: getEnv("ORDER_STORE_DRIVER", "postgres"),
		},
		PubSub: PubSubConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("PUBSUB_ENABLED", false),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio: getEnvAsFloat("TRACING_SAMPLE_RATIO", 1.0),
		},
		Secrets: SecretsConfig{
			Provider:     getEnv("SECRETS_PROVIDER", ""),
			VaultAddress: getEnv("VAULT_ADDR", ""),
			VaultToken:   getEnv("VAULT_TOKEN", ""),
			VaultMount:   getEnv("VAULT_MOUNT", "secret"),
			AWSRegion:    getEnv("AWS_REGION", ""),
			GCPProject:   getEnv("GCP_PROJECT", ""),
		},
	}

	if err := cfg.Screening.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects screening policy values that would otherwise be applied
// silently at request time.
func (c *ScreeningConfig) Validate() error {
	switch c.DropOffScanPolicy {
	case ScanPolicyFirst, ScanPolicyLast:
	default:
		return fmt.Errorf("invalid SCREENING_DROP_OFF_SCAN_POLICY %q: must be FIRST or LAST", c.DropOffScanPolicy)
	}
	if c.DistanceThresholdMiles <= 0 {
		return fmt.Errorf("SCREENING_DISTANCE_THRESHOLD_MILES must be positive, got %v", c.DistanceThresholdMiles)
	}
	if c.DuplicateOrderThreshold < 1 {
		return fmt.Errorf("SCREENING_DUPLICATE_ORDER_THRESHOLD must be at least 1, got %d", c.DuplicateOrderThreshold)
	}
	return nil
}

// Validate rejects unknown order store drivers.
func (c *OrdersConfig) Validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
		return nil
	default:
		return fmt.Errorf("invalid ORDER_STORE_DRIVER %q: must be postgres or memory", c.StoreDriver)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// ReplicaDSN returns the connection string for a replica host:port pair,
// reusing the primary credentials.
func (c *DatabaseConfig) ReplicaDSN(hostPort string) string {
	host, port := hostPort, c.Port
	if idx := strings.LastIndex(hostPort, ":"); idx > 0 {
		host, port = hostPort[:idx], hostPort[idx+1:]
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// RedisReadTimeoutDuration returns the read timeout, falling back to the
// operation timeout when unset.
func (c *TimeoutConfig) RedisReadTimeoutDuration() time.Duration {
	if c.RedisReadTimeout > 0 {
		return time.Duration(c.RedisReadTimeout) * time.Second
	}
	return time.Duration(c.RedisOperationTimeout) * time.Second
}

// RedisWriteTimeoutDuration returns the write timeout, falling back to the
// operation timeout when unset.
func (c *TimeoutConfig) RedisWriteTimeoutDuration() time.Duration {
	if c.RedisWriteTimeout > 0 {
		return time.Duration(c.RedisWriteTimeout) * time.Second
	}
	return time.Duration(c.RedisOperationTimeout) * time.Second
}

// DefaultRedisReadTimeoutDuration returns the package default read timeout.
func DefaultRedisReadTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisReadTimeout) * time.Second
}

// DefaultRedisWriteTimeoutDuration returns the package default write timeout.
func DefaultRedisWriteTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisWriteTimeout) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
