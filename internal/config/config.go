package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full process configuration, assembled once at startup
// from the environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Security SecurityConfig
	Engine   EngineConfig
	Logging  LoggingConfig
}

// DatabaseConfig addresses the Postgres instance backing the broker
// account record and engine settings (small, rarely-written rows; not
// the position/lock hot path, which lives in Store).
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ServerConfig is the HTTP bind for the webhook and admin surface.
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// StoreConfig addresses the shared key-value store (locks, counters,
// position snapshots, alert history) backing cross-process coordination.
type StoreConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SecurityConfig holds the admin-auth and credential-encryption secrets.
type SecurityConfig struct {
	AdminTokenHash string // bcrypt/sha256 hash compared against the admin bearer token
	EncryptionKey  string // 32-byte AES-256 key for broker credential blobs
	SessionTimeout int    // seconds
}

// EngineConfig holds the Trade Engine's timing and concurrency knobs:
// lock TTLs, throttle intervals, and order-worker sizing.
type EngineConfig struct {
	// Named-lock TTLs bounding a crashed holder's blast radius (§5).
	EntryLockTTL time.Duration
	ExitLockTTL  time.Duration

	// LTP wait budget for FIXED_CAPITAL quantity sizing (§4.5 step 7).
	LTPWaitTimeout time.Duration
	LTPPollInterval time.Duration

	// Throttle intervals for snapshot writes, monitoring logs and sector
	// summaries (§5, Throttling).
	SnapshotThrottle     time.Duration
	MonitorLogThrottle   time.Duration
	SectorSummaryThrottle time.Duration
	TickBroadcastThrottle time.Duration

	// Order Worker sizing and retry policy, as read from the environment.
	// cmd/server/main.go does not pass these on: the Order Worker is built
	// from bot.DefaultOrderWorkerConfig.
	OrderQueueDepth int
	MaxRetries      int
	RetryBackoff    time.Duration
	OrderTimeout    time.Duration

	// MaxConcurrentTrades is read from the environment (0 = unlimited).
	// Nothing reads it after loading, so no global cap is enforced; only
	// each AlertConfig's own trade_limit_per_day limits entries.
	MaxConcurrentTrades int

	// TradingVenueTimezone is the IANA zone name used for entry-window
	// and daily-rollover checks (e.g. "Asia/Kolkata").
	TradingVenueTimezone string

	// PrimaryExchange is the configured venue used whenever an alert or
	// reconciliation path needs an exchange for a symbol and doesn't
	// carry one explicitly (§9a). Not a guess baked into code.
	PrimaryExchange string
}

// LoggingConfig controls the process-wide structured logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load builds a Config from environment variables, applying defaults and
// validating the values the engine cannot safely run without.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "tradeengine"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Store: StoreConfig{
			Addr:         getEnv("STORE_ADDR", "localhost:6379"),
			Password:     getEnv("STORE_PASSWORD", ""),
			DB:           getEnvAsInt("STORE_DB", 0),
			PoolSize:     getEnvAsInt("STORE_POOL_SIZE", 10),
			DialTimeout:  getEnvAsDuration("STORE_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("STORE_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("STORE_WRITE_TIMEOUT", 3*time.Second),
		},
		Security: SecurityConfig{
			AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			SessionTimeout: getEnvAsInt("SESSION_TIMEOUT", 3600),
		},
		Engine: EngineConfig{
			EntryLockTTL: getEnvAsDuration("ENTRY_LOCK_TTL", 2*time.Second),
			ExitLockTTL:  getEnvAsDuration("EXIT_LOCK_TTL", 2500*time.Millisecond),

			LTPWaitTimeout:  getEnvAsDuration("LTP_WAIT_TIMEOUT", 300*time.Millisecond),
			LTPPollInterval: getEnvAsDuration("LTP_POLL_INTERVAL", 50*time.Millisecond),

			SnapshotThrottle:      getEnvAsDuration("SNAPSHOT_THROTTLE", 800*time.Millisecond),
			MonitorLogThrottle:    getEnvAsDuration("MONITOR_LOG_THROTTLE", 10*time.Second),
			SectorSummaryThrottle: getEnvAsDuration("SECTOR_SUMMARY_THROTTLE", 30*time.Second),
			TickBroadcastThrottle: getEnvAsDuration("TICK_BROADCAST_THROTTLE", 100*time.Millisecond),

			OrderQueueDepth: getEnvAsInt("ORDER_QUEUE_DEPTH", 256),
			MaxRetries:      getEnvAsInt("MAX_RETRIES", 4),
			RetryBackoff:    getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond),
			OrderTimeout:    getEnvAsDuration("ORDER_TIMEOUT", 5*time.Second),

			MaxConcurrentTrades:  getEnvAsInt("MAX_CONCURRENT_TRADES", 0),
			TradingVenueTimezone: getEnv("TRADING_VENUE_TIMEZONE", "Asia/Kolkata"),
			PrimaryExchange:      getEnv("PRIMARY_EXCHANGE", "NSE"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Security.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required for encrypting broker credentials")
	}
	if len(cfg.Security.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if cfg.Security.AdminTokenHash == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN_HASH is required to secure the admin surface")
	}
	if _, err := time.LoadLocation(cfg.Engine.TradingVenueTimezone); err != nil {
		return nil, fmt.Errorf("invalid TRADING_VENUE_TIMEZONE %q: %w", cfg.Engine.TradingVenueTimezone, err)
	}

	return cfg, nil
}

// Helper functions for reading environment variables with defaults.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
