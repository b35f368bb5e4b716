//go:build integration

// Package integration contains integration tests for the Trade Engine's
// HTTP and storage layers:
//   - API integration tests: full HTTP request cycle against SetupRoutes
//   - Database tests: schema, transactions, repository round-trips
//
// Integration tests use build tag "integration" to separate from unit tests.
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"tradeengine/internal/api"
	"tradeengine/internal/api/handlers"
	"tradeengine/internal/bot"
	"tradeengine/internal/broker"
	"tradeengine/internal/repository"
	"tradeengine/internal/service"
	"tradeengine/internal/store"
	"tradeengine/pkg/crypto"

	"go.uber.org/zap"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

const testAdminToken = "integration-test-admin-token"

// TestConfig contains configuration for integration tests.
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing.
type TestServer struct {
	DB       *sql.DB
	Router   *mux.Router
	Server   *httptest.Server
	Engine   *bot.Engine
	Repos    *TestRepositories
	Services *TestServices
	Handlers *TestHandlers
	Cleanup  func()
}

// TestRepositories contains the repository instances used in testing.
type TestRepositories struct {
	Exchange *repository.ExchangeRepository
	Settings *repository.SettingsRepository
}

// TestServices contains the service instances used in testing.
type TestServices struct {
	Exchange *service.ExchangeService
	Settings *service.SettingsService
}

// TestHandlers contains the handler instances used in testing.
type TestHandlers struct {
	Exchange *handlers.ExchangeHandler
	Settings *handlers.SettingsHandler
	Webhook  *handlers.WebhookHandler
	Admin    *handlers.AdminHandler
}

func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "tradeengine_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection, skipping the test if
// one is not reachable.
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	cfg := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := sql.Open(cfg.DBDriver, connStr)
	if err != nil {
		t.Skipf("skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server with all components
// wired the way cmd/server/main.go wires production: Postgres-backed
// exchange/settings records, an in-memory Shared Store and FakeAdapter
// standing in for Redis and the broker SDK.
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		t.Skipf("skipping integration test: cannot initialize tables: %v", err)
		return nil
	}

	adapter := broker.NewFakeAdapter()
	adapter.Connected = true

	repos := &TestRepositories{
		Exchange: repository.NewExchangeRepository(db),
		Settings: repository.NewSettingsRepository(db),
	}

	services := &TestServices{
		Exchange: service.NewExchangeService(repos.Exchange, adapter, "test-encryption-key-32-bytes!!!!"),
		Settings: service.NewSettingsService(repos.Settings),
	}

	memStore := store.NewMemoryStore()
	orderWorker := bot.NewOrderWorker(adapter, bot.OrderWorkerConfig{
		Rate: 1000, Burst: 1000, QueueDepth: 32,
	}, testLogger())
	ctx, cancel := testContext()
	go orderWorker.Run(ctx)
	t.Cleanup(cancel)

	engine := bot.NewEngine("default", memStore, adapter, orderWorker,
		bot.NewStaticSectorLookup(map[string]string{}),
		bot.Config{
			EntryLockTTL:         2 * time.Second,
			ExitLockTTL:          2500 * time.Millisecond,
			LTPWaitTimeout:       300 * time.Millisecond,
			LTPPollInterval:      10 * time.Millisecond,
			TradingVenueTimezone: "UTC",
			Exchange:             "NSE",
		}, testLogger())

	testHandlers := &TestHandlers{
		Exchange: handlers.NewExchangeHandler(services.Exchange),
		Settings: handlers.NewSettingsHandler(services.Settings),
		Webhook:  handlers.NewWebhookHandler(engine),
		Admin:    handlers.NewAdminHandler(engine),
	}

	adminHash, err := crypto.HashPassword(testAdminToken)
	if err != nil {
		t.Fatalf("failed to hash test admin token: %v", err)
	}

	deps := &api.Dependencies{
		ExchangeService: services.Exchange,
		SettingsService: services.Settings,
		Webhook:         engine,
		Admin:           engine,
		AdminTokenHash:  adminHash,
	}
	router := api.SetupRoutes(deps)

	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:       db,
		Router:   router,
		Server:   server,
		Engine:   engine,
		Repos:    repos,
		Services: services,
		Handlers: testHandlers,
		Cleanup:  cleanup,
	}
}

// initTestTables creates tables for testing if they don't already exist.
func initTestTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS exchanges (
			id SERIAL PRIMARY KEY,
			name VARCHAR(50) UNIQUE NOT NULL,
			api_key TEXT NOT NULL DEFAULT '',
			secret_key TEXT NOT NULL DEFAULT '',
			passphrase TEXT DEFAULT '',
			connected BOOLEAN DEFAULT false,
			balance DECIMAL(20, 8) DEFAULT 0,
			last_error TEXT DEFAULT '',
			updated_at TIMESTAMP DEFAULT NOW(),
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY DEFAULT 1,
			consider_funding BOOLEAN DEFAULT false,
			max_concurrent_trades INT,
			notification_prefs JSONB DEFAULT '{"open":true,"close":true,"stop_loss":true,"liquidation":true,"api_error":true,"margin":true,"pause":true,"second_leg_fail":true}',
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if _, err := db.Exec(`INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		return fmt.Errorf("failed to insert default settings: %w", err)
	}

	return nil
}

// cleanupTestTables truncates every test table between test runs.
func cleanupTestTables(db *sql.DB) {
	for _, table := range []string{"exchanges", "settings"} {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
	db.Exec(`INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
}

// TruncateTable truncates a specific table for testing.
func TruncateTable(db *sql.DB, tableName string) error {
	_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tableName))
	return err
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
