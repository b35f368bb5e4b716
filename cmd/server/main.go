package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeengine/internal/api"
	"tradeengine/internal/bot"
	"tradeengine/internal/broker"
	"tradeengine/internal/config"
	"tradeengine/internal/repository"
	"tradeengine/internal/service"
	"tradeengine/internal/store"
	"tradeengine/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

// engineUser identifies the single operator this process serves. The
// Shared Store's key layout is namespaced per user (§6); this process
// runs exactly one, but nothing below assumes a specific value.
const engineUser = "default"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.InitLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Store.Addr,
		Password:     cfg.Store.Password,
		DB:           cfg.Store.DB,
		PoolSize:     cfg.Store.PoolSize,
		DialTimeout:  cfg.Store.DialTimeout,
		ReadTimeout:  cfg.Store.ReadTimeout,
		WriteTimeout: cfg.Store.WriteTimeout,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to store")

	sharedStore := store.NewRedisStore(redisClient)

	// No broker SDK shipped in the reference pack this engine was
	// built from; FakeAdapter fills the broker.Adapter seam until a
	// real SDK client is wired here.
	adapter := broker.NewFakeAdapter()

	exchangeRepo := repository.NewExchangeRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	exchangeService := service.NewExchangeService(exchangeRepo, adapter, cfg.Security.EncryptionKey)
	settingsService := service.NewSettingsService(settingsRepo)

	orderWorker := bot.NewOrderWorker(adapter, bot.DefaultOrderWorkerConfig(), logger.Logger)

	engineCtx, cancelEngine := context.WithCancel(context.Background())
	go orderWorker.Run(engineCtx)

	go runDailyRolloverLoop(engineCtx, redisClient, logger.Logger)

	// Sector membership is static operational data (not a component of
	// this engine's own state); an empty lookup fails every Gate() check
	// closed (§4.3) until a real instrument-master mapping is supplied.
	sectors := bot.NewStaticSectorLookup(map[string]string{})

	engine := bot.NewEngine(engineUser, sharedStore, adapter, orderWorker, sectors, bot.Config{
		EntryLockTTL:          cfg.Engine.EntryLockTTL,
		ExitLockTTL:           cfg.Engine.ExitLockTTL,
		LTPWaitTimeout:        cfg.Engine.LTPWaitTimeout,
		LTPPollInterval:       cfg.Engine.LTPPollInterval,
		SnapshotThrottle:      cfg.Engine.SnapshotThrottle,
		MonitorLogThrottle:    cfg.Engine.MonitorLogThrottle,
		SectorSummaryThrottle: cfg.Engine.SectorSummaryThrottle,
		TradingVenueTimezone:  cfg.Engine.TradingVenueTimezone,
		Exchange:              cfg.Engine.PrimaryExchange,
	}, logger.Logger)

	// No live market-data subscriber is wired in this reference build;
	// the hook just logs which symbols would need a WS subscription.
	engine.SetOnSymbolsSeen(func(symbols []string) {
		logger.Info("symbols need market-data subscription", zap.Strings("symbols", symbols))
	})

	resubscribe, err := engine.Rehydrate(context.Background())
	if err != nil {
		logger.Error("rehydration failed", zap.Error(err))
	} else if len(resubscribe) > 0 {
		logger.Info("resuming monitoring on rehydrated positions", zap.Strings("symbols", resubscribe))
	}

	deps := &api.Dependencies{
		ExchangeService: exchangeService,
		SettingsService: settingsService,
		Webhook:         engine,
		Admin:           engine,
		AdminTokenHash:  cfg.Security.AdminTokenHash,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelEngine()

	if err := exchangeService.Close(); err != nil {
		logger.Error("error closing broker connection", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// runDailyRolloverLoop runs store.RunDailyRollover once an hour until
// ctx is cancelled. Hourly is frequent enough that a missed run near
// midnight self-corrects within the hour; the per-key TTLs already
// bound worst-case staleness regardless.
func runDailyRolloverLoop(ctx context.Context, client *redis.Client, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.RunDailyRollover(ctx, client, engineUser); err != nil {
				logger.Warn("daily rollover sweep failed", zap.Error(err))
			}
		}
	}
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
