package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finsim/brokerage/internal/clientdata"
	"github.com/finsim/brokerage/internal/clients/fmp"
	"github.com/finsim/brokerage/internal/config"
	"github.com/finsim/brokerage/internal/database"
	"github.com/finsim/brokerage/internal/modules/market"
	"github.com/finsim/brokerage/internal/modules/trading"
	"github.com/finsim/brokerage/internal/modules/users"
	"github.com/finsim/brokerage/internal/modules/valuation"
	"github.com/finsim/brokerage/internal/scheduler"
	"github.com/finsim/brokerage/internal/server"
	"github.com/finsim/brokerage/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting brokerage server")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// External data client with persistent response cache
	clientCache := clientdata.NewRepository(db.Conn())
	fmpClient := fmp.NewClient(cfg.FMPBaseURL, cfg.FMPAPIKey, cfg.QuoteCacheTTL, clientCache, log)

	// Repositories
	userRepo := users.NewRepository(db.Conn(), log)
	tradeRepo := trading.NewRepository(db.Conn(), log)
	marketRepo := market.NewRepository(db.Conn(), log)

	// Services and the valuation engine
	tradeService := trading.NewService(db, tradeRepo, userRepo, fmpClient, log)
	engine := valuation.NewEngine(tradeRepo, fmpClient, userRepo)
	portfolioCache := valuation.NewResultCache(cfg.PortfolioCacheTTL)

	// HTTP handlers
	valuationHandlers := valuation.NewHandlers(engine, portfolioCache, log)
	tradingHandlers := trading.NewHandlers(tradeService, userRepo, portfolioCache, log)
	userHandlers := users.NewHandlers(userRepo, log)
	marketHandlers := market.NewHandlers(marketRepo, fmpClient, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	listingsJob := market.NewRefreshJob(db, marketRepo, fmpClient, log)
	if err := sched.AddJob(cfg.ListingsSchedule, listingsJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register listings refresh job")
	}

	purgeJob := clientdata.NewPurgeJob(clientCache, 24*time.Hour, log)
	if err := sched.AddJob("@hourly", purgeJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache purge job")
	}

	// Populate listings on first boot so symbol search works immediately
	if n, err := marketRepo.Count(); err == nil && n == 0 {
		go func() {
			if err := sched.RunNow(listingsJob); err != nil {
				log.Error().Err(err).Msg("Initial listings refresh failed")
			}
		}()
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		DB:        db,
		Config:    cfg,
		DevMode:   cfg.DevMode,
		Valuation: valuationHandlers,
		Trading:   tradingHandlers,
		Users:     userHandlers,
		Market:    marketHandlers,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
