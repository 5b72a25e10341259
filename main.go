package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-ordering/config"
	"github.com/yeremiapane/table-ordering/database"
	"github.com/yeremiapane/table-ordering/kds"
	"github.com/yeremiapane/table-ordering/middlewares"
	"github.com/yeremiapane/table-ordering/repository"
	"github.com/yeremiapane/table-ordering/router"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DB, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatalf("Failed to migrate: %v", err)
	}

	codes, err := services.NewJoinCodeGenerator(cfg.JoinCodeLength, cfg.JoinCodeAlphabet, cfg.JoinCodeAttempts)
	if err != nil {
		logger.Fatalf("Invalid join code settings: %v", err)
	}

	store := repository.NewGormStore(db)
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	hub := kds.NewHub(logger)
	authz := services.NewAuthorizer(store)

	participants := services.NewParticipantService(store, authz, hub, logger)
	sessions := services.NewSessionService(store, codes, participants, authz, hub, logger)
	sessions.AllowRejoin = cfg.AllowRejoin

	sweeper := services.NewSessionSweeper(store, hub, logger, cfg.SessionSweepInterval, cfg.SessionIdleTimeout)
	sweeper.Start()

	r := router.SetupRouter(router.Dependencies{
		Users:        services.NewUserService(store, tokens, logger),
		Restaurants:  services.NewRestaurantService(store, authz, services.NewSaga(logger), logger),
		Tables:       services.NewTableService(store, authz, logger),
		Menu:         services.NewMenuService(store, authz, logger),
		Sessions:     sessions,
		Participants: participants,
		Orders:       services.NewOrderService(store, authz, hub, logger),
		Authz:        authz,
		Hub:          hub,
		Tokens:       tokens,
		Log:          logger,
		RateLimiter:  middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		CORSOrigins:  cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("HTTP server failed")
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
		exitCode = 1
	}
	sweeper.Stop()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logger.Info("Server stopped")
}
