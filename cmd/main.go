package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/grandstand-picks/grandstand/brackets"
	"github.com/grandstand-picks/grandstand/config"
	"github.com/grandstand-picks/grandstand/db"
	_ "github.com/grandstand-picks/grandstand/docs"
	"github.com/grandstand-picks/grandstand/handlers"
	"github.com/grandstand-picks/grandstand/repositories"
	api "github.com/grandstand-picks/grandstand/routes"
	"github.com/grandstand-picks/grandstand/services"
	"github.com/grandstand-picks/grandstand/storage"
)

// @title Grandstand Picks API
// @version 1.0
// @description Tennis bracket pick'em backend: tournaments ingested from parsed ATP draws, single-elimination winner propagation, user picks and scoring.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	logger.Info("websocket hub started")

	txRunner := repositories.NewTxRunner(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	pickRepo := repositories.NewPostgresPickRepository(dbConn)
	logger.Info("repositories initialized")

	scoringService := services.NewScoringService(pickRepo, logger)
	authService := services.NewAuthService(userRepo, cfg.AdminEmail, logger)
	matchService := services.NewMatchService(txRunner, matchRepo, roundRepo, tournamentRepo, scoringService, wsHub, logger)
	roundService := services.NewRoundService(txRunner, roundRepo, matchRepo, pickRepo, tournamentRepo, wsHub, logger)
	tournamentService := services.NewTournamentService(txRunner, tournamentRepo, roundRepo, matchRepo, pickRepo, uploader, wsHub, logger)
	drawService := services.NewDrawService(txRunner, tournamentRepo, roundRepo, matchRepo, wsHub, logger)
	pickService := services.NewPickService(txRunner, pickRepo, matchRepo, roundRepo, tournamentRepo, logger)
	logger.Info("services initialized")

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, roundService)
	drawHandler := handlers.NewDrawHandler(drawService)
	roundHandler := handlers.NewRoundHandler(roundService)
	matchHandler := handlers.NewMatchHandler(matchService)
	pickHandler := handlers.NewPickHandler(pickService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger)
	logger.Info("handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		logger,
		cfg.JWTSecretKey,
		cfg.CORSAllowedOrigins,
		authHandler,
		tournamentHandler,
		drawHandler,
		roundHandler,
		matchHandler,
		pickHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
