package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/api"
	"github.com/Messijah/PedagogiskDialog/internal/audio"
	"github.com/Messijah/PedagogiskDialog/internal/audit"
	"github.com/Messijah/PedagogiskDialog/internal/auth"
	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/database"
	"github.com/Messijah/PedagogiskDialog/internal/logging"
	"github.com/Messijah/PedagogiskDialog/internal/prompts"
	"github.com/Messijah/PedagogiskDialog/internal/providers"
	"github.com/Messijah/PedagogiskDialog/internal/repository/sqlstore"
	"github.com/Messijah/PedagogiskDialog/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}
	logger := logging.New(cfg.Log)

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	sessionRepo := sqlstore.NewSessionRepository(db.DB)
	userRepo := sqlstore.NewUserRepository(db.DB)
	auditLogRepo := sqlstore.NewAuditLogRepository(db.DB)

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = randomSecret()
		logger.Warn("auth.jwt_secret is not set; using a random secret, tokens will not survive a restart")
	}
	authService := auth.NewService(userRepo, cfg.Auth, logger)
	auditService := audit.NewService(auditLogRepo, logger)

	// AI backends; a missing key leaves that backend unconfigured
	gateway, err := providers.NewRegistry().BuildGateway(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize AI backends")
	}

	catalogue := prompts.Default()
	if cfg.LLM.PromptsFile != "" {
		if catalogue, err = prompts.LoadFile(cfg.LLM.PromptsFile); err != nil {
			logger.WithError(err).Fatal("Failed to load prompt templates")
		}
	}

	storage, err := audio.NewStorage(cfg.Audio)
	if err != nil {
		logger.WithError(err).Fatal("Failed to prepare audio storage")
	}
	ffmpeg := audio.NewFFmpeg(cfg.Audio.FFmpegPath, cfg.Audio.FFprobePath)
	if err := ffmpeg.Available(); err != nil {
		logger.WithError(err).Warn("ffmpeg not available; long recordings cannot be segmented")
	}

	svc := services.NewServices(cfg, sessionRepo, gateway, catalogue, storage, ffmpeg, logger)

	app := api.NewApp(cfg.Server, logger)
	api.SetupRoutes(app, api.Dependencies{
		Services: svc,
		Auth:     authService,
		Audit:    auditService,
		DB:       db,
		Logger:   logger,
	})

	go func() {
		logger.WithField("addr", cfg.Server.Addr()).Info("Pedagogisk Dialog starting")
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	svc.Operations.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
