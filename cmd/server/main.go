package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shebagreen/cleanup-backend/internal/config"
	"github.com/shebagreen/cleanup-backend/internal/db"
	"github.com/shebagreen/cleanup-backend/internal/detection"
	"github.com/shebagreen/cleanup-backend/internal/goroutine"
	"github.com/shebagreen/cleanup-backend/internal/hedera"
	httpHandlers "github.com/shebagreen/cleanup-backend/internal/http/handlers"
	httpRouter "github.com/shebagreen/cleanup-backend/internal/http/router"
	"github.com/shebagreen/cleanup-backend/internal/logger"
	"github.com/shebagreen/cleanup-backend/internal/repository"
	"github.com/shebagreen/cleanup-backend/internal/service"
	"github.com/shebagreen/cleanup-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	imageStorage, err := storage.NewImageStorage(cfg.UploadsPath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	reportRepo := repository.NewReportRepository(dbConn)
	tokenRepo := repository.NewTokenRepository(dbConn)
	hcsMessageRepo := repository.NewHcsMessageRepository(dbConn)
	settlementRepo := repository.NewSettlementRepository(dbConn)

	// Внешние клиенты.
	detectionClient := detection.NewClient(cfg.DetectionAPIURL)
	hederaClient := hedera.NewClient(cfg, tokenRepo, hcsMessageRepo)

	// Сервисы.
	reportService := service.NewReportService(reportRepo, detectionClient, imageStorage)
	verificationService := service.NewVerificationService(
		reportRepo, userRepo, detectionClient, hederaClient, settlementRepo, imageStorage, cfg.RewardAmount)
	userService := service.NewUserService(userRepo, hederaClient, cfg.TokenSymbol)
	didService := service.NewDidService(userRepo, hederaClient)
	feedService := service.NewFeedService(reportRepo, userRepo, cfg.RewardAmount)
	leaderboardService := service.NewLeaderboardService(reportRepo, userRepo)
	statisticsService := service.NewStatisticsService(reportRepo, userRepo, cfg.RewardAmount)

	// Фоновая доборка расчётов, застрявших между mint и publish.
	reconciler := service.NewSettlementReconciler(
		settlementRepo, reportRepo, hederaClient, cfg.ReconcileInterval, cfg.ReconcileGrace)
	goroutine.SafeGoWithContext(ctx, reconciler.Run)

	// HTTP хэндлеры.
	reportHandler := httpHandlers.NewReportHandler(reportService)
	verificationHandler := httpHandlers.NewVerificationHandler(verificationService)
	userHandler := httpHandlers.NewUserHandler(userService)
	didHandler := httpHandlers.NewDidHandler(didService)
	feedHandler := httpHandlers.NewFeedHandler(feedService)
	leaderboardHandler := httpHandlers.NewLeaderboardHandler(leaderboardService)
	statisticsHandler := httpHandlers.NewStatisticsHandler(statisticsService)
	hcsHandler := httpHandlers.NewHcsHandler(hcsMessageRepo)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, hederaClient, detectionClient, version)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg,
		reportHandler, verificationHandler, userHandler, didHandler,
		feedHandler, leaderboardHandler, statisticsHandler, hcsHandler, healthHandler)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
