package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shebagreen/cleanup-backend/internal/config"
	"github.com/shebagreen/cleanup-backend/internal/http/handlers"
	"github.com/shebagreen/cleanup-backend/internal/http/middleware"
)

func SetupRouter(
	cfg *config.Config,
	reportHandler *handlers.ReportHandler,
	verificationHandler *handlers.VerificationHandler,
	userHandler *handlers.UserHandler,
	didHandler *handlers.DidHandler,
	feedHandler *handlers.FeedHandler,
	leaderboardHandler *handlers.LeaderboardHandler,
	statisticsHandler *handlers.StatisticsHandler,
	hcsHandler *handlers.HcsHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/uploads", http.Dir(cfg.UploadsPath))

	api := r.Group("/api/v1")

	// Мутирующие маршруты под rate limit: верификация дорогая (детекция +
	// две ledger-транзакции), спам сюда бьёт по кошельку оператора.
	writeRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	api.POST("/reports", writeRateLimit, reportHandler.CreateReport)
	api.GET("/reports/:id", middleware.UUIDValidator("id"), reportHandler.GetReport)

	api.POST("/verifications", writeRateLimit, verificationHandler.VerifyCleanup)

	api.POST("/users", writeRateLimit, userHandler.CreateUser)
	api.GET("/users/:userId", userHandler.GetUser)
	api.GET("/users/:userId/balance", userHandler.GetUserBalance)

	api.POST("/dids", writeRateLimit, didHandler.CreateDid)

	// Публичные read-only маршруты.
	api.GET("/feed", feedHandler.GetFeed)
	api.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
	api.GET("/statistics", statisticsHandler.GetGlobalStatistics)
	api.GET("/statistics/users/:userId", statisticsHandler.GetUserStatistics)
	api.GET("/hcs/logs", hcsHandler.GetLogs)

	return r
}
