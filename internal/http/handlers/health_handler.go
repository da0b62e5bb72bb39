package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// LedgerChecker — проверка доступности ledger-клиента.
type LedgerChecker interface {
	CheckHealth(ctx context.Context) bool
}

// DetectionChecker — проверка доступности сервиса детекции.
type DetectionChecker interface {
	CheckHealth(ctx context.Context) bool
}

// HealthHandler агрегирует здоровье всех внешних зависимостей сервиса.
type HealthHandler struct {
	db        *sqlx.DB
	ledger    LedgerChecker
	detection DetectionChecker
	version   string
	startedAt time.Time
}

func NewHealthHandler(db *sqlx.DB, ledger LedgerChecker, detection DetectionChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		ledger:    ledger,
		detection: detection,
		version:   version,
		startedAt: time.Now(),
	}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health обрабатывает GET /health. Любая нездоровая зависимость даёт 503:
// деградировавший сервис не должен выглядеть живым для балансировщика.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unhealthy"
		status = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	if h.ledger.CheckHealth(ctx) {
		checks["hedera"] = "healthy"
	} else {
		checks["hedera"] = "unhealthy"
		status = "unhealthy"
	}

	if h.detection.CheckHealth(ctx) {
		checks["detection"] = "healthy"
	} else {
		checks["detection"] = "unhealthy"
		status = "unhealthy"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Timestamp: time.Now(),
		Checks:    checks,
	})
}
