package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shebagreen/cleanup-backend/internal/service"
)

type StatisticsHandler struct {
	svc *service.StatisticsService
}

func NewStatisticsHandler(s *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{svc: s}
}

// GetGlobalStatistics GET /statistics
func (h *StatisticsHandler) GetGlobalStatistics(c *gin.Context) {
	stats, err := h.svc.GetGlobalStatistics(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserStatistics GET /statistics/users/:userId
func (h *StatisticsHandler) GetUserStatistics(c *gin.Context) {
	stats, err := h.svc.GetUserStatistics(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
