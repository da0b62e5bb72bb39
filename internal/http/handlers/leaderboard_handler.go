package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/service"
)

type LeaderboardHandler struct {
	svc *service.LeaderboardService
}

func NewLeaderboardHandler(s *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{svc: s}
}

// GetLeaderboard GET /leaderboard?period=week|month|alltime
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	period := c.DefaultQuery("period", models.LeaderboardPeriodAllTime)

	board, err := h.svc.GetLeaderboard(c.Request.Context(), period)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, board)
}
