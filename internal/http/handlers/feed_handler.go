package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shebagreen/cleanup-backend/internal/service"
)

type FeedHandler struct {
	svc *service.FeedService
}

func NewFeedHandler(s *service.FeedService) *FeedHandler {
	return &FeedHandler{svc: s}
}

// GetFeed GET /feed?page=&limit=&filter=recent|top
// filter=top поднимает наверх награждённые отчёты, recent (по умолчанию) —
// сортировка по дате.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	feed, err := h.svc.GetFeed(c.Request.Context(), page, limit, c.Query("filter") == "top")
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, feed)
}
