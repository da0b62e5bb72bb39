package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shebagreen/cleanup-backend/internal/repository"
)

// HcsHandler отдаёт локальное зеркало публикаций в consensus-топик.
// Слой сервиса здесь не нужен: это чистое чтение без бизнес-правил.
type HcsHandler struct {
	repo *repository.HcsMessageRepository
}

func NewHcsHandler(repo *repository.HcsMessageRepository) *HcsHandler {
	return &HcsHandler{repo: repo}
}

// GetLogs GET /hcs/logs
func (h *HcsHandler) GetLogs(c *gin.Context) {
	limit, offset := getPagination(c)
	if limit == 0 || limit > 100 {
		limit = 50
	}

	messages, err := h.repo.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	total, err := h.repo.Count(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}
