package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shebagreen/cleanup-backend/internal/service"
)

type DidHandler struct {
	svc *service.DidService
}

func NewDidHandler(s *service.DidService) *DidHandler {
	return &DidHandler{svc: s}
}

// CreateDid POST /dids
func (h *DidHandler) CreateDid(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.CreateDid(c.Request.Context(), req.UserID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
