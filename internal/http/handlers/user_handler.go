package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shebagreen/cleanup-backend/internal/service"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(s *service.UserService) *UserHandler {
	return &UserHandler{svc: s}
}

// CreateUser POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req struct {
		UserID          string  `json:"user_id" binding:"required"`
		DisplayName     string  `json:"display_name" binding:"required"`
		HederaAccountID *string `json:"hedera_account_id"`
		EvmAddress      *string `json:"evm_address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), req.UserID, req.DisplayName, req.HederaAccountID, req.EvmAddress)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// GetUser GET /users/:userId
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUserBalance GET /users/:userId/balance
func (h *UserHandler) GetUserBalance(c *gin.Context) {
	balance, err := h.svc.GetUserBalance(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, balance)
}
