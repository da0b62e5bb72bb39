package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shebagreen/cleanup-backend/internal/service"
)

type VerificationHandler struct {
	svc *service.VerificationService
}

func NewVerificationHandler(s *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{svc: s}
}

// VerifyCleanup POST /verifications
// Принимает multipart-форму: userId, reportId и снимок "после" в поле afterImage.
func (h *VerificationHandler) VerifyCleanup(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле userId обязательно"})
		return
	}

	reportID, err := uuid.Parse(c.PostForm("reportId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле reportId должно быть валидным UUID"})
		return
	}

	file, err := c.FormFile("afterImage")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле afterImage обязательно"})
		return
	}

	data, err := readFormFile(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.VerifyCleanup(c.Request.Context(), userID, reportID, data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
