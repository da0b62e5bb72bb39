package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shebagreen/cleanup-backend/internal/service"
)

type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(s *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: s}
}

// CreateReport POST /reports
// Принимает multipart-форму: userId и снимок "до" в поле beforeImage.
func (h *ReportHandler) CreateReport(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле userId обязательно"})
		return
	}

	file, err := c.FormFile("beforeImage")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле beforeImage обязательно"})
		return
	}

	data, err := readFormFile(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.svc.CreateReport(c.Request.Context(), userID, data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

// GetReport GET /reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор отчёта"})
		return
	}

	report, err := h.svc.GetReportByID(c.Request.Context(), reportID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, report)
}
