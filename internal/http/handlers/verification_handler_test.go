package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func multipartRequest(t *testing.T, url string, fields map[string]string, fileField string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		assert.NoError(t, writer.WriteField(name, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, "photo.jpg")
		assert.NoError(t, err)
		_, err = part.Write([]byte{0xFF, 0xD8, 0xFF})
		assert.NoError(t, err)
	}
	assert.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// Негативные сценарии binding-а не доходят до сервиса, поэтому nil-сервис безопасен.
func newVerificationTestRouter() *gin.Engine {
	r := gin.New()
	h := NewVerificationHandler(nil)
	r.POST("/verifications", h.VerifyCleanup)
	return r
}

func TestVerificationHandler_MissingUserID(t *testing.T) {
	w := httptest.NewRecorder()
	req := multipartRequest(t, "/verifications", map[string]string{
		"reportId": "0d4907c3-ab2e-4f24-a8e5-7c53a1f6b111",
	}, "afterImage")

	newVerificationTestRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "userId")
}

func TestVerificationHandler_BadReportID(t *testing.T) {
	w := httptest.NewRecorder()
	req := multipartRequest(t, "/verifications", map[string]string{
		"userId":   "alice",
		"reportId": "не uuid",
	}, "afterImage")

	newVerificationTestRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "reportId")
}

func TestVerificationHandler_MissingAfterImage(t *testing.T) {
	w := httptest.NewRecorder()
	req := multipartRequest(t, "/verifications", map[string]string{
		"userId":   "alice",
		"reportId": "0d4907c3-ab2e-4f24-a8e5-7c53a1f6b111",
	}, "")

	newVerificationTestRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "afterImage")
}

func TestReportHandler_MissingBeforeImage(t *testing.T) {
	r := gin.New()
	h := NewReportHandler(nil)
	r.POST("/reports", h.CreateReport)

	w := httptest.NewRecorder()
	req := multipartRequest(t, "/reports", map[string]string{"userId": "alice"}, "")

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "beforeImage")
}

func TestReportHandler_BadReportIDParam(t *testing.T) {
	r := gin.New()
	h := NewReportHandler(nil)
	r.GET("/reports/:id", h.GetReport)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/not-a-uuid", nil)

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
