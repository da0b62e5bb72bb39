package middleware

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shebagreen/cleanup-backend/internal/logger"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
)

// Паттерны секретов, которым не место ни в ответе клиенту, ни в логах:
// длинные hex-блобы (приватные ключи), connection-строки со схемой и
// credentials, пары key=value с чувствительным именем.
var (
	hexBlobPattern    = regexp.MustCompile(`(?i)\b(?:0x)?[0-9a-f]{32,}\b`)
	connStringPattern = regexp.MustCompile(`\b[a-z][a-z0-9+.-]*://[^\s"']+`)
	credentialPattern = regexp.MustCompile(`(?i)\b(password|passwd|secret|token|key|apikey|api_key)\s*=\s*[^\s"'&]+`)
)

// Redact вычищает из строки всё, что похоже на секреты. Используется для
// любых сообщений об ошибках, покидающих процесс.
func Redact(s string) string {
	s = connStringPattern.ReplaceAllString(s, "[REDACTED]")
	s = hexBlobPattern.ReplaceAllString(s, "[REDACTED]")
	s = credentialPattern.ReplaceAllString(s, "$1=[REDACTED]")
	return s
}

// ErrorHandler обрабатывает ошибки централизованно: AppError переводится в
// свой HTTP-статус и код, всё остальное маскируется как внутренняя ошибка.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  Redact(err.Error()),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			c.JSON(appErr.HTTPStatus, gin.H{
				"error": Redact(appErr.Message),
				"code":  appErr.Code,
			})
			return
		}

		// Неклассифицированная ошибка: детали остаются в логах.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "внутренняя ошибка сервера",
			"code":  apperror.ErrCodeInternal,
		})
	}
}
