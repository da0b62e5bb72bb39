package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shebagreen/cleanup-backend/internal/logger"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
)

// PredictionResult — ответ сервиса детекции на снимок "до".
type PredictionResult struct {
	DetectionResult json.RawMessage `json:"detection_result"`
	RandomPrompt    string          `json:"random_prompt"`
}

// VerificationResult — ответ сервиса детекции на снимок "после" с промптом.
type VerificationResult struct {
	Verified        bool            `json:"verified"`
	Reason          string          `json:"reason,omitempty"`
	DetectionResult json.RawMessage `json:"detection_result,omitempty"`
}

// Client — HTTP-фасад над внешним сервисом детекции мусора.
// Любая транспортная ошибка или не-2xx ответ сворачивается в единую
// ошибку недоступности: вызывающему не важно, почему оракул не отвечает.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Predict отправляет снимок "до" на /predict и возвращает результат детекции
// вместе со случайным промптом для последующей верификации.
func (c *Client) Predict(ctx context.Context, imagePath string) (*PredictionResult, error) {
	url := c.baseURL + "/predict?use_dynamic_prompt=false"

	body, contentType, err := c.multipartImage(imagePath, nil)
	if err != nil {
		return nil, err
	}

	var result PredictionResult
	if err := c.postMultipart(ctx, url, body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Verify отправляет снимок "после" вместе с исходным промптом на /verify.
func (c *Client) Verify(ctx context.Context, imagePath, prompt string) (*VerificationResult, error) {
	url := c.baseURL + "/verify"

	body, contentType, err := c.multipartImage(imagePath, map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}

	var result VerificationResult
	if err := c.postMultipart(ctx, url, body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckHealth опрашивает /health с коротким таймаутом. Никогда не возвращает
// ошибку: любой сбой трактуется как "нездоров".
func (c *Client) CheckHealth(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(healthCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// multipartImage собирает multipart-тело с файлом изображения и
// дополнительными текстовыми полями.
func (c *Client) multipartImage(imagePath string, fields map[string]string) (*bytes.Buffer, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("detection: не удалось открыть изображение %s: %w", imagePath, err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", fmt.Errorf("detection: не удалось создать form-файл: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("detection: не удалось прочитать изображение: %w", err)
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("detection: не удалось записать поле %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("detection: не удалось завершить multipart: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// postMultipart выполняет запрос и декодирует JSON-ответ. Транспортные сбои и
// не-2xx статусы не различаются: все они — единый сигнал недоступности.
func (c *Client) postMultipart(ctx context.Context, url string, body *bytes.Buffer, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeUnavailable, "сервис детекции недоступен")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Log.WithField("url", url).WithError(err).Warn("Detection request failed")
		return apperror.Wrap(err, apperror.ErrCodeUnavailable, "сервис детекции недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Log.WithField("url", url).WithField("status", resp.StatusCode).Warn("Detection returned non-2xx")
		return apperror.New(apperror.ErrCodeUnavailable, "сервис детекции недоступен")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeUnavailable, "сервис детекции вернул некорректный ответ")
	}
	return nil
}
