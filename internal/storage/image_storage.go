package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
)

// Разрешённые типы изображений (определяются по магическим байтам, не по расширению).
var allowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ImageStorage отвечает за файловое хранилище снимков "до" и "после".
type ImageStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewImageStorage создаёт файловое хранилище.
func NewImageStorage(rootPath string, maxUploadMB int64) (*ImageStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &ImageStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// RootPath возвращает корневой каталог хранилища.
func (s *ImageStorage) RootPath() string {
	return s.rootPath
}

// Save валидирует и сохраняет изображение под префиксом вида userId/reportId.
// Возвращает относительный путь к файлу.
func (s *ImageStorage) Save(ctx context.Context, prefix string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext, err := s.validateImage(data)
	if err != nil {
		return "", err
	}

	fileName := uuid.New().String() + ext

	dir := filepath.Join(s.rootPath, filepath.Clean(prefix))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: не удалось создать каталог %s: %w", dir, err)
	}

	targetPath := filepath.Join(dir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return filepath.Join(filepath.Clean(prefix), fileName), nil
}

// Delete удаляет файл из хранилища.
func (s *ImageStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, relativePath)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// validateImage проверяет, что загрузка непустая, не превышает лимит и
// действительно является изображением из allowlist. Возвращает расширение файла.
func (s *ImageStorage) validateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperror.New(apperror.ErrCodeValidation, "файл не может быть пустым")
	}

	if int64(len(data)) > s.maxUploadBytes {
		return "", apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("размер файла превышает лимит %d МБ", s.maxUploadBytes/(1024*1024)))
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", apperror.New(apperror.ErrCodeValidation, "не удалось определить тип файла, разрешены только изображения")
	}

	if !allowedImageMimeTypes[kind.MIME.Value] {
		return "", apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("неподдерживаемый тип файла (%s), разрешены jpeg/png/webp/gif", kind.MIME.Value))
	}

	return "." + kind.Extension, nil
}
