package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
)

// Минимальные валидные заголовки форматов для проверки магических байтов.
var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00}
	pngHeader  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
)

func newTestStorage(t *testing.T) *ImageStorage {
	t.Helper()
	s, err := NewImageStorage(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestImageStorage_Save_JPEG(t *testing.T) {
	s := newTestStorage(t)

	path, err := s.Save(context.Background(), "alice/report-1", jpegHeader)

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, filepath.Join("alice", "report-1")))
	assert.True(t, strings.HasSuffix(path, ".jpg"))

	// Файл действительно лежит на диске, и tmp-файла не осталось.
	data, err := os.ReadFile(filepath.Join(s.RootPath(), path))
	assert.NoError(t, err)
	assert.Equal(t, jpegHeader, data)
	_, err = os.Stat(filepath.Join(s.RootPath(), path) + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestImageStorage_Save_PNG(t *testing.T) {
	s := newTestStorage(t)

	path, err := s.Save(context.Background(), "bob/report-2", pngHeader)

	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".png"))
}

func TestImageStorage_Save_Empty(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Save(context.Background(), "alice/r", nil)

	assert.Error(t, err)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
}

func TestImageStorage_Save_NotAnImage(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Save(context.Background(), "alice/r", []byte("обычный текст, а не картинка"))

	assert.Error(t, err)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
}

func TestImageStorage_Save_TooLarge(t *testing.T) {
	s := newTestStorage(t)

	big := make([]byte, 2*1024*1024)
	copy(big, jpegHeader)

	_, err := s.Save(context.Background(), "alice/r", big)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "лимит")
}

func TestImageStorage_Delete(t *testing.T) {
	s := newTestStorage(t)

	path, err := s.Save(context.Background(), "alice/r", jpegHeader)
	assert.NoError(t, err)

	assert.NoError(t, s.Delete(context.Background(), path))
	_, err = os.Stat(filepath.Join(s.RootPath(), path))
	assert.True(t, os.IsNotExist(err))

	// Повторное удаление несуществующего файла не ошибка.
	assert.NoError(t, s.Delete(context.Background(), path))
}
