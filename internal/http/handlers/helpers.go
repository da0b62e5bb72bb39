package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"
)

// readFormFile читает multipart-файл из формы целиком в память.
// Лимит размера обеспечивается выше по стеку (MaxMultipartMemory и хранилище).
func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть файл %s: %w", file.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл %s: %w", file.Filename, err)
	}
	return data, nil
}

// getPagination извлекает limit/offset из query-параметров.
func getPagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
