package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := []struct {
		code   ErrorCode
		status int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeUnprocessable, http.StatusUnprocessableEntity},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{ErrCodeLedgerUninitialized, http.StatusInternalServerError},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeLedgerOperation, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, New(tc.code, "x").HTTPStatus, string(tc.code))
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("низкоуровневый сбой")
	err := Wrap(cause, ErrCodeDatabaseError, "ошибка базы данных")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "DATABASE_ERROR")
	assert.Contains(t, err.Error(), "низкоуровневый сбой")
}

func TestHelpers_MatchWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("контекст: %w", ErrReportNotFound)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.True(t, IsConflict(ErrReportFinalized))
	assert.True(t, IsUnprocessable(ErrOwnershipMismatch))
	assert.True(t, IsUnavailable(ErrDetectionUnavailable))
}
