package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeBadRequest          ErrorCode = "BAD_REQUEST"
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeUnprocessable       ErrorCode = "UNPROCESSABLE_ENTITY"
	ErrCodeUnavailable         ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeLedgerUninitialized ErrorCode = "LEDGER_UNINITIALIZED"
	ErrCodeLedgerOperation     ErrorCode = "LEDGER_OPERATION_FAILED"
	ErrCodeDatabaseError       ErrorCode = "DATABASE_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeUnprocessable:
		return http.StatusUnprocessableEntity
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeConflict
}

func IsUnprocessable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeUnprocessable
}

func IsUnavailable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeUnavailable
}

var (
	ErrReportNotFound       = New(ErrCodeNotFound, "отчёт не найден")
	ErrUserNotFound         = New(ErrCodeNotFound, "пользователь не найден")
	ErrUserAlreadyExists    = New(ErrCodeConflict, "пользователь с таким ID уже существует")
	ErrReportFinalized      = New(ErrCodeConflict, "отчёт уже верифицирован или отклонён")
	ErrOwnershipMismatch    = New(ErrCodeUnprocessable, "отчёт принадлежит другому пользователю")
	ErrNoLedgerAccount      = New(ErrCodeUnprocessable, "у пользователя не задан Hedera account ID")
	ErrDidAlreadyExists     = New(ErrCodeConflict, "у пользователя уже есть DID")
	ErrDetectionUnavailable = New(ErrCodeUnavailable, "сервис детекции недоступен")
	ErrLedgerUninitialized  = New(ErrCodeLedgerUninitialized, "Hedera клиент не инициализирован: проверьте учётные данные оператора")
)
