package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apperrors "branch-ledger/pkg/errors"
)

type Response[T any] struct {
	Status  bool                   `json:"status"`
	Message string                 `json:"message"`
	Body    T                      `json:"body,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type ListBody[T any] struct {
	List       []T             `json:"list"`
	Pagination *PaginationMeta `json:"pagination"`
}

type PaginationMeta struct {
	TotalCount uint64 `json:"total_count"`
	TotalPages int    `json:"total_pages"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

// SuccessOne wraps a single object.
func SuccessOne[T any](c echo.Context, code int, message string, data T) error {
	return c.JSON(code, Response[T]{
		Status:  true,
		Message: message,
		Body:    data,
	})
}

func SuccessList[T any](c echo.Context, message string, list []T, total uint64, page, limit int) error {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + uint64(limit) - 1) / uint64(limit))
	}

	if list == nil {
		list = make([]T, 0)
	}

	body := ListBody[T]{
		List: list,
		Pagination: &PaginationMeta{
			TotalCount: total,
			TotalPages: totalPages,
			Page:       page,
			Limit:      limit,
		},
	}

	return c.JSON(http.StatusOK, Response[ListBody[T]]{
		Status:  true,
		Message: message,
		Body:    body,
	})
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindNotFound:              http.StatusNotFound,
	apperrors.KindInvalidQuantity:       http.StatusUnprocessableEntity,
	apperrors.KindLocationMismatch:      http.StatusUnprocessableEntity,
	apperrors.KindMissingReason:         http.StatusUnprocessableEntity,
	apperrors.KindInvalidInput:          http.StatusUnprocessableEntity,
	apperrors.KindInsufficientStock:     http.StatusConflict,
	apperrors.KindInsufficientAvailable: http.StatusConflict,
	apperrors.KindIllegalTransition:     http.StatusConflict,
	apperrors.KindLockConflict:          http.StatusConflict,
	apperrors.KindForbidden:             http.StatusForbidden,
}

var authErrors = []error{
	apperrors.ErrEmptyAuthHeader,
	apperrors.ErrInvalidAuthHeader,
	apperrors.ErrInvalidToken,
	apperrors.ErrTokenExpired,
	apperrors.ErrTokenNotYetValid,
	apperrors.ErrInvalidSigningMethod,
	apperrors.ErrUnauthorized,
	apperrors.ErrActorNotFoundInContext,
}

// StatusFor maps an error onto the HTTP status the API answers with.
func StatusFor(err error) int {
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusBadRequest
	}
	for _, authErr := range authErrors {
		if errors.Is(err, authErr) {
			return http.StatusUnauthorized
		}
	}
	if kind, ok := apperrors.KindOf(err); ok {
		if code, ok := kindStatus[kind]; ok {
			return code
		}
	}
	if errors.Is(err, apperrors.ErrBadRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func ErrorResponse(c echo.Context, err error) error {
	code := StatusFor(err)
	msg := err.Error()
	var details map[string]interface{}

	var httpErr *apperrors.HttpError
	var ledgerErr *apperrors.LedgerError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &httpErr):
		msg = httpErr.Message
		details = httpErr.Details
	case errors.As(err, &validationErrs):
		msg = "validation failed"
		details = make(map[string]interface{}, len(validationErrs))
		for _, fe := range validationErrs {
			details[strings.ToLower(fe.Field())] = fe.Tag()
		}
	case errors.As(err, &ledgerErr):
		details = ledgerErr.Details()
	}

	if code == http.StatusInternalServerError {
		msg = "internal server error"
		details = nil
	}

	return c.JSON(code, Response[any]{
		Status:  false,
		Message: msg,
		Details: details,
	})
}
