package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AccessErrorBadInput           = "ACCESS_BAD_INPUT"
	AccessErrorUnauthorized       = "ACCESS_UNAUTHORIZED"
	AccessErrorForbidden          = "ACCESS_FORBIDDEN"
	AccessErrorUnprocessable      = "ACCESS_UNPROCESSABLE"
	AccessErrorConflict           = "ACCESS_CONFLICT"
	AccessErrorNotFound           = "ACCESS_NOT_FOUND"
	AccessErrorGrantTypeUnknown   = "ACCESS_GRANT_TYPE_UNKNOWN"
	AccessErrorCodeUnauthorized   = "ACCESS_CODE_UNAUTHORIZED"
	AccessErrorRefreshInvalid     = "ACCESS_REFRESH_INVALID"
	AccessErrorCredentialsInvalid = "ACCESS_CREDENTIALS_INVALID"
	AccessErrorRateLimited        = "ACCESS_RATE_LIMITED"
	AccessErrorInternal           = "ACCESS_INTERNAL_ERROR"
)

func accessErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAccessErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "grant type"):
		return newAccessError(err.Error(), goerrors.CategoryBadInput, AccessErrorGrantTypeUnknown)
	case strings.Contains(msg, "refresh token"):
		return newAccessError(err.Error(), goerrors.CategoryAuth, AccessErrorRefreshInvalid)
	case strings.Contains(msg, "code"):
		return newAccessError(err.Error(), goerrors.CategoryAuth, AccessErrorCodeUnauthorized)
	case strings.Contains(msg, "credentials"):
		return newAccessError(err.Error(), goerrors.CategoryAuth, AccessErrorCredentialsInvalid)
	case strings.Contains(msg, "not found"):
		return newAccessError(err.Error(), goerrors.CategoryNotFound, AccessErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newAccessError(err.Error(), goerrors.CategoryBadInput, AccessErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAccessErrorEnvelope(mapped)
}

func newAccessError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureAccessErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// badRequestError and friends mirror the HTTP-flavored taxonomy the
// token endpoints speak: 400 for malformed requests, 401 for failed
// authentication, 403 for denied access, 409 for conflicting state,
// and 422 for well-formed input that references unknown entities.
func badRequestError(message string) *goerrors.Error {
	return newAccessError(message, goerrors.CategoryBadInput, AccessErrorBadInput)
}

func unauthorizedError(message string) *goerrors.Error {
	return newAccessError(message, goerrors.CategoryAuth, AccessErrorUnauthorized)
}

func forbiddenError(message string) *goerrors.Error {
	return newAccessError(message, goerrors.CategoryAuthz, AccessErrorForbidden)
}

func unprocessableError(message string) *goerrors.Error {
	return newAccessError(message, goerrors.CategoryValidation, AccessErrorUnprocessable)
}

func conflictError(message string) *goerrors.Error {
	return newAccessError(message, goerrors.CategoryConflict, AccessErrorConflict)
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrGrantNotFound) || errors.Is(err, ErrPersonNotFound) || errors.Is(err, ErrClientNotFound) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}

func ensureAccessErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = accessHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAccessTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAccessTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return AccessErrorBadInput
	case goerrors.CategoryValidation:
		return AccessErrorUnprocessable
	case goerrors.CategoryNotFound:
		return AccessErrorNotFound
	case goerrors.CategoryAuth:
		return AccessErrorUnauthorized
	case goerrors.CategoryAuthz:
		return AccessErrorForbidden
	case goerrors.CategoryConflict:
		return AccessErrorConflict
	case goerrors.CategoryRateLimit:
		return AccessErrorRateLimited
	default:
		return AccessErrorInternal
	}
}

func accessHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
