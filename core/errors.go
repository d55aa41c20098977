package core

import (
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	CrosspostErrorBadInput        = "CROSSPOST_BAD_INPUT"
	CrosspostErrorEncoding        = "CROSSPOST_ENCODING_ERROR"
	CrosspostErrorHandshakeFailed = "CROSSPOST_HANDSHAKE_FAILED"
	CrosspostErrorInvalidToken    = "CROSSPOST_INVALID_TOKEN"
	CrosspostErrorExternalService = "CROSSPOST_EXTERNAL_SERVICE_ERROR"
	CrosspostErrorConflict        = "CROSSPOST_CONFLICT"
	CrosspostErrorLinkNotFound    = "CROSSPOST_LINK_NOT_FOUND"
	CrosspostErrorRateLimited     = "CROSSPOST_RATE_LIMITED"
	CrosspostErrorInternal        = "CROSSPOST_INTERNAL_ERROR"
)

// NewEncodingError reports input that cannot be percent-encoded.
func NewEncodingError(message string) *goerrors.Error {
	return newCrosspostError(message, goerrors.CategoryBadInput, CrosspostErrorEncoding)
}

func NewHandshakeError(message string, cause error) *goerrors.Error {
	return wrapCrosspostError(cause, message, goerrors.CategoryExternal, CrosspostErrorHandshakeFailed)
}

func NewInvalidTokenError(message string) *goerrors.Error {
	return newCrosspostError(message, goerrors.CategoryAuth, CrosspostErrorInvalidToken)
}

// NewExternalServiceError reports a failure of the remote content service.
// A status of zero means the request never produced a response.
func NewExternalServiceError(message string, status int, cause error) *goerrors.Error {
	err := wrapCrosspostError(cause, message, goerrors.CategoryExternal, CrosspostErrorExternalService)
	if status > 0 {
		err = err.WithMetadata(map[string]any{"status_code": status})
	}
	return err
}

func NewConflictError(message string) *goerrors.Error {
	return newCrosspostError(message, goerrors.CategoryConflict, CrosspostErrorConflict)
}

func NewLinkNotFoundError(userID string) *goerrors.Error {
	return newCrosspostError("core: no service link for user", goerrors.CategoryNotFound, CrosspostErrorLinkNotFound).
		WithMetadata(map[string]any{"user_id": userID})
}

// NewRateLimitedError reports a call refused locally because the remote
// service asked the client to back off.
func NewRateLimitedError(message string, retryAfter time.Duration) *goerrors.Error {
	err := newCrosspostError(message, goerrors.CategoryRateLimit, CrosspostErrorRateLimited)
	if retryAfter > 0 {
		err = err.WithMetadata(map[string]any{"retry_after_ms": retryAfter.Milliseconds()})
	}
	return err
}

func NewBadInputError(message string) *goerrors.Error {
	return newCrosspostError(message, goerrors.CategoryBadInput, CrosspostErrorBadInput)
}

func IsEncodingError(err error) bool {
	return hasTextCode(err, CrosspostErrorEncoding)
}

func IsHandshakeError(err error) bool {
	return hasTextCode(err, CrosspostErrorHandshakeFailed)
}

func IsInvalidTokenError(err error) bool {
	return hasTextCode(err, CrosspostErrorInvalidToken)
}

func IsExternalServiceError(err error) bool {
	return hasTextCode(err, CrosspostErrorExternalService)
}

func IsConflictError(err error) bool {
	return hasTextCode(err, CrosspostErrorConflict)
}

func IsLinkNotFoundError(err error) bool {
	return hasTextCode(err, CrosspostErrorLinkNotFound)
}

func IsRateLimitedError(err error) bool {
	return hasTextCode(err, CrosspostErrorRateLimited)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	for current := err; current != nil; current = errors.Unwrap(current) {
		if goerrors.As(current, &richErr) && richErr != nil && richErr.TextCode == textCode {
			return true
		}
	}
	return false
}

func crosspostErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureCrosspostErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "percent-encod"), strings.Contains(msg, "utf-8"):
		return newCrosspostError(err.Error(), goerrors.CategoryBadInput, CrosspostErrorEncoding)
	case strings.Contains(msg, "request token"):
		return newCrosspostError(err.Error(), goerrors.CategoryAuth, CrosspostErrorInvalidToken)
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "duplicate"):
		return newCrosspostError(err.Error(), goerrors.CategoryConflict, CrosspostErrorConflict)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newCrosspostError(err.Error(), goerrors.CategoryBadInput, CrosspostErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureCrosspostErrorEnvelope(mapped)
}

func newCrosspostError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureCrosspostErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapCrosspostError(cause error, message string, category goerrors.Category, textCode string) *goerrors.Error {
	if cause == nil {
		return newCrosspostError(message, category, textCode)
	}
	return ensureCrosspostErrorEnvelope(
		goerrors.Wrap(cause, category, message).
			WithTextCode(textCode),
	)
}

func ensureCrosspostErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = crosspostHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultCrosspostTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultCrosspostTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return CrosspostErrorBadInput
	case goerrors.CategoryNotFound:
		return CrosspostErrorLinkNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return CrosspostErrorInvalidToken
	case goerrors.CategoryConflict:
		return CrosspostErrorConflict
	case goerrors.CategoryRateLimit:
		return CrosspostErrorRateLimited
	case goerrors.CategoryExternal:
		return CrosspostErrorExternalService
	default:
		return CrosspostErrorInternal
	}
}

func crosspostHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
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
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
