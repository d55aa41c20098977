package transport

import (
	"net/http"

	"github.com/goliatone/go-crosspost/core"
	goerrors "github.com/goliatone/go-errors"
)

// newTransportError builds the envelope every adapter failure is reported
// with. A nil cause produces an unwrapped error.
func newTransportError(cause error, category goerrors.Category, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if cause == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(cause, category, message)
	}
	fields := map[string]any{"adapter": KindREST}
	for key, value := range metadata {
		fields[key] = value
	}
	return err.
		WithCode(transportStatus(category)).
		WithTextCode(transportTextCode(category)).
		WithMetadata(fields)
}

func transportStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.CrosspostErrorBadInput
	case goerrors.CategoryExternal:
		return core.CrosspostErrorExternalService
	default:
		return core.CrosspostErrorInternal
	}
}
