package inbound

import (
	"net/http"

	"github.com/goliatone/go-crosspost/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	MessageLinkExpired   = "link expired, start again"
	MessageLinkingFailed = "linking failed, retry"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) *goerrors.Error {
	return inboundError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.CrosspostErrorBadInput,
		metadata,
	)
}

func inboundInternal(message string) *goerrors.Error {
	return inboundError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.CrosspostErrorInternal,
		nil,
	)
}

// callbackStatus maps a completion error to the status and user-facing
// message of the callback response.
func callbackStatus(err error) (int, string) {
	switch {
	case core.IsInvalidTokenError(err):
		return http.StatusGone, MessageLinkExpired
	case core.IsHandshakeError(err), core.IsExternalServiceError(err):
		return http.StatusBadGateway, MessageLinkingFailed
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Category == goerrors.CategoryBadInput {
		return http.StatusBadRequest, "invalid callback request"
	}
	return http.StatusInternalServerError, MessageLinkingFailed
}
