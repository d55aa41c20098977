package query

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-crosspost/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TypeGetLink          = "crosspost.query.link.get"
	TypeResolveDirective = "crosspost.query.directive.resolve"
)

type GetLinkMessage struct {
	UserID string
}

func (GetLinkMessage) Type() string { return TypeGetLink }

func (m GetLinkMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

type ResolveDirectiveMessage struct {
	Payload core.ReadPayload
}

func (ResolveDirectiveMessage) Type() string { return TypeResolveDirective }

func (m ResolveDirectiveMessage) Validate() error {
	if strings.TrimSpace(m.Payload.AccountIdentifier) == "" {
		return queryValidationError("account_identifier", "account identifier is required")
	}
	if strings.TrimSpace(m.Payload.PostID) == "" {
		return queryValidationError("post_id", "post id is required")
	}
	return nil
}

func queryDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.CrosspostErrorInternal)
}

func queryValidationError(field string, message string) error {
	return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.CrosspostErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}
