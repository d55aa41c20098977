package command

import (
	"strings"

	"github.com/goliatone/go-crosspost/core"
)

const (
	TypeBeginLink    = "crosspost.command.link.begin"
	TypeCompleteLink = "crosspost.command.link.complete"
	TypeUnlink       = "crosspost.command.link.delete"
	TypeProcessText  = "crosspost.command.text.process"
	TypePurgeExpired = "crosspost.command.tokens.purge_expired"
)

type BeginLinkMessage struct {
	Request core.BeginLinkRequest
}

func (BeginLinkMessage) Type() string { return TypeBeginLink }

func (m BeginLinkMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type CompleteLinkMessage struct {
	Request core.CompleteLinkRequest
}

func (CompleteLinkMessage) Type() string { return TypeCompleteLink }

func (m CompleteLinkMessage) Validate() error {
	if strings.TrimSpace(m.Request.RequestToken) == "" {
		return commandValidationError("oauth_token", "request token is required")
	}
	if strings.TrimSpace(m.Request.Verifier) == "" {
		return commandValidationError("oauth_verifier", "verifier is required")
	}
	return nil
}

type UnlinkMessage struct {
	UserID string
}

func (UnlinkMessage) Type() string { return TypeUnlink }

func (m UnlinkMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

// ProcessTextMessage carries user text through directive handling. An empty
// user id is allowed; publish directives are then skipped by the dispatcher.
type ProcessTextMessage struct {
	Request core.ProcessTextRequest
}

func (ProcessTextMessage) Type() string { return TypeProcessText }

func (m ProcessTextMessage) Validate() error {
	return nil
}

type PurgeExpiredMessage struct{}

func (PurgeExpiredMessage) Type() string { return TypePurgeExpired }

func (PurgeExpiredMessage) Validate() error { return nil }
