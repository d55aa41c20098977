package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crosspost/core"
)

type MutatingService interface {
	BeginLink(ctx context.Context, req core.BeginLinkRequest) (core.BeginLinkResponse, error)
	CompleteLink(ctx context.Context, req core.CompleteLinkRequest) (core.CompleteLinkResponse, error)
	Unlink(ctx context.Context, userID string) error
	ProcessText(ctx context.Context, req core.ProcessTextRequest) (core.ProcessResult, error)
}

type ExpiredTokenService interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type BeginLinkCommand struct {
	service MutatingService
}

func NewBeginLinkCommand(service MutatingService) *BeginLinkCommand {
	return &BeginLinkCommand{service: service}
}

func (c *BeginLinkCommand) Execute(ctx context.Context, msg BeginLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: link service is required")
	}
	out, err := c.service.BeginLink(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteLinkCommand struct {
	service MutatingService
}

func NewCompleteLinkCommand(service MutatingService) *CompleteLinkCommand {
	return &CompleteLinkCommand{service: service}
}

func (c *CompleteLinkCommand) Execute(ctx context.Context, msg CompleteLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: link service is required")
	}
	out, err := c.service.CompleteLink(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UnlinkCommand struct {
	service MutatingService
}

func NewUnlinkCommand(service MutatingService) *UnlinkCommand {
	return &UnlinkCommand{service: service}
}

func (c *UnlinkCommand) Execute(ctx context.Context, msg UnlinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: link service is required")
	}
	return c.service.Unlink(ctx, msg.UserID)
}

type ProcessTextCommand struct {
	service MutatingService
}

func NewProcessTextCommand(service MutatingService) *ProcessTextCommand {
	return &ProcessTextCommand{service: service}
}

func (c *ProcessTextCommand) Execute(ctx context.Context, msg ProcessTextMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: text service is required")
	}
	out, err := c.service.ProcessText(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PurgeExpiredCommand struct {
	service ExpiredTokenService
}

func NewPurgeExpiredCommand(service ExpiredTokenService) *PurgeExpiredCommand {
	return &PurgeExpiredCommand{service: service}
}

func (c *PurgeExpiredCommand) Execute(ctx context.Context, _ PurgeExpiredMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: purge service is required")
	}
	purged, err := c.service.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, purged)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
