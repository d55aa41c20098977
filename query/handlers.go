package query

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crosspost/core"
)

type LinkReader interface {
	GetLink(ctx context.Context, userID string) (core.UserServiceLink, error)
}

type DirectiveResolver interface {
	Resolve(ctx context.Context, payload core.ReadPayload) ([]string, error)
}

type GetLinkQuery struct {
	reader LinkReader
}

func NewGetLinkQuery(reader LinkReader) *GetLinkQuery {
	return &GetLinkQuery{reader: reader}
}

func (q *GetLinkQuery) Query(ctx context.Context, msg GetLinkMessage) (core.UserServiceLink, error) {
	if q == nil || q.reader == nil {
		return core.UserServiceLink{}, queryDependencyError("query: link reader is required")
	}
	return q.reader.GetLink(ctx, msg.UserID)
}

// ResolveDirectiveQuery resolves one read payload to media URLs. It is the
// query-side entry for callers that parsed a permalink themselves.
type ResolveDirectiveQuery struct {
	resolver DirectiveResolver
}

func NewResolveDirectiveQuery(resolver DirectiveResolver) *ResolveDirectiveQuery {
	return &ResolveDirectiveQuery{resolver: resolver}
}

func (q *ResolveDirectiveQuery) Query(ctx context.Context, msg ResolveDirectiveMessage) ([]string, error) {
	if q == nil || q.resolver == nil {
		return nil, queryDependencyError("query: directive resolver is required")
	}
	return q.resolver.Resolve(ctx, msg.Payload)
}

var (
	_ gocmd.Querier[GetLinkMessage, core.UserServiceLink] = (*GetLinkQuery)(nil)
	_ gocmd.Querier[ResolveDirectiveMessage, []string]    = (*ResolveDirectiveQuery)(nil)
)
