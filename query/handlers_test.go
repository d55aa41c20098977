package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-crosspost/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubLinkReader struct {
	links map[string]core.UserServiceLink
}

func (s stubLinkReader) GetLink(_ context.Context, userID string) (core.UserServiceLink, error) {
	link, ok := s.links[userID]
	if !ok {
		return core.UserServiceLink{}, core.NewLinkNotFoundError(userID)
	}
	return link, nil
}

type stubResolver struct {
	urls []string
	got  *core.ReadPayload
}

func (s stubResolver) Resolve(_ context.Context, payload core.ReadPayload) ([]string, error) {
	if s.got != nil {
		*s.got = payload
	}
	return s.urls, nil
}

func TestGetLinkQuery_DelegatesToReader(t *testing.T) {
	reader := stubLinkReader{links: map[string]core.UserServiceLink{
		"usr_1": {ID: "lnk_1", UserID: "usr_1", ExternalAccountID: "someone.tumblr.com"},
	}}
	q := NewGetLinkQuery(reader)

	link, err := q.Query(context.Background(), GetLinkMessage{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("query link: %v", err)
	}
	if link.ExternalAccountID != "someone.tumblr.com" {
		t.Fatalf("unexpected link %#v", link)
	}

	if _, err := q.Query(context.Background(), GetLinkMessage{UserID: "usr_2"}); !core.IsLinkNotFoundError(err) {
		t.Fatalf("expected link not found, got %v", err)
	}
}

func TestResolveDirectiveQuery_DelegatesPayload(t *testing.T) {
	var got core.ReadPayload
	q := NewResolveDirectiveQuery(stubResolver{urls: []string{"https://64.media.tumblr.com/one_1280.jpg"}, got: &got})
	urls, err := q.Query(context.Background(), ResolveDirectiveMessage{
		Payload: core.ReadPayload{AccountIdentifier: "blog.tumblr.com", PostID: "123"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(urls) != 1 || got.PostID != "123" {
		t.Fatalf("unexpected resolve result urls=%v payload=%#v", urls, got)
	}
}

func TestQueries_ValidationAndDependencyErrors(t *testing.T) {
	for name, msg := range map[string]interface{ Validate() error }{
		"get link":        GetLinkMessage{},
		"resolve post":    ResolveDirectiveMessage{Payload: core.ReadPayload{AccountIdentifier: "blog.tumblr.com"}},
		"resolve account": ResolveDirectiveMessage{Payload: core.ReadPayload{PostID: "1"}},
	} {
		err := msg.Validate()
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", name, err)
		}
		if rich.TextCode != core.CrosspostErrorBadInput {
			t.Fatalf("%s: expected bad input text code, got %q", name, rich.TextCode)
		}
	}

	var q *GetLinkQuery
	_, err := q.Query(context.Background(), GetLinkMessage{UserID: "usr_1"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal dependency error, got %v", err)
	}
}
