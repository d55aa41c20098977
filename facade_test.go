package crosspost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-crosspost/adapters/gocommand"
	crosspostcommand "github.com/goliatone/go-crosspost/command"
	"github.com/goliatone/go-crosspost/core"
	"github.com/goliatone/go-crosspost/providers/devkit"
	crosspostquery "github.com/goliatone/go-crosspost/query"
)

type publishSignal struct {
	done chan core.JobWorkerEvent
}

func newPublishSignal() *publishSignal {
	return &publishSignal{done: make(chan core.JobWorkerEvent, 4)}
}

func (s *publishSignal) OnStart(context.Context, core.JobWorkerEvent) {}

func (s *publishSignal) OnSuccess(_ context.Context, event core.JobWorkerEvent) {
	s.done <- event
}

func (s *publishSignal) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	s.done <- event
}

func (s *publishSignal) OnRetry(context.Context, core.JobWorkerEvent) {}

func (s *publishSignal) wait(t *testing.T) core.JobWorkerEvent {
	t.Helper()
	select {
	case event := <-s.done:
		return event
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for publish worker")
		return core.JobWorkerEvent{}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Consumer = core.ConsumerConfig{Key: "ck", Secret: "cs"}
	cfg.CallbackURL = "https://app.example/oauth/callback"
	return cfg
}

func newTumblrTransport() *devkit.FakeTransportAdapter {
	return devkit.NewFakeTransportAdapter("rest",
		devkit.TransportScript{
			Path: "/oauth/request_token",
			Response: devkit.FormResponse(200, map[string]string{
				"oauth_token":              "rt_1",
				"oauth_token_secret":       "rts_1",
				"oauth_callback_confirmed": "true",
			}),
		},
		devkit.TransportScript{
			Path: "/oauth/access_token",
			Response: devkit.FormResponse(200, map[string]string{
				"oauth_token":        "at_1",
				"oauth_token_secret": "ats_1",
			}),
		},
		devkit.TransportScript{Path: "/v2/user/info", Response: devkit.JSONResponse(200, devkit.UserInfoFixture)},
		devkit.TransportScript{Path: "/v2/blog/a.tumblr.com/posts", Response: devkit.JSONResponse(200, devkit.PhotoPostFixture)},
		devkit.TransportScript{Path: "/v2/blog/someone.tumblr.com/post", Response: devkit.JSONResponse(201, devkit.PostCreatedFixture)},
	)
}

func newTestService(t *testing.T, fake core.TransportAdapter, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithComponentFactory(NewComponentFactory(WithTransport(fake))),
	}
	svc, err := NewService(testConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func publishRequests(fake *devkit.FakeTransportAdapter) []core.TransportRequest {
	var out []core.TransportRequest
	for _, req := range fake.Requests() {
		if strings.HasSuffix(req.URL, "/v2/blog/someone.tumblr.com/post") {
			out = append(out, req)
		}
	}
	return out
}

func TestNewService_RequiresConsumerCredentials(t *testing.T) {
	if _, err := NewService(DefaultConfig()); err == nil {
		t.Fatalf("expected missing consumer credentials to fail")
	}
}

func TestService_LinkAndCrosspostEndToEnd(t *testing.T) {
	fake := newTumblrTransport()
	signal := newPublishSignal()
	svc := newTestService(t, fake, WithPublishHooks(signal))
	ctx := context.Background()

	begin, err := svc.BeginLink(ctx, BeginLinkRequest{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("begin link: %v", err)
	}
	if begin.RequestToken != "rt_1" || !strings.Contains(begin.AuthorizationURL, "oauth_token=rt_1") {
		t.Fatalf("unexpected begin response %+v", begin)
	}

	completed, err := svc.CompleteLink(ctx, CompleteLinkRequest{RequestToken: "rt_1", Verifier: "ver_1"})
	if err != nil {
		t.Fatalf("complete link: %v", err)
	}
	if completed.Link.UserID != "usr_1" || completed.Link.ExternalAccountID != "someone.tumblr.com" {
		t.Fatalf("unexpected link %+v", completed.Link)
	}

	result, err := svc.ProcessText(ctx, ProcessTextRequest{
		UserID: "usr_1",
		Text:   "look !images:https://a.tumblr.com/post/123",
	})
	if err != nil {
		t.Fatalf("process read text: %v", err)
	}
	if result.Published {
		t.Fatalf("expected no publish for a read-only message")
	}
	if len(result.Resolved) != 1 || len(result.Resolved[0].URLs) != 2 {
		t.Fatalf("unexpected resolved content %+v", result.Resolved)
	}
	if result.Resolved[0].URLs[0] != "https://64.media.tumblr.com/one_1280.jpg" {
		t.Fatalf("expected remote photo order, got %v", result.Resolved[0].URLs)
	}

	result, err = svc.ProcessText(ctx, ProcessTextRequest{UserID: "usr_1", Text: "hello world !tumble"})
	if err != nil {
		t.Fatalf("process publish text: %v", err)
	}
	if !result.Published {
		t.Fatalf("expected publish to be queued")
	}
	if strings.Contains(result.Text, "!tumble") {
		t.Fatalf("expected directive stripped from text, got %q", result.Text)
	}
	if event := signal.wait(t); event.Err != nil {
		t.Fatalf("expected publish success, got %v", event.Err)
	}

	posts := publishRequests(fake)
	if len(posts) != 1 {
		t.Fatalf("expected one publish request, got %d", len(posts))
	}
	form, err := url.ParseQuery(string(posts[0].Body))
	if err != nil {
		t.Fatalf("parse publish form: %v", err)
	}
	if !strings.Contains(form.Get("body"), "hello world") {
		t.Fatalf("unexpected publish body %q", form.Get("body"))
	}
	if header := posts[0].Headers["Authorization"]; !strings.Contains(header, `oauth_token="at_1"`) {
		t.Fatalf("expected publish signed with access token, got %q", header)
	}
}

func TestService_PublishForUnlinkedUserIsSkipped(t *testing.T) {
	fake := newTumblrTransport()
	svc := newTestService(t, fake)

	result, err := svc.ProcessText(context.Background(), ProcessTextRequest{UserID: "usr_2", Text: "hi !tumble"})
	if err != nil {
		t.Fatalf("process text: %v", err)
	}
	if result.Published {
		t.Fatalf("expected unlinked user publish to be skipped")
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(publishRequests(fake)); got != 0 {
		t.Fatalf("expected no publish requests, got %d", got)
	}
}

func TestFacade_DispatchesThroughGoCommand(t *testing.T) {
	fake := newTumblrTransport()
	svc := newTestService(t, fake)
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	registrar := gocommand.NewRegistrar(command.NewRegistry())
	defer registrar.Close()
	if err := facade.Register(registrar); err != nil {
		t.Fatalf("register facade: %v", err)
	}
	if err := registrar.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	ctx := context.Background()

	begin, err := gocommand.DispatchWithResult[crosspostcommand.BeginLinkMessage, core.BeginLinkResponse](ctx,
		crosspostcommand.BeginLinkMessage{Request: BeginLinkRequest{UserID: "usr_1"}})
	if err != nil {
		t.Fatalf("dispatch begin link: %v", err)
	}
	if _, err := gocommand.DispatchWithResult[crosspostcommand.CompleteLinkMessage, core.CompleteLinkResponse](ctx,
		crosspostcommand.CompleteLinkMessage{Request: CompleteLinkRequest{RequestToken: begin.RequestToken, Verifier: "ver_1"}}); err != nil {
		t.Fatalf("dispatch complete link: %v", err)
	}

	link, err := gocommand.Query[crosspostquery.GetLinkMessage, core.UserServiceLink](ctx, crosspostquery.GetLinkMessage{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("query link: %v", err)
	}
	if link.ExternalAccountID != "someone.tumblr.com" {
		t.Fatalf("unexpected link %+v", link)
	}

	urls, err := gocommand.Query[crosspostquery.ResolveDirectiveMessage, []string](ctx, crosspostquery.ResolveDirectiveMessage{
		Payload: ReadPayload{AccountIdentifier: "a.tumblr.com", PostID: "123"},
	})
	if err != nil {
		t.Fatalf("query resolve: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected two photo urls, got %v", urls)
	}

	if err := gocommand.Dispatch(ctx, crosspostcommand.UnlinkMessage{UserID: "usr_1"}); err != nil {
		t.Fatalf("dispatch unlink: %v", err)
	}
	if _, err := svc.GetLink(ctx, "usr_1"); !core.IsLinkNotFoundError(err) {
		t.Fatalf("expected link removed, got %v", err)
	}

	if err := gocommand.Dispatch(ctx, crosspostcommand.BeginLinkMessage{}); err == nil {
		t.Fatalf("expected missing user id to fail validation")
	}
}

func TestFacade_CallbackHandlerCompletesLink(t *testing.T) {
	fake := newTumblrTransport()
	svc := newTestService(t, fake)
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	handler, err := facade.CallbackHandler()
	if err != nil {
		t.Fatalf("callback handler: %v", err)
	}

	if _, err := svc.BeginLink(context.Background(), BeginLinkRequest{UserID: "usr_1"}); err != nil {
		t.Fatalf("begin link: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?oauth_token=rt_1&oauth_verifier=ver_1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, httptest.NewRequest(http.MethodGet, "/oauth/callback?oauth_token=rt_1&oauth_verifier=ver_1", nil))
	if replay.Code != http.StatusGone {
		t.Fatalf("expected replayed callback to be gone, got %d", replay.Code)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected nil service error")
	}
}
