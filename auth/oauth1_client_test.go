package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-crosspost/core"
	"github.com/goliatone/go-crosspost/providers/devkit"
)

func fixedClock() time.Time {
	return time.Unix(1700000000, 0).UTC()
}

func sequenceNonces(values ...string) func() (string, error) {
	index := 0
	return func() (string, error) {
		if index >= len(values) {
			return "", errors.New("nonce sequence exhausted")
		}
		value := values[index]
		index++
		return value, nil
	}
}

func testClientConfig() ClientConfig {
	return ClientConfig{
		Consumer:        core.ConsumerCredentials{Key: "ck", Secret: "cs"},
		RequestTokenURL: core.DefaultRequestTokenURL,
		AuthorizeURL:    core.DefaultAuthorizeURL,
		AccessTokenURL:  core.DefaultAccessTokenURL,
	}
}

func handshakeTransport() *devkit.FakeTransportAdapter {
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
	)
}

func newTestClient(t *testing.T, transport core.TransportAdapter, tokens core.RequestTokenStore, nonces ...string) *OAuth1Client {
	t.Helper()
	client, err := NewOAuth1Client(testClientConfig(), transport, tokens,
		WithClock(fixedClock),
		WithNonceSource(sequenceNonces(nonces...)),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestOAuth1Client_BeginHandshakeSignsRequestTokenLeg(t *testing.T) {
	transport := handshakeTransport()
	tokens := core.NewMemoryRequestTokenStore(time.Minute)
	client := newTestClient(t, transport, tokens, "n1")

	start, err := client.BeginHandshake(context.Background(), core.BeginHandshakeRequest{
		UserID:      "usr_1",
		CallbackURL: "https://app.example/oauth/callback",
	})
	if err != nil {
		t.Fatalf("begin handshake: %v", err)
	}
	if start.AuthorizationURL != "https://www.tumblr.com/oauth/authorize?oauth_token=rt_1" {
		t.Fatalf("unexpected authorization url %q", start.AuthorizationURL)
	}
	if start.Token.UserID != "usr_1" || start.Token.TokenSecret != "rts_1" {
		t.Fatalf("unexpected request token %#v", start.Token)
	}

	requests := transport.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected one transport request, got %d", len(requests))
	}
	req := requests[0]
	if req.Method != "POST" || req.URL != core.DefaultRequestTokenURL {
		t.Fatalf("unexpected request %s %s", req.Method, req.URL)
	}
	header := req.Headers["Authorization"]
	for _, fragment := range []string{
		`OAuth oauth_callback="https%3A%2F%2Fapp.example%2Foauth%2Fcallback"`,
		`oauth_consumer_key="ck"`,
		`oauth_nonce="n1"`,
		`oauth_timestamp="1700000000"`,
		`oauth_signature="SZpHPkClm0ToqD5ljsXJ9GVYiKc%3D"`,
	} {
		if !strings.Contains(header, fragment) {
			t.Fatalf("expected header to contain %s, got %s", fragment, header)
		}
	}
	if strings.Contains(header, "oauth_token=") {
		t.Fatalf("request token leg must not carry a token: %s", header)
	}
	if tokens.Len() != 1 {
		t.Fatalf("expected request token to be stored")
	}
}

func TestOAuth1Client_CompleteHandshakeConsumesRequestToken(t *testing.T) {
	transport := handshakeTransport()
	tokens := core.NewMemoryRequestTokenStore(time.Minute)
	tokens.Now = fixedClock
	client := newTestClient(t, transport, tokens, "n1", "n2", "n3")

	if _, err := client.BeginHandshake(context.Background(), core.BeginHandshakeRequest{
		UserID:      "usr_1",
		CallbackURL: "https://app.example/oauth/callback",
	}); err != nil {
		t.Fatalf("begin handshake: %v", err)
	}

	access, err := client.CompleteHandshake(context.Background(), "rt_1", "ver_1")
	if err != nil {
		t.Fatalf("complete handshake: %v", err)
	}
	if access.Token != "at_1" || access.TokenSecret != "ats_1" || access.UserID != "usr_1" {
		t.Fatalf("unexpected access token %#v", access)
	}

	requests := transport.Requests()
	header := requests[len(requests)-1].Headers["Authorization"]
	for _, fragment := range []string{
		`oauth_token="rt_1"`,
		`oauth_verifier="ver_1"`,
		`oauth_signature="Ci6zM3vrXXNkaedAfEbEGH8Cq%2BI%3D"`,
	} {
		if !strings.Contains(header, fragment) {
			t.Fatalf("expected header to contain %s, got %s", fragment, header)
		}
	}

	_, err = client.CompleteHandshake(context.Background(), "rt_1", "ver_1")
	if !core.IsInvalidTokenError(err) {
		t.Fatalf("expected invalid token on reuse, got %v", err)
	}
	if got := len(transport.Requests()); got != 2 {
		t.Fatalf("expected reused token to skip the network, got %d requests", got)
	}
}

func TestOAuth1Client_TokenExpiryFollowsStoreClock(t *testing.T) {
	transport := handshakeTransport()
	tokens := core.NewMemoryRequestTokenStore(10 * time.Minute)
	storeNow := fixedClock().Add(11 * time.Minute)
	tokens.Now = func() time.Time { return storeNow }
	client := newTestClient(t, transport, tokens, "n1", "n2")

	if _, err := client.BeginHandshake(context.Background(), core.BeginHandshakeRequest{
		UserID:      "usr_1",
		CallbackURL: "https://app.example/oauth/callback",
	}); err != nil {
		t.Fatalf("begin handshake: %v", err)
	}
	if _, err := client.CompleteHandshake(context.Background(), "rt_1", "ver_1"); err != nil {
		t.Fatalf("expected fresh token to complete despite client clock skew, got %v", err)
	}
}

func TestOAuth1Client_UnknownTokenIsInvalid(t *testing.T) {
	client := newTestClient(t, handshakeTransport(), core.NewMemoryRequestTokenStore(time.Minute), "n1")
	_, err := client.CompleteHandshake(context.Background(), "missing", "ver")
	if !core.IsInvalidTokenError(err) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestOAuth1Client_RejectedLegIsHandshakeError(t *testing.T) {
	transport := devkit.NewFakeTransportAdapter("rest", devkit.TransportScript{
		Response: core.TransportResponse{StatusCode: 401, Body: []byte("oauth_problem=signature_invalid")},
	})
	tokens := core.NewMemoryRequestTokenStore(time.Minute)
	client := newTestClient(t, transport, tokens, "n1")

	_, err := client.BeginHandshake(context.Background(), core.BeginHandshakeRequest{UserID: "usr_1"})
	if !core.IsHandshakeError(err) {
		t.Fatalf("expected handshake error, got %v", err)
	}
	if tokens.Len() != 0 {
		t.Fatalf("expected no request token to be stored")
	}
}

func TestOAuth1Client_TransportFailureIsHandshakeError(t *testing.T) {
	transport := devkit.NewFakeTransportAdapter("rest", devkit.TransportScript{Err: errors.New("connection refused")})
	client := newTestClient(t, transport, core.NewMemoryRequestTokenStore(time.Minute), "n1")

	_, err := client.BeginHandshake(context.Background(), core.BeginHandshakeRequest{UserID: "usr_1"})
	if !core.IsHandshakeError(err) {
		t.Fatalf("expected handshake error, got %v", err)
	}
}

func TestOAuth1Client_UnconfirmedCallbackFails(t *testing.T) {
	transport := devkit.NewFakeTransportAdapter("rest", devkit.TransportScript{
		Response: devkit.FormResponse(200, map[string]string{
			"oauth_token":              "rt_1",
			"oauth_token_secret":       "rts_1",
			"oauth_callback_confirmed": "false",
		}),
	})
	client := newTestClient(t, transport, core.NewMemoryRequestTokenStore(time.Minute), "n1")
	_, err := client.BeginHandshake(context.Background(), core.BeginHandshakeRequest{UserID: "usr_1"})
	if !core.IsHandshakeError(err) {
		t.Fatalf("expected handshake error, got %v", err)
	}
}

func TestOAuth1Client_QuerySignatureTransport(t *testing.T) {
	cfg := testClientConfig()
	cfg.SignatureTransport = core.SignatureTransportQuery
	client, err := NewOAuth1Client(cfg, handshakeTransport(), core.NewMemoryRequestTokenStore(time.Minute),
		WithClock(fixedClock),
		WithNonceSource(sequenceNonces("n1")),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	signed, err := client.SignedRequestFor(context.Background(), "GET",
		"https://api.tumblr.com/v2/user/info", map[string]string{"limit": "1"},
		core.AccessToken{Token: "at_1", TokenSecret: "ats_1"},
	)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, ok := signed.Headers["Authorization"]; ok {
		t.Fatalf("query transport must not set the authorization header")
	}
	if signed.Query["oauth_token"] != "at_1" || signed.Query["oauth_signature"] == "" {
		t.Fatalf("expected protocol params in query, got %#v", signed.Query)
	}
	if signed.Query["limit"] != "1" {
		t.Fatalf("expected request params in query, got %#v", signed.Query)
	}
}

func TestOAuth1Client_SignedPostCarriesFormBody(t *testing.T) {
	client := newTestClient(t, handshakeTransport(), core.NewMemoryRequestTokenStore(time.Minute), "n1")
	signed, err := client.SignedRequestFor(context.Background(), "post",
		"https://api.tumblr.com/v2/blog/a.tumblr.com/post",
		map[string]string{"type": "text", "body": "hello world"},
		core.AccessToken{Token: "at_1", TokenSecret: "ats_1"},
	)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req, err := NewTransportRequest(signed, time.Second)
	if err != nil {
		t.Fatalf("transport request: %v", err)
	}
	if req.Method != "POST" || req.Headers["Content-Type"] != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected transport request %#v", req)
	}
	values, err := url.ParseQuery(string(req.Body))
	if err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if values.Get("body") != "hello world" || values.Get("type") != "text" {
		t.Fatalf("unexpected form body %q", req.Body)
	}
	if !strings.HasPrefix(req.Headers["Authorization"], "OAuth ") {
		t.Fatalf("expected authorization header")
	}
}

func TestOAuth1Client_RegeneratesClaimedNonce(t *testing.T) {
	ledger := core.NewMemoryNonceLedger(time.Minute)
	claimed, err := ledger.Claim(context.Background(), core.NonceKey("ck", "", "1700000000", "dup"), 0)
	if err != nil || !claimed {
		t.Fatalf("pre-claim nonce: %v %v", claimed, err)
	}
	transport := handshakeTransport()
	client, err := NewOAuth1Client(testClientConfig(), transport, core.NewMemoryRequestTokenStore(time.Minute),
		WithClock(fixedClock),
		WithNonceSource(sequenceNonces("dup", "fresh")),
		WithNonceLedger(ledger),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.BeginHandshake(context.Background(), core.BeginHandshakeRequest{UserID: "usr_1"}); err != nil {
		t.Fatalf("begin handshake: %v", err)
	}
	header := transport.Requests()[0].Headers["Authorization"]
	if !strings.Contains(header, `oauth_nonce="fresh"`) {
		t.Fatalf("expected regenerated nonce, got %s", header)
	}
}

func TestNewOAuth1Client_Validation(t *testing.T) {
	tokens := core.NewMemoryRequestTokenStore(time.Minute)
	transport := handshakeTransport()
	cfg := testClientConfig()
	cfg.Consumer.Secret = ""
	if _, err := NewOAuth1Client(cfg, transport, tokens); err == nil {
		t.Fatalf("expected missing consumer secret to fail")
	}
	if _, err := NewOAuth1Client(testClientConfig(), nil, tokens); err == nil {
		t.Fatalf("expected missing transport to fail")
	}
	cfg = testClientConfig()
	cfg.SignatureTransport = "body"
	if _, err := NewOAuth1Client(cfg, transport, tokens); err == nil {
		t.Fatalf("expected invalid signature transport to fail")
	}
}
