package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crosspost/core"
)

const (
	defaultHandshakeTimeout     = 15 * time.Second
	defaultMaxNonceAttempts     = 4
	maxHandshakeResponseBytes   = 64 << 10
	callbackOutOfBand           = "oob"
	formContentType             = "application/x-www-form-urlencoded"
	oauthParamConsumerKey       = "oauth_consumer_key"
	oauthParamToken             = "oauth_token"
	oauthParamTokenSecret       = "oauth_token_secret"
	oauthParamNonce             = "oauth_nonce"
	oauthParamTimestamp         = "oauth_timestamp"
	oauthParamSignatureMethod   = "oauth_signature_method"
	oauthParamVersion           = "oauth_version"
	oauthParamSignature         = "oauth_signature"
	oauthParamCallback          = "oauth_callback"
	oauthParamCallbackConfirmed = "oauth_callback_confirmed"
	oauthParamVerifier          = "oauth_verifier"
)

type ClientConfig struct {
	Consumer           core.ConsumerCredentials
	RequestTokenURL    string
	AuthorizeURL       string
	AccessTokenURL     string
	SignatureTransport string
	Timeout            time.Duration
	MaxNonceAttempts   int
}

// ClientConfigFromConfig maps resolved service configuration onto the client.
func ClientConfigFromConfig(cfg core.Config) ClientConfig {
	return ClientConfig{
		Consumer:           cfg.Credentials(),
		RequestTokenURL:    cfg.Endpoints.RequestTokenURL,
		AuthorizeURL:       cfg.Endpoints.AuthorizeURL,
		AccessTokenURL:     cfg.Endpoints.AccessTokenURL,
		SignatureTransport: cfg.OAuth.SignatureTransport,
		Timeout:            cfg.OAuth.HTTPTimeout,
	}
}

// OAuth1Client runs the request token, authorize and access token legs and
// signs API calls made with the resulting access token.
type OAuth1Client struct {
	config    ClientConfig
	engine    SignatureEngine
	transport core.TransportAdapter
	tokens    core.RequestTokenStore
	nonces    core.NonceLedger
	Now       func() time.Time
	NonceFunc func() (string, error)
}

type ClientOption func(*OAuth1Client)

func WithNonceLedger(ledger core.NonceLedger) ClientOption {
	return func(c *OAuth1Client) {
		c.nonces = ledger
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *OAuth1Client) {
		if now != nil {
			c.Now = now
		}
	}
}

func WithNonceSource(source func() (string, error)) ClientOption {
	return func(c *OAuth1Client) {
		if source != nil {
			c.NonceFunc = source
		}
	}
}

func NewOAuth1Client(
	cfg ClientConfig,
	transport core.TransportAdapter,
	tokens core.RequestTokenStore,
	opts ...ClientOption,
) (*OAuth1Client, error) {
	cfg.Consumer.Key = strings.TrimSpace(cfg.Consumer.Key)
	cfg.Consumer.Secret = strings.TrimSpace(cfg.Consumer.Secret)
	if cfg.Consumer.Key == "" || cfg.Consumer.Secret == "" {
		return nil, fmt.Errorf("auth: consumer credentials are required")
	}
	if transport == nil {
		return nil, fmt.Errorf("auth: transport is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("auth: request token store is required")
	}
	cfg.RequestTokenURL = strings.TrimSpace(cfg.RequestTokenURL)
	cfg.AuthorizeURL = strings.TrimSpace(cfg.AuthorizeURL)
	cfg.AccessTokenURL = strings.TrimSpace(cfg.AccessTokenURL)
	if cfg.RequestTokenURL == "" || cfg.AuthorizeURL == "" || cfg.AccessTokenURL == "" {
		return nil, fmt.Errorf("auth: handshake endpoints are required")
	}
	cfg.SignatureTransport = strings.ToLower(strings.TrimSpace(cfg.SignatureTransport))
	if cfg.SignatureTransport == "" {
		cfg.SignatureTransport = core.SignatureTransportHeader
	}
	if cfg.SignatureTransport != core.SignatureTransportHeader && cfg.SignatureTransport != core.SignatureTransportQuery {
		return nil, fmt.Errorf("auth: signature transport %q is invalid", cfg.SignatureTransport)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHandshakeTimeout
	}
	if cfg.MaxNonceAttempts <= 0 {
		cfg.MaxNonceAttempts = defaultMaxNonceAttempts
	}

	client := &OAuth1Client{
		config:    cfg,
		transport: transport,
		tokens:    tokens,
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NonceFunc: generateNonce,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// BeginHandshake obtains a request token, records it for the user, and
// returns the URL the user must visit to authorize it.
func (c *OAuth1Client) BeginHandshake(ctx context.Context, req core.BeginHandshakeRequest) (core.HandshakeStart, error) {
	if c == nil {
		return core.HandshakeStart{}, fmt.Errorf("auth: oauth1 client is not configured")
	}
	callbackURL := strings.TrimSpace(req.CallbackURL)
	if callbackURL == "" {
		callbackURL = callbackOutOfBand
	}

	signed, err := c.sign(ctx, http.MethodPost, c.config.RequestTokenURL, nil, "", "", map[string]string{
		oauthParamCallback: callbackURL,
	})
	if err != nil {
		return core.HandshakeStart{}, err
	}
	values, err := c.exchange(ctx, signed, "request token")
	if err != nil {
		return core.HandshakeStart{}, err
	}
	if confirmed := strings.TrimSpace(values.Get(oauthParamCallbackConfirmed)); confirmed != "" && confirmed != "true" {
		return core.HandshakeStart{}, core.NewHandshakeError("auth: request token callback was not confirmed", nil)
	}

	token := core.RequestToken{
		Token:       strings.TrimSpace(values.Get(oauthParamToken)),
		TokenSecret: strings.TrimSpace(values.Get(oauthParamTokenSecret)),
		UserID:      strings.TrimSpace(req.UserID),
	}
	if token.Token == "" || token.TokenSecret == "" {
		return core.HandshakeStart{}, core.NewHandshakeError("auth: request token response is missing token fields", nil)
	}
	if err := c.tokens.PutRequestToken(ctx, token); err != nil {
		return core.HandshakeStart{}, err
	}

	authorizationURL, err := c.authorizationURL(token.Token)
	if err != nil {
		return core.HandshakeStart{}, err
	}
	return core.HandshakeStart{AuthorizationURL: authorizationURL, Token: token}, nil
}

// CompleteHandshake consumes the request token and exchanges it, together
// with the verifier, for an access token.
func (c *OAuth1Client) CompleteHandshake(ctx context.Context, requestToken string, verifier string) (core.AccessToken, error) {
	if c == nil {
		return core.AccessToken{}, fmt.Errorf("auth: oauth1 client is not configured")
	}
	record, ok, err := c.tokens.TakeRequestToken(ctx, requestToken)
	if err != nil {
		return core.AccessToken{}, err
	}
	if !ok {
		return core.AccessToken{}, core.NewInvalidTokenError("auth: request token is unknown, expired, or already used")
	}

	signed, err := c.sign(ctx, http.MethodPost, c.config.AccessTokenURL, nil, record.Token, record.TokenSecret, map[string]string{
		oauthParamVerifier: strings.TrimSpace(verifier),
	})
	if err != nil {
		return core.AccessToken{}, err
	}
	values, err := c.exchange(ctx, signed, "access token")
	if err != nil {
		return core.AccessToken{}, err
	}
	access := core.AccessToken{
		Token:       strings.TrimSpace(values.Get(oauthParamToken)),
		TokenSecret: strings.TrimSpace(values.Get(oauthParamTokenSecret)),
		UserID:      record.UserID,
	}
	if !access.Valid() {
		return core.AccessToken{}, core.NewHandshakeError("auth: access token response is missing token fields", nil)
	}
	return access, nil
}

// SignedRequest adds the OAuth protocol parameters and signature to req.
func (c *OAuth1Client) SignedRequest(ctx context.Context, req core.SignRequest) (core.SignedRequest, error) {
	if c == nil {
		return core.SignedRequest{}, fmt.Errorf("auth: oauth1 client is not configured")
	}
	return c.sign(ctx, req.Method, req.URL, req.Params, req.Token, req.TokenSecret, req.Extra)
}

// SignedRequestFor signs a call made on behalf of an access token.
func (c *OAuth1Client) SignedRequestFor(
	ctx context.Context,
	method string,
	rawURL string,
	params map[string]string,
	token core.AccessToken,
) (core.SignedRequest, error) {
	return c.SignedRequest(ctx, core.SignRequest{
		Method:      method,
		URL:         rawURL,
		Params:      params,
		Token:       token.Token,
		TokenSecret: token.TokenSecret,
	})
}

// Timeout is the bound applied to every handshake leg.
func (c *OAuth1Client) Timeout() time.Duration {
	if c == nil {
		return defaultHandshakeTimeout
	}
	return c.config.Timeout
}

func (c *OAuth1Client) sign(
	ctx context.Context,
	method string,
	rawURL string,
	params map[string]string,
	token string,
	tokenSecret string,
	extra map[string]string,
) (core.SignedRequest, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return core.SignedRequest{}, core.NewBadInputError(fmt.Sprintf("auth: invalid request url: %v", err))
	}
	baseURL, err := NormalizeBaseURL(rawURL)
	if err != nil {
		return core.SignedRequest{}, err
	}

	nonce, timestamp, err := c.claimNonce(ctx, token)
	if err != nil {
		return core.SignedRequest{}, err
	}
	protocol := map[string]string{
		oauthParamConsumerKey:     c.config.Consumer.Key,
		oauthParamNonce:           nonce,
		oauthParamTimestamp:       timestamp,
		oauthParamSignatureMethod: SignatureMethodHMACSHA1,
		oauthParamVersion:         OAuthVersion,
	}
	if strings.TrimSpace(token) != "" {
		protocol[oauthParamToken] = strings.TrimSpace(token)
	}
	for key, value := range extra {
		if strings.HasPrefix(key, "oauth_") {
			protocol[key] = value
		}
	}

	signatureParams := make(map[string]string, len(params)+len(protocol))
	for key, values := range parsed.Query() {
		if len(values) > 0 {
			signatureParams[key] = values[0]
		}
	}
	for key, value := range params {
		signatureParams[key] = value
	}
	for key, value := range protocol {
		signatureParams[key] = value
	}

	signature, err := c.engine.Sign(method, baseURL, signatureParams, c.config.Consumer.Secret, tokenSecret)
	if err != nil {
		return core.SignedRequest{}, err
	}
	protocol[oauthParamSignature] = signature

	signed := core.SignedRequest{
		Method:  method,
		URL:     strings.TrimSpace(rawURL),
		Query:   map[string]string{},
		Form:    map[string]string{},
		Headers: map[string]string{},
	}
	if method == http.MethodGet || method == http.MethodDelete || method == http.MethodHead {
		for key, value := range params {
			signed.Query[key] = value
		}
	} else {
		for key, value := range params {
			signed.Form[key] = value
		}
	}

	if c.config.SignatureTransport == core.SignatureTransportQuery {
		for key, value := range protocol {
			signed.Query[key] = value
		}
		return signed, nil
	}
	header, err := authorizationHeader(protocol)
	if err != nil {
		return core.SignedRequest{}, err
	}
	signed.Headers["Authorization"] = header
	return signed, nil
}

// claimNonce draws nonces until the ledger accepts one. The timestamp is
// taken fresh on every call.
func (c *OAuth1Client) claimNonce(ctx context.Context, token string) (string, string, error) {
	for attempt := 0; attempt < c.config.MaxNonceAttempts; attempt++ {
		nonce, err := c.NonceFunc()
		if err != nil {
			return "", "", fmt.Errorf("auth: generate nonce: %w", err)
		}
		timestamp := strconv.FormatInt(c.now().Unix(), 10)
		if c.nonces == nil {
			return nonce, timestamp, nil
		}
		claimed, err := c.nonces.Claim(ctx, core.NonceKey(c.config.Consumer.Key, token, timestamp, nonce), 0)
		if err != nil {
			return "", "", err
		}
		if claimed {
			return nonce, timestamp, nil
		}
	}
	return "", "", fmt.Errorf("auth: could not obtain an unused nonce after %d attempts", c.config.MaxNonceAttempts)
}

func (c *OAuth1Client) exchange(ctx context.Context, signed core.SignedRequest, leg string) (url.Values, error) {
	transportReq, err := NewTransportRequest(signed, c.config.Timeout)
	if err != nil {
		return nil, err
	}
	transportReq.MaxResponseBodyBytes = maxHandshakeResponseBytes
	response, err := c.transport.Do(ctx, transportReq)
	if err != nil {
		return nil, core.NewHandshakeError(fmt.Sprintf("auth: %s request failed", leg), err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, core.NewHandshakeError(
			fmt.Sprintf("auth: %s endpoint returned status %d", leg, response.StatusCode),
			nil,
		).WithMetadata(map[string]any{"status_code": response.StatusCode})
	}
	body := strings.TrimSpace(string(response.Body))
	if body == "" {
		return nil, core.NewHandshakeError(fmt.Sprintf("auth: %s response is empty", leg), nil)
	}
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, core.NewHandshakeError(fmt.Sprintf("auth: %s response is malformed", leg), err)
	}
	return values, nil
}

func (c *OAuth1Client) authorizationURL(token string) (string, error) {
	parsed, err := url.Parse(c.config.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("auth: invalid authorize url: %w", err)
	}
	query := parsed.Query()
	query.Set(oauthParamToken, token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *OAuth1Client) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// NewTransportRequest converts a signed descriptor into a transport request,
// encoding Form as the request body.
func NewTransportRequest(signed core.SignedRequest, timeout time.Duration) (core.TransportRequest, error) {
	req := core.TransportRequest{
		Method:  signed.Method,
		URL:     signed.URL,
		Headers: core.CloneStringMap(signed.Headers),
		Query:   core.CloneStringMap(signed.Query),
		Timeout: timeout,
	}
	if len(signed.Form) > 0 {
		body, err := EncodeForm(signed.Form)
		if err != nil {
			return core.TransportRequest{}, err
		}
		req.Body = []byte(body)
		req.Headers["Content-Type"] = formContentType
	}
	return req, nil
}

func authorizationHeader(protocol map[string]string) (string, error) {
	keys := make([]string, 0, len(protocol))
	for key := range protocol {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		encoded, err := PercentEncode(protocol[key])
		if err != nil {
			return "", err
		}
		parts = append(parts, key+`="`+encoded+`"`)
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

func generateNonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

var (
	_ core.HandshakeClient = (*OAuth1Client)(nil)
	_ core.RequestSigner   = (*OAuth1Client)(nil)
)
