package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Consumer = ConsumerConfig{Key: "ck", Secret: "cs"}
	cfg.CallbackURL = "https://app.example/oauth/callback"
	return cfg
}

type stubHandshakeClient struct {
	mu        sync.Mutex
	tokens    TokenStore
	begun     []BeginHandshakeRequest
	beginErr  error
	access    AccessToken
	accessErr error
}

func (c *stubHandshakeClient) BeginHandshake(ctx context.Context, req BeginHandshakeRequest) (HandshakeStart, error) {
	c.mu.Lock()
	c.begun = append(c.begun, req)
	c.mu.Unlock()
	if c.beginErr != nil {
		return HandshakeStart{}, c.beginErr
	}
	token := RequestToken{Token: "rt_1", TokenSecret: "rts_1", UserID: req.UserID}
	if c.tokens != nil {
		if err := c.tokens.PutRequestToken(ctx, token); err != nil {
			return HandshakeStart{}, err
		}
	}
	return HandshakeStart{
		AuthorizationURL: "https://www.tumblr.com/oauth/authorize?oauth_token=rt_1",
		Token:            token,
	}, nil
}

func (c *stubHandshakeClient) CompleteHandshake(ctx context.Context, requestToken string, _ string) (AccessToken, error) {
	if c.accessErr != nil {
		return AccessToken{}, c.accessErr
	}
	userID := c.access.UserID
	if c.tokens != nil {
		record, ok, err := c.tokens.TakeRequestToken(ctx, requestToken)
		if err != nil {
			return AccessToken{}, err
		}
		if !ok {
			return AccessToken{}, NewInvalidTokenError("request token is unknown or expired")
		}
		userID = record.UserID
	}
	access := c.access
	access.UserID = userID
	return access, nil
}

type stubAccountResolver struct {
	account string
	err     error
}

func (r stubAccountResolver) ResolveAccount(context.Context, AccessToken) (string, error) {
	return r.account, r.err
}

type stubScanner struct {
	result ScanResult
}

func (s stubScanner) Scan(string) ScanResult {
	return s.result
}

type stubContentResolver struct {
	mu     sync.Mutex
	urls   map[string][]string
	errs   map[string]error
	delay  time.Duration
	called int
}

func (r *stubContentResolver) Resolve(ctx context.Context, payload ReadPayload) ([]string, error) {
	r.mu.Lock()
	r.called++
	r.mu.Unlock()
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	key := payload.AccountIdentifier + "/" + payload.PostID
	if err := r.errs[key]; err != nil {
		return nil, err
	}
	return append([]string(nil), r.urls[key]...), nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []PublishPayload
	links     []UserServiceLink
	err       error
	release   chan struct{}
	done      chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{done: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(ctx context.Context, link UserServiceLink, payload PublishPayload) error {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			p.done <- struct{}{}
			return ctx.Err()
		}
	}
	p.mu.Lock()
	p.published = append(p.published, payload)
	p.links = append(p.links, link)
	p.mu.Unlock()
	p.done <- struct{}{}
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func (p *recordingPublisher) wait(n int, timeout time.Duration) error {
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-p.done:
		case <-deadline:
			return fmt.Errorf("timed out waiting for publish %d", i+1)
		}
	}
	return nil
}

type recordingHook struct {
	mu       sync.Mutex
	started  int
	success  int
	failures []error
}

func (h *recordingHook) OnStart(context.Context, JobWorkerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started++
}

func (h *recordingHook) OnSuccess(context.Context, JobWorkerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.success++
}

func (h *recordingHook) OnFailure(_ context.Context, event JobWorkerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, event.Err)
}

func (h *recordingHook) OnRetry(context.Context, JobWorkerEvent) {}

func linkedStore(t interface{ Fatalf(string, ...any) }, userID string) *CompositeTokenStore {
	store := NewMemoryTokenStore(time.Minute)
	_, err := store.PutAccessLink(context.Background(), UserServiceLink{
		UserID:            userID,
		ExternalAccountID: "me.tumblr.com",
		AccessToken:       AccessToken{Token: "at", TokenSecret: "ats"},
	})
	if err != nil {
		t.Fatalf("seed link: %v", err)
	}
	return store
}
