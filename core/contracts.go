package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// RequestSigner produces signed request descriptors for a consumer identity.
type RequestSigner interface {
	SignedRequest(ctx context.Context, req SignRequest) (SignedRequest, error)
}

// HandshakeClient runs the three-legged authorization flow.
type HandshakeClient interface {
	BeginHandshake(ctx context.Context, req BeginHandshakeRequest) (HandshakeStart, error)
	CompleteHandshake(ctx context.Context, requestToken string, verifier string) (AccessToken, error)
}

// AccountResolver reports the remote account an access token belongs to.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, token AccessToken) (string, error)
}

type DirectiveScanner interface {
	Scan(text string) ScanResult
}

// ContentResolver fetches the media URLs a read directive points at. A post
// without media resolves to an empty slice and a nil error.
type ContentResolver interface {
	Resolve(ctx context.Context, payload ReadPayload) ([]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, link UserServiceLink, payload PublishPayload) error
}

// PublishDispatcher hands a publish to background workers and reports
// whether it was queued.
type PublishDispatcher interface {
	Dispatch(ctx context.Context, userID string, payload PublishPayload) (bool, error)
}

// RequestTokenStore tracks in-flight request tokens. TakeRequestToken removes
// the token atomically so a single caller observes it.
type RequestTokenStore interface {
	PutRequestToken(ctx context.Context, token RequestToken) error
	TakeRequestToken(ctx context.Context, token string) (RequestToken, bool, error)
}

type ExpiredTokenPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// LinkReader is the read side used before every publish.
type LinkReader interface {
	GetAccessLink(ctx context.Context, userID string) (UserServiceLink, bool, error)
}

// TokenStore holds request tokens and the access links they are exchanged
// for.
type TokenStore interface {
	RequestTokenStore
	LinkReader
	PutAccessLink(ctx context.Context, link UserServiceLink) (UserServiceLink, error)
	DeleteAccessLink(ctx context.Context, userID string) error
}

// LinkStore persists one service link per user.
type LinkStore interface {
	SaveLink(ctx context.Context, link UserServiceLink) (UserServiceLink, error)
	GetLink(ctx context.Context, userID string) (UserServiceLink, bool, error)
	DeleteLink(ctx context.Context, userID string) error
}

// SecretProvider seals token secrets before they are persisted.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// NonceLedger records nonce claims so a nonce is not reused inside its window.
type NonceLedger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
