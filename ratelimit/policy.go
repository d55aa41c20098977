package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crosspost/core"
	goerrors "github.com/goliatone/go-errors"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

const (
	BucketRead  = "read"
	BucketWrite = "write"
)

// Key identifies one throttling bucket on a remote host.
type Key struct {
	Host   string
	Bucket string
}

// KeyForRequest buckets GET and HEAD calls as reads and everything else as
// writes, since the remote API meters posting separately.
func KeyForRequest(req core.TransportRequest) Key {
	host := ""
	if parsed, err := url.Parse(strings.TrimSpace(req.URL)); err == nil {
		host = parsed.Host
	}
	bucket := BucketWrite
	switch strings.ToUpper(strings.TrimSpace(req.Method)) {
	case "", "GET", "HEAD":
		bucket = BucketRead
	}
	return Key{Host: host, Bucket: bucket}
}

type State struct {
	Key            Key
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
}

type ThrottledError struct {
	Key        Key
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: %s bucket on %q throttled for %s", e.Key.Bucket, e.Key.Host, e.RetryAfter)
}

func (e ThrottledError) ToCrosspostError() *goerrors.Error {
	return core.NewRateLimitedError(e.Error(), e.RetryAfter).
		WithMetadata(map[string]any{
			"host":   e.Key.Host,
			"bucket": e.Key.Bucket,
		})
}

// AdaptivePolicy records the quota headers of every response and refuses
// calls while a bucket is exhausted or backing off after a 429.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key Key) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, normalizeKey(key))
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{Key: state.Key, RetryAfter: until.Sub(now)}
	}
	if state.Remaining == 0 && state.ResetAt != nil && now.Before(*state.ResetAt) {
		return ThrottledError{Key: state.Key, RetryAfter: state.ResetAt.Sub(now)}
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, key Key, res core.TransportResponse) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = normalizeKey(key)
	now := p.now()
	state, err := p.Store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = State{Key: key}
	case err != nil:
		return err
	}

	state.LastStatus = res.StatusCode
	state.UpdatedAt = now

	quota := parseQuota(res.Headers, now)
	if quota.hasLimit {
		state.Limit = quota.limit
	}
	if quota.hasRemaining {
		state.Remaining = quota.remaining
	}
	if quota.resetAt != nil {
		state.ResetAt = quota.resetAt
	}

	retryAfter, hasRetryAfter := parseRetryAfter(res.Headers, now)
	if hasRetryAfter {
		state.RetryAfter = &retryAfter
	} else {
		state.RetryAfter = nil
	}

	if isThrottledResponse(res.StatusCode, state.Remaining, quota.hasRemaining) {
		state.Attempts++
		delay := retryAfter
		if !hasRetryAfter {
			delay = p.nextBackoff(state.Attempts)
		}
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return delay
}

func isThrottledResponse(statusCode int, remaining int, hasRemaining bool) bool {
	if statusCode == 429 {
		return true
	}
	if statusCode >= 500 {
		return false
	}
	return hasRemaining && remaining == 0
}

type quota struct {
	limit        int
	hasLimit     bool
	remaining    int
	hasRemaining bool
	resetAt      *time.Time
}

// parseQuota reads the generic X-Ratelimit-* headers and the per-hour and
// per-day windows the blog API reports. The tightest window wins.
func parseQuota(headers map[string]string, now time.Time) quota {
	var out quota
	for _, window := range []string{"", "perhour-", "perday-"} {
		remaining, ok := parseHeaderInt(headers, "x-ratelimit-"+window+"remaining")
		if !ok {
			continue
		}
		if out.hasRemaining && remaining >= out.remaining {
			continue
		}
		out.remaining, out.hasRemaining = remaining, true
		if limit, ok := parseHeaderInt(headers, "x-ratelimit-"+window+"limit"); ok {
			out.limit, out.hasLimit = limit, true
		}
		if resetAt, ok := parseResetAt(headers, "x-ratelimit-"+window+"reset", now); ok {
			out.resetAt = &resetAt
		}
	}
	if !out.hasRemaining {
		if limit, ok := parseHeaderInt(headers, "x-ratelimit-limit"); ok {
			out.limit, out.hasLimit = limit, true
		}
	}
	return out
}

func parseRetryAfter(headers map[string]string, now time.Time) (time.Duration, bool) {
	raw := headerValue(headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func parseHeaderInt(headers map[string]string, key string) (int, bool) {
	value := headerValue(headers, key)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// parseResetAt accepts either an absolute unix time or a number of seconds
// until the window resets.
func parseResetAt(headers map[string]string, key string, now time.Time) (time.Time, bool) {
	value := headerValue(headers, key)
	if value == "" {
		return time.Time{}, false
	}
	raw, err := strconv.ParseInt(value, 10, 64)
	if err != nil || raw <= 0 {
		return time.Time{}, false
	}
	if raw >= 1_000_000_000 {
		return time.Unix(raw, 0).UTC(), true
	}
	return now.Add(time.Duration(raw) * time.Second), true
}

func httpDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("ratelimit: empty date")
	}
	if parsed, err := time.Parse(time.RFC1123, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123Z, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("ratelimit: invalid http date")
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func normalizeKey(key Key) Key {
	return Key{
		Host:   strings.ToLower(strings.TrimSpace(key.Host)),
		Bucket: strings.ToLower(strings.TrimSpace(key.Bucket)),
	}
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[Key]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[Key]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeKey(key)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = normalizeKey(state.Key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Key] = state
	return nil
}
