package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-crosspost/core"
)

// Transport consults an AdaptivePolicy around every call of the wrapped
// adapter. Throttled calls fail without reaching the network.
type Transport struct {
	next   core.TransportAdapter
	policy *AdaptivePolicy
	keyFn  func(core.TransportRequest) Key
}

type TransportOption func(*Transport)

func WithKeyFunc(fn func(core.TransportRequest) Key) TransportOption {
	return func(t *Transport) {
		if fn != nil {
			t.keyFn = fn
		}
	}
}

func NewTransport(next core.TransportAdapter, policy *AdaptivePolicy, opts ...TransportOption) (*Transport, error) {
	if next == nil {
		return nil, fmt.Errorf("ratelimit: transport adapter is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("ratelimit: policy is required")
	}
	t := &Transport{next: next, policy: policy, keyFn: KeyForRequest}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

func (t *Transport) Kind() string {
	return t.next.Kind()
}

func (t *Transport) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	key := t.keyFn(req)
	if err := t.policy.BeforeCall(ctx, key); err != nil {
		var throttled ThrottledError
		if errors.As(err, &throttled) {
			return core.TransportResponse{}, throttled.ToCrosspostError()
		}
		return core.TransportResponse{}, err
	}
	res, err := t.next.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if afterErr := t.policy.AfterCall(ctx, key, res); afterErr != nil {
		return res, afterErr
	}
	return res, nil
}

var _ core.TransportAdapter = (*Transport)(nil)
