package devkit

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crosspost/core"
)

// TransportScript is one canned reply. A script with a non-empty Path only
// answers requests whose URL path matches it.
type TransportScript struct {
	Path     string
	Response core.TransportResponse
	Err      error
	Delay    time.Duration
}

// FakeTransportAdapter replays scripted responses and records every request.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	scripts  []TransportScript
	cursor   int
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
	}
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	a.requests = append(a.requests, cloneTransportRequest(req))
	script, ok := a.nextScriptLocked(req)
	a.mu.Unlock()

	if !ok {
		return core.TransportResponse{
			StatusCode: 200,
			Headers:    map[string]string{},
			Metadata:   map[string]any{"kind": a.kind},
		}, nil
	}
	if script.Delay > 0 {
		if ctx == nil {
			ctx = context.Background()
		}
		if req.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, req.Timeout)
			defer cancel()
		}
		select {
		case <-time.After(script.Delay):
		case <-ctx.Done():
			return core.TransportResponse{}, ctx.Err()
		}
	}
	return cloneTransportResponse(script.Response), script.Err
}

// nextScriptLocked prefers a path-bound script and falls back to the ordered
// scripts, repeating the last one when they run out.
func (a *FakeTransportAdapter) nextScriptLocked(req core.TransportRequest) (TransportScript, bool) {
	if path := requestPath(req.URL); path != "" {
		for _, script := range a.scripts {
			if script.Path != "" && script.Path == path {
				return script, true
			}
		}
	}
	ordered := make([]TransportScript, 0, len(a.scripts))
	for _, script := range a.scripts {
		if script.Path == "" {
			ordered = append(ordered, script)
		}
	}
	if len(ordered) == 0 {
		return TransportScript{}, false
	}
	index := a.cursor
	if index >= len(ordered) {
		index = len(ordered) - 1
	}
	a.cursor++
	return ordered[index], true
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// FormResponse builds a form-encoded reply like the handshake endpoints send.
func FormResponse(status int, values map[string]string) core.TransportResponse {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	form := url.Values{}
	for _, key := range keys {
		form.Set(key, values[key])
	}
	return core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:       []byte(form.Encode()),
	}
}

func JSONResponse(status int, body string) core.TransportResponse {
	return core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func requestPath(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return parsed.Path
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Metadata:             map[string]any{},
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
