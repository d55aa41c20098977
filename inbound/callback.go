package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-crosspost/core"
	"github.com/goliatone/go-logger/glog"
)

type LinkCompleter interface {
	CompleteLink(ctx context.Context, req core.CompleteLinkRequest) (core.CompleteLinkResponse, error)
}

type CallbackOption func(*CallbackHandler)

// WithSuccessRedirect sends the browser to target after a link is stored.
// Query parameters link_id and account are appended.
func WithSuccessRedirect(target string) CallbackOption {
	return func(h *CallbackHandler) {
		h.successRedirect = strings.TrimSpace(target)
	}
}

func WithCallbackLogger(logger core.Logger) CallbackOption {
	return func(h *CallbackHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithCompletionTimeout(timeout time.Duration) CallbackOption {
	return func(h *CallbackHandler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// CallbackHandler serves GET ?oauth_token=...&oauth_verifier=... requests
// from the remote service's authorization page.
type CallbackHandler struct {
	completer       LinkCompleter
	logger          core.Logger
	successRedirect string
	timeout         time.Duration
}

func NewCallbackHandler(completer LinkCompleter, opts ...CallbackOption) (*CallbackHandler, error) {
	if completer == nil {
		return nil, inboundInternal("inbound: link completer is required")
	}
	handler := &CallbackHandler{
		completer: completer,
		logger:    glog.Ensure(nil),
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	if handler.successRedirect != "" {
		parsed, err := url.Parse(handler.successRedirect)
		if err != nil || parsed.Scheme == "" && !strings.HasPrefix(parsed.Path, "/") {
			return nil, inboundBadInput("inbound: success redirect must be absolute or rooted", map[string]any{
				"redirect": handler.successRedirect,
			})
		}
	}
	return handler, nil
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeCallbackError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.Method == http.MethodHead {
		// The request token is single use; only the browser GET may consume it.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	query := r.URL.Query()
	token := strings.TrimSpace(query.Get("oauth_token"))
	verifier := strings.TrimSpace(query.Get("oauth_verifier"))
	if token == "" {
		writeCallbackError(w, http.StatusGone, MessageLinkExpired)
		return
	}
	if verifier == "" {
		// Denied authorizations come back without a verifier.
		writeCallbackError(w, http.StatusBadRequest, "authorization was not granted")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	response, err := h.completer.CompleteLink(ctx, core.CompleteLinkRequest{
		RequestToken: token,
		Verifier:     verifier,
	})
	if err != nil {
		status, message := callbackStatus(err)
		h.logger.Warn("oauth callback failed",
			"event_type", "oauth_callback",
			"status", status,
			"error", err.Error(),
		)
		writeCallbackError(w, status, message)
		return
	}

	h.logger.Info("oauth callback completed",
		"event_type", "oauth_callback",
		"user_id", response.Link.UserID,
		"external_account_id", response.Link.ExternalAccountID,
	)
	if h.successRedirect == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, h.redirectTarget(response.Link), http.StatusFound)
}

func (h *CallbackHandler) redirectTarget(link core.UserServiceLink) string {
	target, err := url.Parse(h.successRedirect)
	if err != nil {
		return h.successRedirect
	}
	values := target.Query()
	if link.ID != "" {
		values.Set("link_id", link.ID)
	}
	if link.ExternalAccountID != "" {
		values.Set("account", link.ExternalAccountID)
	}
	target.RawQuery = values.Encode()
	return target.String()
}

func writeCallbackError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

var _ http.Handler = (*CallbackHandler)(nil)
