package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorKindsCarryEnvelope(t *testing.T) {
	cases := []struct {
		name     string
		err      *goerrors.Error
		textCode string
		status   int
	}{
		{"encoding", NewEncodingError("bad utf-8"), CrosspostErrorEncoding, http.StatusBadRequest},
		{"handshake", NewHandshakeError("request token leg failed", errors.New("503")), CrosspostErrorHandshakeFailed, http.StatusBadGateway},
		{"invalid_token", NewInvalidTokenError("unknown token"), CrosspostErrorInvalidToken, http.StatusUnauthorized},
		{"external", NewExternalServiceError("read failed", 500, nil), CrosspostErrorExternalService, http.StatusBadGateway},
		{"conflict", NewConflictError("exists"), CrosspostErrorConflict, http.StatusConflict},
		{"not_found", NewLinkNotFoundError("usr_1"), CrosspostErrorLinkNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		if tc.err.TextCode != tc.textCode {
			t.Fatalf("%s: expected text code %s, got %s", tc.name, tc.textCode, tc.err.TextCode)
		}
		if tc.err.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, tc.err.Code)
		}
	}
}

func TestErrorPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewInvalidTokenError("expired"))
	if !IsInvalidTokenError(wrapped) {
		t.Fatalf("expected wrapped invalid token error to match")
	}
	if IsHandshakeError(wrapped) {
		t.Fatalf("expected handshake predicate to miss")
	}
	if IsEncodingError(nil) {
		t.Fatalf("expected nil to match nothing")
	}
}

func TestCrosspostErrorMapper_MessageHeuristics(t *testing.T) {
	if got := crosspostErrorMapper(errors.New("core: user id is required")); got.TextCode != CrosspostErrorBadInput {
		t.Fatalf("expected bad input, got %s", got.TextCode)
	}
	if got := crosspostErrorMapper(errors.New("row already exists")); got.TextCode != CrosspostErrorConflict {
		t.Fatalf("expected conflict, got %s", got.TextCode)
	}
	rich := NewExternalServiceError("down", 503, nil)
	if got := crosspostErrorMapper(rich); got != rich {
		t.Fatalf("expected rich errors to pass through")
	}
}
