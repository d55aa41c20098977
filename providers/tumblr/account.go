package tumblr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-crosspost/core"
)

// AccountResolver asks the API which blog an access token belongs to. The
// primary blog wins; otherwise the first listed blog is used.
type AccountResolver struct {
	config    Config
	signer    core.RequestSigner
	transport core.TransportAdapter
}

func NewAccountResolver(cfg Config, signer core.RequestSigner, transport core.TransportAdapter) (*AccountResolver, error) {
	if signer == nil {
		return nil, fmt.Errorf("tumblr: request signer is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("tumblr: transport is required")
	}
	return &AccountResolver{config: cfg.normalized(), signer: signer, transport: transport}, nil
}

func (r *AccountResolver) ResolveAccount(ctx context.Context, token core.AccessToken) (string, error) {
	if r == nil || r.signer == nil || r.transport == nil {
		return "", fmt.Errorf("tumblr: account resolver is not configured")
	}
	if !token.Valid() {
		return "", core.NewInvalidTokenError("tumblr: access token is incomplete")
	}
	response, err := signedCall(ctx, r.signer, r.transport, r.config, core.SignRequest{
		Method:      http.MethodGet,
		URL:         r.config.userInfoURL(),
		Token:       token.Token,
		TokenSecret: token.TokenSecret,
	})
	if err != nil {
		return "", err
	}
	root, err := decodeResponse(response, "user info")
	if err != nil {
		return "", err
	}

	blogs := lookupSlice(root, "response", "user", "blogs")
	if len(blogs) == 0 {
		return "", core.NewExternalServiceError("tumblr: user info lists no blogs", response.StatusCode, nil)
	}
	chosen := blogs[0]
	for _, blog := range blogs {
		if primary, ok := Lookup(blog, "primary"); ok && readBool(primary) {
			chosen = blog
			break
		}
	}
	if account := r.blogHost(chosen); account != "" {
		return account, nil
	}
	return "", core.NewExternalServiceError("tumblr: user info blog has no url or name", response.StatusCode, nil)
}

func (r *AccountResolver) blogHost(blog any) string {
	if raw := lookupString(blog, "url"); raw != "" {
		if parsed, err := url.Parse(raw); err == nil && parsed.Hostname() != "" {
			return strings.ToLower(parsed.Hostname())
		}
	}
	return r.config.blogIdentifier(lookupString(blog, "name"))
}

var _ core.AccountResolver = (*AccountResolver)(nil)
