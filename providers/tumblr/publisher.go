package tumblr

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-crosspost/auth"
	"github.com/goliatone/go-crosspost/core"
)

const textPostType = "text"

// Publisher creates text posts on the linked blog with the link's access
// token.
type Publisher struct {
	config    Config
	signer    core.RequestSigner
	transport core.TransportAdapter
}

func NewPublisher(cfg Config, signer core.RequestSigner, transport core.TransportAdapter) (*Publisher, error) {
	if signer == nil {
		return nil, fmt.Errorf("tumblr: request signer is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("tumblr: transport is required")
	}
	return &Publisher{config: cfg.normalized(), signer: signer, transport: transport}, nil
}

func (p *Publisher) Publish(ctx context.Context, link core.UserServiceLink, payload core.PublishPayload) error {
	if p == nil || p.signer == nil || p.transport == nil {
		return fmt.Errorf("tumblr: publisher is not configured")
	}
	blog := p.config.blogIdentifier(link.ExternalAccountID)
	if blog == "" {
		return core.NewBadInputError("tumblr: link has no blog to publish to")
	}
	if !link.AccessToken.Valid() {
		return core.NewInvalidTokenError("tumblr: link access token is incomplete")
	}

	response, err := signedCall(ctx, p.signer, p.transport, p.config, core.SignRequest{
		Method: http.MethodPost,
		URL:    p.config.createURL(blog),
		Params: map[string]string{
			"type": textPostType,
			"body": payload.BodyText,
		},
		Token:       link.AccessToken.Token,
		TokenSecret: link.AccessToken.TokenSecret,
	})
	if err != nil {
		return err
	}
	_, err = decodeResponse(response, "create post")
	return err
}

func signedCall(
	ctx context.Context,
	signer core.RequestSigner,
	transport core.TransportAdapter,
	cfg Config,
	req core.SignRequest,
) (core.TransportResponse, error) {
	signed, err := signer.SignedRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	transportReq, err := auth.NewTransportRequest(signed, cfg.Timeout)
	if err != nil {
		return core.TransportResponse{}, err
	}
	transportReq.Headers["Accept"] = "application/json"
	transportReq.MaxResponseBodyBytes = maxAPIResponseBodySize
	response, err := transport.Do(ctx, transportReq)
	if err != nil {
		return core.TransportResponse{}, core.NewExternalServiceError(
			fmt.Sprintf("tumblr: %s %s failed", strings.ToLower(req.Method), req.URL), 0, err,
		)
	}
	return response, nil
}

var _ core.Publisher = (*Publisher)(nil)
