package tumblr

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-crosspost/core"
)

// ContentResolver reads public posts with the API key and returns the
// original-size photo URLs of photo posts.
type ContentResolver struct {
	config    Config
	transport core.TransportAdapter
}

func NewContentResolver(cfg Config, transport core.TransportAdapter) (*ContentResolver, error) {
	cfg = cfg.normalized()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tumblr: api key is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("tumblr: transport is required")
	}
	return &ContentResolver{config: cfg, transport: transport}, nil
}

func (r *ContentResolver) Resolve(ctx context.Context, payload core.ReadPayload) ([]string, error) {
	if r == nil || r.transport == nil {
		return nil, fmt.Errorf("tumblr: content resolver is not configured")
	}
	blog := r.config.blogIdentifier(payload.AccountIdentifier)
	postID := strings.TrimSpace(payload.PostID)
	if blog == "" || postID == "" {
		return nil, core.NewBadInputError("tumblr: account and post id are required")
	}

	response, err := r.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodGet,
		URL:    r.config.postsURL(blog),
		Query: map[string]string{
			"api_key": r.config.APIKey,
			"id":      postID,
		},
		Headers:              map[string]string{"Accept": "application/json"},
		Timeout:              r.config.Timeout,
		MaxResponseBodyBytes: maxAPIResponseBodySize,
	})
	if err != nil {
		return nil, core.NewExternalServiceError("tumblr: read post request failed", 0, err)
	}
	root, err := decodeResponse(response, "read post")
	if err != nil {
		return nil, err
	}
	return photoURLs(root), nil
}

func photoURLs(root any) []string {
	post, ok := Lookup(root, "response", "posts", 0)
	if !ok {
		return []string{}
	}
	if !strings.EqualFold(lookupString(post, "type"), photoPostType) {
		return []string{}
	}
	photos := lookupSlice(post, "photos")
	urls := make([]string, 0, len(photos))
	for _, photo := range photos {
		if value := lookupString(photo, "original_size", "url"); value != "" {
			urls = append(urls, value)
		}
	}
	return urls
}

func decodeResponse(response core.TransportResponse, operation string) (any, error) {
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, core.NewExternalServiceError(
			fmt.Sprintf("tumblr: %s returned status %d", operation, response.StatusCode),
			response.StatusCode,
			nil,
		)
	}
	root, err := decodeJSON(response.Body)
	if err != nil {
		return nil, core.NewExternalServiceError(fmt.Sprintf("tumblr: decode %s response", operation), response.StatusCode, err)
	}
	return root, nil
}

var _ core.ContentResolver = (*ContentResolver)(nil)
