// Package tumblr talks to the Tumblr v2 API: public post reads, text post
// creation, and the user info lookup used when a link is created.
package tumblr

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-crosspost/core"
)

const (
	ProviderID = "tumblr"

	postsPathTemplate  = "/v2/blog/%s/posts"
	createPathTemplate = "/v2/blog/%s/post"
	userInfoPath       = "/v2/user/info"

	photoPostType          = "photo"
	defaultTimeout         = 10 * time.Second
	maxAPIResponseBodySize = 1 << 20 // 1 MiB
)

type Config struct {
	APIKey        string
	APIBaseURL    string
	ServiceSuffix string
	Timeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:    core.DefaultAPIBaseURL,
		ServiceSuffix: core.DefaultServiceSuffix,
		Timeout:       defaultTimeout,
	}
}

// ConfigFromCore uses the consumer key as the public API key.
func ConfigFromCore(cfg core.Config) Config {
	return Config{
		APIKey:        cfg.Consumer.Key,
		APIBaseURL:    cfg.Endpoints.APIBaseURL,
		ServiceSuffix: cfg.Directives.ServiceSuffix,
		Timeout:       cfg.Resolver.Timeout,
	}
}

func (c Config) normalized() Config {
	defaults := DefaultConfig()
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaults.APIBaseURL
	}
	c.ServiceSuffix = strings.TrimSpace(c.ServiceSuffix)
	if c.ServiceSuffix == "" {
		c.ServiceSuffix = defaults.ServiceSuffix
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}

func (c Config) postsURL(blog string) string {
	return c.APIBaseURL + fmt.Sprintf(postsPathTemplate, url.PathEscape(blog))
}

func (c Config) createURL(blog string) string {
	return c.APIBaseURL + fmt.Sprintf(createPathTemplate, url.PathEscape(blog))
}

func (c Config) userInfoURL() string {
	return c.APIBaseURL + userInfoPath
}

// blogIdentifier accepts either a full blog host or a bare blog name.
func (c Config) blogIdentifier(account string) string {
	account = strings.ToLower(strings.TrimSpace(account))
	if account == "" || strings.Contains(account, ".") {
		return account
	}
	return account + c.ServiceSuffix
}
