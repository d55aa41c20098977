package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	SignatureTransportHeader = "header"
	SignatureTransportQuery  = "query"
)

const (
	DefaultRequestTokenURL = "https://www.tumblr.com/oauth/request_token"
	DefaultAuthorizeURL    = "https://www.tumblr.com/oauth/authorize"
	DefaultAccessTokenURL  = "https://www.tumblr.com/oauth/access_token"
	DefaultAPIBaseURL      = "https://api.tumblr.com"
	DefaultServiceSuffix   = ".tumblr.com"
)

type ConsumerConfig struct {
	Key    string `koanf:"key" mapstructure:"key"`
	Secret string `koanf:"secret" mapstructure:"secret"`
}

type EndpointsConfig struct {
	RequestTokenURL string `koanf:"request_token_url" mapstructure:"request_token_url"`
	AuthorizeURL    string `koanf:"authorize_url" mapstructure:"authorize_url"`
	AccessTokenURL  string `koanf:"access_token_url" mapstructure:"access_token_url"`
	APIBaseURL      string `koanf:"api_base_url" mapstructure:"api_base_url"`
}

type OAuthConfig struct {
	RequestTokenTTL    time.Duration `koanf:"request_token_ttl" mapstructure:"request_token_ttl"`
	SignatureTransport string        `koanf:"signature_transport" mapstructure:"signature_transport"`
	HTTPTimeout        time.Duration `koanf:"http_timeout" mapstructure:"http_timeout"`
}

type ResolverConfig struct {
	Timeout     time.Duration `koanf:"timeout" mapstructure:"timeout"`
	Concurrency int           `koanf:"concurrency" mapstructure:"concurrency"`
}

type PublishConfig struct {
	Workers   int           `koanf:"workers" mapstructure:"workers"`
	QueueSize int           `koanf:"queue_size" mapstructure:"queue_size"`
	Timeout   time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type DirectivesConfig struct {
	ServiceSuffix string `koanf:"service_suffix" mapstructure:"service_suffix"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Consumer    ConsumerConfig   `koanf:"consumer" mapstructure:"consumer"`
	CallbackURL string           `koanf:"callback_url" mapstructure:"callback_url"`
	Endpoints   EndpointsConfig  `koanf:"endpoints" mapstructure:"endpoints"`
	OAuth       OAuthConfig      `koanf:"oauth" mapstructure:"oauth"`
	Resolver    ResolverConfig   `koanf:"resolver" mapstructure:"resolver"`
	Publish     PublishConfig    `koanf:"publish" mapstructure:"publish"`
	Directives  DirectivesConfig `koanf:"directives" mapstructure:"directives"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "crosspost",
		Endpoints: EndpointsConfig{
			RequestTokenURL: DefaultRequestTokenURL,
			AuthorizeURL:    DefaultAuthorizeURL,
			AccessTokenURL:  DefaultAccessTokenURL,
			APIBaseURL:      DefaultAPIBaseURL,
		},
		OAuth: OAuthConfig{
			RequestTokenTTL:    defaultRequestTokenTTL,
			SignatureTransport: SignatureTransportHeader,
			HTTPTimeout:        15 * time.Second,
		},
		Resolver: ResolverConfig{
			Timeout:     10 * time.Second,
			Concurrency: 4,
		},
		Publish: PublishConfig{
			Workers:   4,
			QueueSize: 64,
			Timeout:   20 * time.Second,
		},
		Directives: DirectivesConfig{
			ServiceSuffix: DefaultServiceSuffix,
		},
	}
}

// Credentials returns the process-wide consumer credentials.
func (c Config) Credentials() ConsumerCredentials {
	return ConsumerCredentials{
		Key:    strings.TrimSpace(c.Consumer.Key),
		Secret: strings.TrimSpace(c.Consumer.Secret),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Consumer.Key) == "" {
		return fmt.Errorf("core: consumer.key is required")
	}
	if strings.TrimSpace(c.Consumer.Secret) == "" {
		return fmt.Errorf("core: consumer.secret is required")
	}
	if err := validateAbsoluteURL("callback_url", c.CallbackURL); err != nil {
		return err
	}
	for field, value := range map[string]string{
		"endpoints.request_token_url": c.Endpoints.RequestTokenURL,
		"endpoints.authorize_url":     c.Endpoints.AuthorizeURL,
		"endpoints.access_token_url":  c.Endpoints.AccessTokenURL,
		"endpoints.api_base_url":      c.Endpoints.APIBaseURL,
	} {
		if err := validateAbsoluteURL(field, value); err != nil {
			return err
		}
	}
	switch strings.TrimSpace(strings.ToLower(c.OAuth.SignatureTransport)) {
	case SignatureTransportHeader, SignatureTransportQuery:
	default:
		return fmt.Errorf("core: oauth.signature_transport %q is invalid", c.OAuth.SignatureTransport)
	}
	if c.Resolver.Concurrency <= 0 {
		return fmt.Errorf("core: resolver.concurrency must be positive")
	}
	if c.Publish.Workers <= 0 {
		return fmt.Errorf("core: publish.workers must be positive")
	}
	if c.Publish.QueueSize <= 0 {
		return fmt.Errorf("core: publish.queue_size must be positive")
	}
	return nil
}

func validateAbsoluteURL(field string, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("core: %s is required", field)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("core: %s is invalid: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("core: %s must use http or https", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("core: %s host is required", field)
	}
	return nil
}
