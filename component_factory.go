package crosspost

import (
	"github.com/goliatone/go-crosspost/auth"
	"github.com/goliatone/go-crosspost/core"
	"github.com/goliatone/go-crosspost/directives"
	"github.com/goliatone/go-crosspost/providers/tumblr"
	"github.com/goliatone/go-crosspost/ratelimit"
	"github.com/goliatone/go-crosspost/transport"
)

type ComponentFactoryOption func(*ComponentFactory)

// WithHTTPClient replaces the net/http client behind the REST transport.
func WithHTTPClient(client transport.HTTPDoer) ComponentFactoryOption {
	return func(f *ComponentFactory) {
		f.httpClient = client
	}
}

// WithTransport replaces the REST transport entirely.
func WithTransport(adapter core.TransportAdapter) ComponentFactoryOption {
	return func(f *ComponentFactory) {
		f.transport = adapter
	}
}

// WithRateLimitPolicy replaces the in-memory throttle placed in front of the
// transport. A nil policy disables throttling.
func WithRateLimitPolicy(policy *ratelimit.AdaptivePolicy) ComponentFactoryOption {
	return func(f *ComponentFactory) {
		f.rateLimit = policy
	}
}

func WithClientOptions(opts ...auth.ClientOption) ComponentFactoryOption {
	return func(f *ComponentFactory) {
		f.clientOptions = append(f.clientOptions, opts...)
	}
}

// ComponentFactory builds the OAuth client, scanner and Tumblr adapters from
// resolved configuration.
type ComponentFactory struct {
	httpClient    transport.HTTPDoer
	transport     core.TransportAdapter
	clientOptions []auth.ClientOption
	rateLimit     *ratelimit.AdaptivePolicy
}

func NewComponentFactory(opts ...ComponentFactoryOption) *ComponentFactory {
	factory := &ComponentFactory{
		rateLimit: ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func (f *ComponentFactory) BuildComponents(deps core.ComponentDependencies) (core.Components, error) {
	adapter := f.transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(f.httpClient)
	}
	if f.rateLimit != nil {
		throttled, err := ratelimit.NewTransport(adapter, f.rateLimit)
		if err != nil {
			return core.Components{}, err
		}
		adapter = throttled
	}

	clientOpts := make([]auth.ClientOption, 0, len(f.clientOptions)+1)
	if deps.NonceLedger != nil {
		clientOpts = append(clientOpts, auth.WithNonceLedger(deps.NonceLedger))
	}
	clientOpts = append(clientOpts, f.clientOptions...)
	client, err := auth.NewOAuth1Client(auth.ClientConfigFromConfig(deps.Config), adapter, deps.TokenStore, clientOpts...)
	if err != nil {
		return core.Components{}, err
	}

	tumblrConfig := tumblr.ConfigFromCore(deps.Config)
	contentResolver, err := tumblr.NewContentResolver(tumblrConfig, adapter)
	if err != nil {
		return core.Components{}, err
	}
	publisher, err := tumblr.NewPublisher(tumblrConfig, client, adapter)
	if err != nil {
		return core.Components{}, err
	}
	accounts, err := tumblr.NewAccountResolver(tumblrConfig, client, adapter)
	if err != nil {
		return core.Components{}, err
	}

	return core.Components{
		HandshakeClient: client,
		AccountResolver: accounts,
		Scanner:         directives.NewScanner(),
		ContentResolver: contentResolver,
		Publisher:       publisher,
	}, nil
}

var _ core.ComponentFactory = (*ComponentFactory)(nil)
