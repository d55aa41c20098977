package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StoreProvider exposes persistent stores built from a persistence client.
type StoreProvider interface {
	RequestTokenStore() RequestTokenStore
	LinkStore() LinkStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// ComponentDependencies are handed to a ComponentFactory once configuration
// is resolved.
type ComponentDependencies struct {
	Config         Config
	TokenStore     TokenStore
	NonceLedger    NonceLedger
	Logger         Logger
	LoggerProvider LoggerProvider
}

// Components are the service-specific collaborators of the pipeline.
type Components struct {
	HandshakeClient HandshakeClient
	AccountResolver AccountResolver
	Scanner         DirectiveScanner
	ContentResolver ContentResolver
	Publisher       Publisher
}

type ComponentFactory interface {
	BuildComponents(deps ComponentDependencies) (Components, error)
}

type ComponentFactoryFunc func(deps ComponentDependencies) (Components, error)

func (f ComponentFactoryFunc) BuildComponents(deps ComponentDependencies) (Components, error) {
	return f(deps)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	tokenStore        TokenStore
	nonceLedger       NonceLedger
	componentFactory  ComponentFactory
	handshakeClient   HandshakeClient
	accountResolver   AccountResolver
	scanner           DirectiveScanner
	contentResolver   ContentResolver
	publisher         Publisher
	publishQueue      PublishQueue
	publishHooks      []JobWorkerHook
	dispatcher        PublishDispatcher
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTokenStore(store TokenStore) Option {
	return func(b *serviceBuilder) {
		b.tokenStore = store
	}
}

func WithNonceLedger(ledger NonceLedger) Option {
	return func(b *serviceBuilder) {
		b.nonceLedger = ledger
	}
}

func WithComponentFactory(factory ComponentFactory) Option {
	return func(b *serviceBuilder) {
		b.componentFactory = factory
	}
}

func WithHandshakeClient(client HandshakeClient) Option {
	return func(b *serviceBuilder) {
		b.handshakeClient = client
	}
}

func WithAccountResolver(resolver AccountResolver) Option {
	return func(b *serviceBuilder) {
		b.accountResolver = resolver
	}
}

func WithDirectiveScanner(scanner DirectiveScanner) Option {
	return func(b *serviceBuilder) {
		b.scanner = scanner
	}
}

func WithContentResolver(resolver ContentResolver) Option {
	return func(b *serviceBuilder) {
		b.contentResolver = resolver
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(b *serviceBuilder) {
		b.publisher = publisher
	}
}

// WithPublishQueue replaces the in-memory publish queue, for example with a
// go-job backed queue.
func WithPublishQueue(queue PublishQueue) Option {
	return func(b *serviceBuilder) {
		b.publishQueue = queue
	}
}

func WithPublishHooks(hooks ...JobWorkerHook) Option {
	return func(b *serviceBuilder) {
		b.publishHooks = append(b.publishHooks, hooks...)
	}
}

// WithPublishDispatcher replaces the built-in worker pool entirely. The
// caller owns its lifecycle.
func WithPublishDispatcher(dispatcher PublishDispatcher) Option {
	return func(b *serviceBuilder) {
		b.dispatcher = dispatcher
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("crosspost", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return crosspostErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw configuration map.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes the raw layer over defaults. Validation is deferred to the
// options resolver because credentials may arrive in the runtime layer.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw, cfgx.WithDefaults(defaults))
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap renders cfg as a nested map. Without includeZero, unset
// fields are omitted so they do not mask lower layers.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)
	putString(layer, "callback_url", cfg.CallbackURL, includeZero)

	consumer := map[string]any{}
	putString(consumer, "key", cfg.Consumer.Key, includeZero)
	putString(consumer, "secret", cfg.Consumer.Secret, includeZero)
	putSection(layer, "consumer", consumer)

	endpoints := map[string]any{}
	putString(endpoints, "request_token_url", cfg.Endpoints.RequestTokenURL, includeZero)
	putString(endpoints, "authorize_url", cfg.Endpoints.AuthorizeURL, includeZero)
	putString(endpoints, "access_token_url", cfg.Endpoints.AccessTokenURL, includeZero)
	putString(endpoints, "api_base_url", cfg.Endpoints.APIBaseURL, includeZero)
	putSection(layer, "endpoints", endpoints)

	oauth := map[string]any{}
	putDuration(oauth, "request_token_ttl", cfg.OAuth.RequestTokenTTL, includeZero)
	putString(oauth, "signature_transport", cfg.OAuth.SignatureTransport, includeZero)
	putDuration(oauth, "http_timeout", cfg.OAuth.HTTPTimeout, includeZero)
	putSection(layer, "oauth", oauth)

	resolver := map[string]any{}
	putDuration(resolver, "timeout", cfg.Resolver.Timeout, includeZero)
	putInt(resolver, "concurrency", cfg.Resolver.Concurrency, includeZero)
	putSection(layer, "resolver", resolver)

	publish := map[string]any{}
	putInt(publish, "workers", cfg.Publish.Workers, includeZero)
	putInt(publish, "queue_size", cfg.Publish.QueueSize, includeZero)
	putDuration(publish, "timeout", cfg.Publish.Timeout, includeZero)
	putSection(layer, "publish", publish)

	directives := map[string]any{}
	putString(directives, "service_suffix", cfg.Directives.ServiceSuffix, includeZero)
	putSection(layer, "directives", directives)
	return layer
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

func putInt(target map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putDuration(target map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putSection(target map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		target[key] = section
	}
}
