package crosspost

import "github.com/goliatone/go-crosspost/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type UserServiceLink = core.UserServiceLink
type AccessToken = core.AccessToken
type RequestToken = core.RequestToken
type ReadPayload = core.ReadPayload
type PublishPayload = core.PublishPayload
type Directive = core.Directive
type ScanResult = core.ScanResult
type ProcessResult = core.ProcessResult
type ResolvedContent = core.ResolvedContent

type BeginLinkRequest = core.BeginLinkRequest
type BeginLinkResponse = core.BeginLinkResponse
type CompleteLinkRequest = core.CompleteLinkRequest
type CompleteLinkResponse = core.CompleteLinkResponse
type ProcessTextRequest = core.ProcessTextRequest

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithTokenStore        = core.WithTokenStore
	WithNonceLedger       = core.WithNonceLedger
	WithComponentFactory  = core.WithComponentFactory
	WithHandshakeClient   = core.WithHandshakeClient
	WithAccountResolver   = core.WithAccountResolver
	WithDirectiveScanner  = core.WithDirectiveScanner
	WithContentResolver   = core.WithContentResolver
	WithPublisher         = core.WithPublisher
	WithPublishQueue      = core.WithPublishQueue
	WithPublishHooks      = core.WithPublishHooks
	WithPublishDispatcher = core.WithPublishDispatcher
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a service wired to the Tumblr API through the default
// component factory. Later options override any default component.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	all := make([]Option, 0, len(opts)+1)
	all = append(all, core.WithComponentFactory(NewComponentFactory()))
	all = append(all, opts...)
	return core.NewService(cfg, all...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}
